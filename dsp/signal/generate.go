// Package signal generates deterministic render and measurement signals.
package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-tape/dsp/core"
)

// Generator produces deterministic signals. Construct one with
// NewGenerator; the zero value has no usable sample rate.
type Generator struct {
	cfg  core.ProcessorConfig
	seed int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithConfig sets the processor configuration (sample rate, block size).
func WithConfig(opts ...core.ProcessorOption) Option {
	return func(g *Generator) {
		g.cfg = core.ApplyProcessorOptions(opts...)
	}
}

// WithSeed sets the random seed used by WhiteNoise.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a signal generator with default configuration
// and seed 1.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		cfg:  core.DefaultProcessorConfig(),
		seed: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Config returns the generator processor configuration.
func (g *Generator) Config() core.ProcessorConfig {
	return g.cfg
}

// length resolves a requested sample count; non-positive counts fall
// back to the configured block size.
func (g *Generator) length(samples int) int {
	if samples > 0 {
		return samples
	}

	return g.cfg.BlockSize
}

// Sine renders a sine wave starting at zero phase.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	if math.IsNaN(freqHz) || math.IsInf(freqHz, 0) {
		return nil, fmt.Errorf("sine frequency must be finite: %v", freqHz)
	}
	if g.cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sine sample rate must be > 0: %v", g.cfg.SampleRate)
	}

	out := make([]float64, g.length(samples))
	step := 2 * math.Pi * freqHz / g.cfg.SampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out, nil
}

// WhiteNoise renders uniform noise in [-amplitude, amplitude]. The
// sequence is reproducible for a given seed.
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if amplitude < 0 || math.IsNaN(amplitude) {
		return nil, fmt.Errorf("noise amplitude must be >= 0: %v", amplitude)
	}

	out := make([]float64, g.length(samples))
	rng := rand.New(rand.NewSource(g.seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out, nil
}

// Impulse renders a unit impulse at sample pos.
func (g *Generator) Impulse(samples, pos int) ([]float64, error) {
	n := g.length(samples)
	if pos < 0 || pos >= n {
		return nil, fmt.Errorf("impulse position must be in [0, %d): %d", n, pos)
	}

	out := make([]float64, n)
	out[pos] = 1

	return out, nil
}

// Normalize scales data in place so its peak magnitude equals targetPeak
// and returns the original peak. Silent input is left unchanged.
func Normalize(data []float64, targetPeak float64) (float64, error) {
	if targetPeak < 0 || math.IsNaN(targetPeak) {
		return 0, fmt.Errorf("normalize target peak must be >= 0: %v", targetPeak)
	}

	peak := 0.0
	for _, v := range data {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return 0, nil
	}

	scale := targetPeak / peak
	for i := range data {
		data[i] *= scale
	}

	return peak, nil
}
