package response

import (
	"errors"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-tape/dsp/core"
	"github.com/cwbudde/algo-tape/dsp/signal"
)

// Errors returned by response analysis functions.
var (
	ErrInvalidSampleRate = errors.New("response: sample rate must be positive")
	ErrInvalidFFTSize    = errors.New("response: fft size must be a power of two >= 64")
	ErrNilProcessor      = errors.New("response: processor must not be nil")
)

// Processor is any sample-by-sample processor whose response can be
// captured. It is satisfied by *effects.Tape and *biquad.Section.
type Processor interface {
	ProcessSample(in float64) float64
}

// Config holds response capture parameters.
type Config struct {
	SampleRate float64
	FFTSize    int
}

// Analyzer captures impulse and magnitude responses of a processor.
type Analyzer struct {
	cfg Config
	gen *signal.Generator
}

// NewAnalyzer creates a response analyzer. FFTSize must be a power of two
// of at least 64; SampleRate must be positive.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.SampleRate <= 0 || math.IsNaN(cfg.SampleRate) || math.IsInf(cfg.SampleRate, 0) {
		return nil, ErrInvalidSampleRate
	}

	if cfg.FFTSize < 64 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		return nil, ErrInvalidFFTSize
	}

	gen := signal.NewGenerator(signal.WithConfig(
		core.WithSampleRate(cfg.SampleRate),
		core.WithBlockSize(cfg.FFTSize),
	))

	return &Analyzer{cfg: cfg, gen: gen}, nil
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// ImpulseResponse drives a unit impulse through p and returns FFTSize
// output samples. For nonlinear processors this is the unit-amplitude
// impulse response, not a small-signal transfer measurement.
func (a *Analyzer) ImpulseResponse(p Processor) ([]float64, error) {
	if p == nil {
		return nil, ErrNilProcessor
	}

	// Length 0 resolves to the generator's block size, which the
	// constructor pinned to FFTSize.
	src, err := a.gen.Impulse(0, 0)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = p.ProcessSample(v)
	}

	return out, nil
}

// MagnitudeResponse returns |H[k]| for the non-negative frequency bins
// [0 .. FFTSize/2] of the captured impulse response.
func (a *Analyzer) MagnitudeResponse(p Processor) ([]float64, error) {
	ir, err := a.ImpulseResponse(p)
	if err != nil {
		return nil, err
	}

	return a.MagnitudeSpectrum(ir)
}

// MagnitudeSpectrum returns |X[k]| for the non-negative frequency bins of
// a time-domain signal of exactly FFTSize samples.
func (a *Analyzer) MagnitudeSpectrum(signal []float64) ([]float64, error) {
	if len(signal) != a.cfg.FFTSize {
		return nil, ErrInvalidFFTSize
	}

	inData := make([]complex128, a.cfg.FFTSize)
	for i, v := range signal {
		inData[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(a.cfg.FFTSize)
	if err != nil {
		return nil, err
	}

	out := make([]complex128, a.cfg.FFTSize)
	if err := plan.Forward(out, inData); err != nil {
		return nil, err
	}

	bins := a.cfg.FFTSize/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)
	for i := 0; i < bins; i++ {
		re[i] = real(out[i])
		im[i] = imag(out[i])
	}

	mags := make([]float64, bins)
	vecmath.Magnitude(mags, re, im)

	return mags, nil
}

// BinFrequency returns the center frequency in Hz of spectrum bin.
func (a *Analyzer) BinFrequency(bin int) float64 {
	return float64(bin) * a.cfg.SampleRate / float64(a.cfg.FFTSize)
}

// PeakBin returns the index and level of the largest magnitude bin.
// It returns (-1, 0) for an empty spectrum.
func PeakBin(mags []float64) (int, float64) {
	if len(mags) == 0 {
		return -1, 0
	}

	bin := 0
	level := mags[0]
	for i, m := range mags {
		if m > level {
			bin = i
			level = m
		}
	}

	return bin, level
}

// MagnitudeDB converts linear bin magnitudes to dB into a new slice.
// Zero magnitudes map to -Inf.
func MagnitudeDB(mags []float64) []float64 {
	out := make([]float64, len(mags))
	for i, m := range mags {
		if m <= 0 {
			out[i] = math.Inf(-1)
			continue
		}
		out[i] = 20 * mathLog10(m)
	}
	return out
}
