package effects

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-tape/dsp/core"
	"github.com/cwbudde/algo-tape/dsp/filter/biquad"
	"github.com/cwbudde/algo-tape/dsp/filter/design"
)

const (
	defaultTapeInputGain = 1.0
	defaultTapeHeadBump  = 0.05

	minTapeInputGain = 0.0625 // -24 dB
	maxTapeInputGain = 16.0   // +24 dB
	minTapeHeadBump  = 0.0
	maxTapeHeadBump  = 0.1

	// tapeSoftness is the reciprocal golden ratio, used both as the
	// limiter blend weight and to derive the mid-roller time constant.
	tapeSoftness = 0.618033988749894848204586

	// All time constants normalize against a 44.1 kHz reference rate.
	tapeReferenceRate = 44100.0

	// headBumpCouple is the input coupling into the head-bump oscillator.
	headBumpCouple = 0.05

	// headBumpFreqScale sets the cubic damping of the head-bump
	// oscillator, scaled by overallscale per block.
	headBumpFreqScale = 0.12

	// headBumpSuppress scales the level-dependent pull of the head-bump
	// state toward zero, keeping the resonance from growing unbounded.
	headBumpSuppress = 0.00013

	// Narrow resonant bandpass shaping the head-bump oscillator output,
	// as a normalized frequency at the reference rate.
	bumpFilterFreq = 0.0072
	bumpFilterQ    = 0.0009
)

// tonePhase is one of the two alternating filter paths: a one-pole
// mid-roller lowpass, a cubic-damped resonant head-bump oscillator, and a
// narrow bandpass applied to the oscillator output. The two phases evolve
// independently; only the bandpass coefficients are shared.
type tonePhase struct {
	midRoller float64
	headBump  float64
	bump      biquad.Section
}

// update runs one gained input sample through the phase. It returns the
// extracted high-frequency content and leaves headBump holding the
// phase's resonance state, bounded to [-pi/2, pi/2] by the clamp + asin
// remap.
func (p *tonePhase) update(s, rollAmount, headBumpFreq float64) float64 {
	p.midRoller = p.midRoller*(1-rollAmount) + s*rollAmount
	highs := s - p.midRoller

	p.headBump += s * headBumpCouple
	p.headBump -= p.headBump * p.headBump * p.headBump * headBumpFreq
	p.headBump = math.Sin(p.headBump)

	p.headBump = p.bump.ProcessSample(p.headBump)

	p.headBump = core.Clamp(p.headBump, -1, 1)
	p.headBump = math.Asin(p.headBump)

	return highs
}

func (p *tonePhase) reset() {
	p.midRoller = 0
	p.headBump = 0
	p.bump.Reset()
}

// flush zeroes denormal-small filter state. Long silent stretches decay
// the recursions into the denormal range; flushing at block boundaries
// keeps the feedback paths out of it.
func (p *tonePhase) flush() {
	p.midRoller = core.FlushDenormals(p.midRoller)
	p.headBump = core.FlushDenormals(p.headBump)

	st := p.bump.State()
	p.bump.SetState([2]float64{
		core.FlushDenormals(st[0]),
		core.FlushDenormals(st[1]),
	})
}

// TapeOption mutates construction-time parameters.
type TapeOption func(*tapeConfig) error

type tapeConfig struct {
	inputGain float64
	headBump  float64
}

func defaultTapeConfig() tapeConfig {
	return tapeConfig{
		inputGain: defaultTapeInputGain,
		headBump:  defaultTapeHeadBump,
	}
}

// WithTapeInputGain sets the linear input gain in [0.0625, 16]
// (0.5 = -6 dB, 1.0 = unity, 2.0 = +6 dB).
func WithTapeInputGain(gain float64) TapeOption {
	return func(cfg *tapeConfig) error {
		if gain < minTapeInputGain || gain > maxTapeInputGain || math.IsNaN(gain) || math.IsInf(gain, 0) {
			return fmt.Errorf("tape input gain must be in [%g, %g]: %f",
				minTapeInputGain, maxTapeInputGain, gain)
		}
		cfg.inputGain = gain
		return nil
	}
}

// WithTapeHeadBump sets the head-bump depth in [0, 0.1]
// (0 = none, 0.1 = maximum bass bump).
func WithTapeHeadBump(depth float64) TapeOption {
	return func(cfg *tapeConfig) error {
		if depth < minTapeHeadBump || depth > maxTapeHeadBump || math.IsNaN(depth) || math.IsInf(depth, 0) {
			return fmt.Errorf("tape head bump depth must be in [%g, %g]: %f",
				minTapeHeadBump, maxTapeHeadBump, depth)
		}
		cfg.headBump = depth
		return nil
	}
}

// Tape is a mono analog tape saturation model: a spiral waveshaper
// combined with high-frequency softening, a low-frequency head-bump
// resonance, and golden-ratio soft limiting into a ±0.99 ceiling.
//
// Two structurally identical filter phases are updated on alternating
// samples, spreading filter recursion error over two staggered paths.
// All state persists across calls until [Tape.Reset].
//
// A Tape instance must not be used from multiple goroutines concurrently;
// independent instances share no state.
type Tape struct {
	sampleRate float64
	inputGain  float64
	headBump   float64

	// Block-scoped coefficients, refreshed from the current sample rate
	// at the start of every block-processing call.
	rollAmount   float64
	headBumpFreq float64

	phaseA tonePhase
	phaseB tonePhase
	flip   bool

	limiter SoftLimiter
}

// NewTape creates a tape saturation processor for the given sample rate.
func NewTape(sampleRate float64, opts ...TapeOption) (*Tape, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("tape sample rate must be > 0 and finite: %f", sampleRate)
	}

	cfg := defaultTapeConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	t := &Tape{
		sampleRate: sampleRate,
		inputGain:  cfg.inputGain,
		headBump:   cfg.headBump,
	}
	t.refreshBlockCoefficients()

	return t, nil
}

// SetSampleRate updates the sample rate and recomputes all rate-derived
// coefficients. It is re-entrant: calling it again with the same rate
// reproduces identical coefficients with no hidden accumulation.
func (t *Tape) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("tape sample rate must be > 0 and finite: %f", sampleRate)
	}

	t.sampleRate = sampleRate
	t.refreshBlockCoefficients()

	return nil
}

// refreshBlockCoefficients recomputes the sample-rate-derived constants
// and pushes identical bandpass coefficients into both phases. Filter
// state is untouched. Block processing calls this once per block even
// when the rate is unchanged; the recomputation is redundant then, but
// keeps behavior identical across blocks by construction.
func (t *Tape) refreshBlockCoefficients() {
	overallscale := t.sampleRate / tapeReferenceRate

	t.rollAmount = (1 - tapeSoftness) / overallscale
	t.headBumpFreq = headBumpFreqScale / overallscale

	c := design.Bandpass(bumpFilterFreq/overallscale, bumpFilterQ)
	t.phaseA.bump.SetCoefficients(c)
	t.phaseB.bump.SetCoefficients(c)
}

// ProcessSample processes one sample. Non-finite input (NaN, ±Inf) is
// replaced with zero before any state update, so a bad host sample cannot
// poison the recursive filter state.
func (t *Tape) ProcessSample(in float64) float64 {
	s := core.Sanitize(in) * t.inputGain

	var highs float64
	if t.flip {
		highs = t.phaseA.update(s, t.rollAmount, t.headBumpFreq)
	} else {
		highs = t.phaseB.update(s, t.rollAmount, t.headBumpFreq)
	}
	t.flip = !t.flip

	// Soften high-frequency content; the correction opposes the sign of
	// the high-frequency excursion, flattening transients.
	soften := math.Abs(highs) * (math.Pi / 2)
	if soften > math.Pi/2 {
		soften = math.Pi / 2
	}
	soften = 1 - math.Cos(soften)
	if highs > 0 {
		s -= soften
	}
	if highs < 0 {
		s += soften
	}

	s = SpiralSaturate(s)

	// Restrain the head-bump resonance; the pull toward zero shrinks as
	// the saturated signal approaches full scale.
	suppress := (1 - math.Abs(s)) * headBumpSuppress
	t.phaseA.headBump = pullTowardZero(t.phaseA.headBump, suppress)
	t.phaseB.headBump = pullTowardZero(t.phaseB.headBump, suppress)

	s += (t.phaseA.headBump + t.phaseB.headBump) * t.headBump

	s = t.limiter.ProcessSample(s)

	return core.Clamp(s, -softCeiling, softCeiling)
}

// ProcessBlockTo processes src into dst in order. Both slices must have
// the same length. Block coefficients are refreshed once at block start
// and denormal-small filter state is flushed at block end. A zero-length
// block is a no-op.
func (t *Tape) ProcessBlockTo(dst, src []float64) {
	if len(src) == 0 {
		return
	}

	t.refreshBlockCoefficients()

	_ = dst[len(src)-1] // bounds check hint
	for i, x := range src {
		dst[i] = t.ProcessSample(x)
	}

	t.phaseA.flush()
	t.phaseB.flush()
}

// ProcessInPlace applies the effect to a buffer in place. Block
// coefficients are refreshed once at block start and denormal-small
// filter state is flushed at block end.
func (t *Tape) ProcessInPlace(buf []float64) {
	if len(buf) == 0 {
		return
	}

	t.refreshBlockCoefficients()

	for i := range buf {
		buf[i] = t.ProcessSample(buf[i])
	}

	t.phaseA.flush()
	t.phaseB.flush()
}

// Reset clears all filter state, the limiter memory, and the phase
// alternation flag, as if the processor had just been created.
func (t *Tape) Reset() {
	t.phaseA.reset()
	t.phaseB.reset()
	t.flip = false
	t.limiter.Reset()
}

// SampleRate returns the sample rate in Hz.
func (t *Tape) SampleRate() float64 { return t.sampleRate }

// InputGain returns the linear input gain.
func (t *Tape) InputGain() float64 { return t.inputGain }

// HeadBump returns the head-bump depth.
func (t *Tape) HeadBump() float64 { return t.headBump }

// pullTowardZero moves v toward zero by up to amount; values already
// within ±amount are left unchanged.
func pullTowardZero(v, amount float64) float64 {
	if v > amount {
		return v - amount
	}

	if v < -amount {
		return v + amount
	}

	return v
}
