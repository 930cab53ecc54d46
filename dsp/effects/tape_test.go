package effects

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-tape/internal/testutil"
)

func TestTapeValidation(t *testing.T) {
	if _, err := NewTape(0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}

	if _, err := NewTape(-44100); err == nil {
		t.Fatal("expected error for negative sample rate")
	}

	if _, err := NewTape(math.NaN()); err == nil {
		t.Fatal("expected error for NaN sample rate")
	}

	if _, err := NewTape(44100, WithTapeInputGain(100)); err == nil {
		t.Fatal("expected error for out-of-range input gain")
	}

	if _, err := NewTape(44100, WithTapeHeadBump(0.5)); err == nil {
		t.Fatal("expected error for out-of-range head bump depth")
	}

	if _, err := NewTape(44100, WithTapeHeadBump(-0.01)); err == nil {
		t.Fatal("expected error for negative head bump depth")
	}

	tape, err := NewTape(48000, WithTapeInputGain(2), WithTapeHeadBump(0.08), nil)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	if tape.SampleRate() != 48000 || tape.InputGain() != 2 || tape.HeadBump() != 0.08 {
		t.Fatalf("unexpected parameters: rate=%g gain=%g bump=%g",
			tape.SampleRate(), tape.InputGain(), tape.HeadBump())
	}
}

func TestTapeOutputBounded(t *testing.T) {
	tape, err := NewTape(44100, WithTapeInputGain(4))
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	rng := rand.New(rand.NewSource(3))
	buf := make([]float64, 20000)
	for i := range buf {
		buf[i] = (rng.Float64()*2 - 1) * 10
	}

	tape.ProcessInPlace(buf)

	testutil.RequireFinite(t, buf)
	testutil.RequireBounded(t, buf, 0.99)
}

func TestTapeSilenceStaysSilent(t *testing.T) {
	tape, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	// From zero state with zero forcing every filter state stays zero,
	// so silence maps to exact silence.
	for i := 0; i < 1000; i++ {
		if out := tape.ProcessSample(0); out != 0 {
			t.Fatalf("sample %d: silent input produced %g", i, out)
		}
	}
}

func TestTapeSilenceConvergesAfterSignal(t *testing.T) {
	tape, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	// Excite the filters, then feed silence; all states decay toward
	// zero with zero forcing.
	for i := 0; i < 2000; i++ {
		tape.ProcessSample(0.8 * math.Sin(float64(i)*0.05))
	}

	var out float64
	for i := 0; i < 400000; i++ {
		out = tape.ProcessSample(0)
	}

	if math.Abs(out) > 1e-3 {
		t.Fatalf("output did not converge to silence: %g", out)
	}
}

func TestTapeImpulseResponseContainedAndDecaying(t *testing.T) {
	tape, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	const n = 40000
	input := make([]float64, n)
	input[0] = 1.0

	output := make([]float64, n)
	tape.ProcessBlockTo(output, input)

	var peak float64
	for i, v := range output {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d: non-finite output %g", i, v)
		}
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	if peak > 0.99 {
		t.Fatalf("impulse peak %g exceeds 0.99", peak)
	}

	// The tail envelope decays after the initial transient: the peak of
	// the last quarter must sit below the peak of the first quarter.
	head := testutil.MaxAbs(output[:n/4])
	tail := testutil.MaxAbs(output[3*n/4:])
	if tail >= head {
		t.Fatalf("tail envelope %g did not decay below head envelope %g", tail, head)
	}
}

func TestTapePhaseAlternation(t *testing.T) {
	tape, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	// The mid roller is only written by the phase selected that sample,
	// so it exposes the alternation directly. Phase B is first.
	tape.ProcessSample(0.5)
	if tape.phaseB.midRoller == 0 {
		t.Fatal("sample 1 did not update phase B")
	}
	if tape.phaseA.midRoller != 0 {
		t.Fatal("sample 1 touched phase A")
	}

	tape.ProcessSample(0.5)
	if tape.phaseA.midRoller == 0 {
		t.Fatal("sample 2 did not update phase A")
	}

	// Over any pair of samples each phase advances exactly once.
	prevA := tape.phaseA.midRoller
	prevB := tape.phaseB.midRoller
	tape.ProcessSample(0.25)
	tape.ProcessSample(0.25)
	if tape.phaseA.midRoller == prevA || tape.phaseB.midRoller == prevB {
		t.Fatal("both phases must advance over two consecutive samples")
	}
}

func TestTapeHeadBumpStateBounded(t *testing.T) {
	tape, err := NewTape(44100, WithTapeInputGain(8))
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	// Heavy low-frequency drive excites the head-bump oscillator hardest.
	step := 2 * math.Pi * 40 / 44100
	for i := 0; i < 50000; i++ {
		tape.ProcessSample(math.Sin(step * float64(i)))

		// After clamp + asin the state must stay within [-pi/2, pi/2].
		for _, hb := range []float64{tape.phaseA.headBump, tape.phaseB.headBump} {
			if math.IsNaN(hb) || math.Abs(hb) > math.Pi/2+1e-12 {
				t.Fatalf("sample %d: head-bump state out of range: %g", i, hb)
			}
		}
	}
}

func TestTapeSetSampleRateReentrant(t *testing.T) {
	a, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	b, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	if err := b.SetSampleRate(88200); err != nil {
		t.Fatalf("SetSampleRate(88200) error = %v", err)
	}
	if err := b.SetSampleRate(44100); err != nil {
		t.Fatalf("SetSampleRate(44100) error = %v", err)
	}

	if a.rollAmount != b.rollAmount || a.headBumpFreq != b.headBumpFreq {
		t.Fatalf("rate-derived constants differ: (%g, %g) vs (%g, %g)",
			a.rollAmount, a.headBumpFreq, b.rollAmount, b.headBumpFreq)
	}

	if a.phaseA.bump.Coefficients != b.phaseA.bump.Coefficients {
		t.Fatalf("bandpass coefficients differ: %+v vs %+v",
			a.phaseA.bump.Coefficients, b.phaseA.bump.Coefficients)
	}

	if err := b.SetSampleRate(0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestTapeCoefficientsSharedAcrossPhases(t *testing.T) {
	tape, err := NewTape(96000)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	if tape.phaseA.bump.Coefficients != tape.phaseB.bump.Coefficients {
		t.Fatalf("phases hold different coefficients: %+v vs %+v",
			tape.phaseA.bump.Coefficients, tape.phaseB.bump.Coefficients)
	}
}

func TestTapeNonFiniteInputSanitized(t *testing.T) {
	tape, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if out := tape.ProcessSample(bad); out != 0 {
			t.Fatalf("non-finite input from zero state produced %g, want 0", out)
		}
	}

	// State must not be poisoned: subsequent processing stays finite.
	for i := 0; i < 100; i++ {
		out := tape.ProcessSample(0.5)
		if math.IsNaN(out) || math.IsInf(out, 0) {
			t.Fatalf("sample %d after non-finite input: %g", i, out)
		}
	}
}

func TestTapeResetRestoresInitialBehavior(t *testing.T) {
	tape, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	input := make([]float64, 500)
	for i := range input {
		input[i] = 0.7 * math.Sin(float64(i)*0.1)
	}

	first := make([]float64, len(input))
	tape.ProcessBlockTo(first, input)

	tape.Reset()

	second := make([]float64, len(input))
	tape.ProcessBlockTo(second, input)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample %d differs after Reset: %g vs %g", i, first[i], second[i])
		}
	}
}

func TestTapeBlockEqualsPerSample(t *testing.T) {
	blockWise, err := NewTape(48000)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	sampleWise, err := NewTape(48000)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	input := make([]float64, 1024)
	rng := rand.New(rand.NewSource(11))
	for i := range input {
		input[i] = rng.Float64()*2 - 1
	}

	blockOut := make([]float64, len(input))
	blockWise.ProcessBlockTo(blockOut, input)

	for i, x := range input {
		want := sampleWise.ProcessSample(x)
		if blockOut[i] != want {
			t.Fatalf("sample %d: block %g, per-sample %g", i, blockOut[i], want)
		}
	}
}

func TestTapeZeroLengthBlockIsNoOp(t *testing.T) {
	tape, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	ref, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	tape.ProcessBlockTo(nil, nil)
	tape.ProcessBlockTo([]float64{}, []float64{})
	tape.ProcessInPlace(nil)

	if got, want := tape.ProcessSample(0.5), ref.ProcessSample(0.5); got != want {
		t.Fatalf("state changed by zero-length blocks: got %g, want %g", got, want)
	}
}

func TestTapeBlockFlushesDenormalState(t *testing.T) {
	tape, err := NewTape(44100)
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	tape.phaseA.midRoller = 1e-40
	tape.phaseA.headBump = -1e-40
	tape.phaseA.bump.SetState([2]float64{1e-40, -1e-40})
	tape.phaseB.midRoller = -1e-40
	tape.phaseB.headBump = 1e-40
	tape.phaseB.bump.SetState([2]float64{-1e-40, 1e-40})

	tape.ProcessInPlace([]float64{0})

	for name, p := range map[string]*tonePhase{"A": &tape.phaseA, "B": &tape.phaseB} {
		if p.midRoller != 0 {
			t.Fatalf("phase %s mid-roller not flushed: %g", name, p.midRoller)
		}
		if p.headBump != 0 {
			t.Fatalf("phase %s head bump not flushed: %g", name, p.headBump)
		}
		if st := p.bump.State(); st[0] != 0 || st[1] != 0 {
			t.Fatalf("phase %s bandpass state not flushed: %v", name, st)
		}
	}
}

func TestTapeZeroHeadBumpDepthRemovesBumpContribution(t *testing.T) {
	withBump, err := NewTape(44100, WithTapeHeadBump(0.1))
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	noBump, err := NewTape(44100, WithTapeHeadBump(0))
	if err != nil {
		t.Fatalf("NewTape() error = %v", err)
	}

	// Strong low-frequency content builds up head-bump resonance; with
	// depth zero that resonance must not reach the output.
	step := 2 * math.Pi * 50 / 44100
	var diff float64
	for i := 0; i < 20000; i++ {
		in := 0.9 * math.Sin(step*float64(i))
		d := math.Abs(withBump.ProcessSample(in) - noBump.ProcessSample(in))
		if d > diff {
			diff = d
		}
	}

	if diff == 0 {
		t.Fatal("head bump depth had no audible effect")
	}
}
