// Package design provides biquad coefficient design for the tape processor.
//
// The only design needed here is the narrow resonant bandpass that shapes
// the head-bump oscillator, expressed in the analog-prototype bilinear form
// with a normalized center frequency (fraction of the sample rate).
package design

import (
	"math"

	"github.com/cwbudde/algo-tape/dsp/filter/biquad"
)

// Bandpass designs a bandpass biquad from a normalized center frequency
// (cycles per sample, valid range (0, 0.5)) and quality factor q.
//
// The transfer function uses the K = tan(pi*f) bilinear form:
//
//	K    = tan(pi * normFreq)
//	norm = 1 / (1 + K/q + K*K)
//	B0   = K/q * norm
//	B1   = 0
//	B2   = -B0
//	A1   = 2 * (K*K - 1) * norm
//	A2   = (1 - K/q + K*K) * norm
//
// Invalid input (non-finite or out-of-range frequency, non-positive q)
// yields zero coefficients, which a [biquad.Section] treats as a mute.
func Bandpass(normFreq, q float64) biquad.Coefficients {
	if normFreq <= 0 || normFreq >= 0.5 || math.IsNaN(normFreq) || math.IsInf(normFreq, 0) {
		return biquad.Coefficients{}
	}

	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return biquad.Coefficients{}
	}

	k := math.Tan(math.Pi * normFreq)
	norm := 1 / (1 + k/q + k*k)
	b0 := k / q * norm

	return biquad.Coefficients{
		B0: b0,
		B1: 0,
		B2: -b0,
		A1: 2 * (k*k - 1) * norm,
		A2: (1 - k/q + k*k) * norm,
	}
}
