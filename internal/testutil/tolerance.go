package testutil

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-tape/dsp/core"
)

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t *testing.T, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// RequireBounded fails t if any element magnitude exceeds bound.
func RequireBounded(t *testing.T, data []float64, bound float64) {
	t.Helper()
	for i, v := range data {
		if math.Abs(v) > bound {
			t.Fatalf("index %d: value %v exceeds bound %v", i, v, bound)
		}
	}
}

// RequireNearlyEqual fails t when got and want differ by more than eps
// in absolute or relative terms.
func RequireNearlyEqual(t *testing.T, got, want, eps float64) {
	t.Helper()
	if !core.NearlyEqual(got, want, eps) {
		t.Fatalf("got %v, want %v (eps %v)", got, want, eps)
	}
}

// MaxAbs returns the largest absolute value in data.
func MaxAbs(data []float64) float64 {
	peak := 0.0
	for _, v := range data {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}
