package effects

// softCeiling is the output ceiling/floor magnitude guarded by the soft
// limiter and the final hard clamp.
const softCeiling = 0.99

// SoftLimiter is a golden-ratio blending soft limiter. It keeps the
// previous output sample and blends transitions into and out of the
// ±0.99 clip region instead of applying a hard knee; the ceiling/floor
// tracking lags the input by one sample.
//
// The zero value is ready to use.
type SoftLimiter struct {
	lastSample float64
}

// ProcessSample limits one sample and updates the limiter memory.
func (l *SoftLimiter) ProcessSample(x float64) float64 {
	if l.lastSample >= softCeiling {
		if x < softCeiling {
			l.lastSample = softCeiling*tapeSoftness + x*(1-tapeSoftness)
		} else {
			l.lastSample = softCeiling
		}
	}

	if l.lastSample <= -softCeiling {
		if x > -softCeiling {
			l.lastSample = -softCeiling*tapeSoftness + x*(1-tapeSoftness)
		} else {
			l.lastSample = -softCeiling
		}
	}

	if x > softCeiling {
		if l.lastSample < softCeiling {
			x = softCeiling*tapeSoftness + l.lastSample*(1-tapeSoftness)
		} else {
			x = softCeiling
		}
	}

	if x < -softCeiling {
		if l.lastSample > -softCeiling {
			x = -softCeiling*tapeSoftness + l.lastSample*(1-tapeSoftness)
		} else {
			x = -softCeiling
		}
	}

	l.lastSample = x

	return x
}

// Reset clears the limiter memory.
func (l *SoftLimiter) Reset() {
	l.lastSample = 0
}

// LastSample returns the limiter memory (the previous output sample).
func (l *SoftLimiter) LastSample() float64 {
	return l.lastSample
}
