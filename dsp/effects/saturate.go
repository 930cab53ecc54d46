package effects

import (
	"math"

	"github.com/cwbudde/algo-tape/dsp/core"
)

// spiralClip bounds the saturator input to sqrt(pi/2), the domain where
// sin(x*|x|) stays on its first half-cycle.
const spiralClip = 1.2533141373155

// SpiralSaturate applies the spiral waveshaper sin(x*|x|)/|x|.
//
// The transform is odd, smooth, linear-like near zero, and saturates
// softly toward the clamp bound; output magnitude never exceeds 1. It is
// stateless and defined for all real input.
func SpiralSaturate(x float64) float64 {
	x = core.Clamp(x, -spiralClip, spiralClip)

	ax := math.Abs(x)
	if ax == 0 {
		return 0
	}

	return math.Sin(x*ax) / ax
}
