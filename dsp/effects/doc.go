// Package effects provides the tape saturation processing kernels.
//
// Components:
//   - Tape: the full mono tape model (tone phases, saturation, limiting).
//   - SpiralSaturate: the stateless spiral waveshaper sin(x*|x|)/|x|.
//   - SoftLimiter: golden-ratio soft limiting into a ±0.99 ceiling.
//
// All processing is designed for real-time use with zero-allocation hot
// paths and supports both single-sample and buffer-based processing.
package effects
