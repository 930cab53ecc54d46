// Package response captures impulse and magnitude frequency responses of
// sample-by-sample processors, primarily to inspect the tape processor's
// low-frequency head-bump emphasis and high-frequency softening.
package response
