// ABOUTME: Audio resampling package using Hermite interpolation
// ABOUTME: Streams interleaved PCM through a variable-ratio resampler
// Package resample provides streaming sample rate conversion.
//
// The Resampler keeps its read position and a short history across calls,
// so a stream can be fed in arbitrary chunk sizes and the ratio can change
// between calls. It backs the rate and pitch stage of package stretch.
//
// Example:
//
//	r, err := resample.New(2, 1.5)
//	r.Write(interleaved)
//	out = r.Process(out[:0])
package resample
