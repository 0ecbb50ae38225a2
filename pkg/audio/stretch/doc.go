// ABOUTME: Streaming speed, pitch and rate modification of 16-bit PCM
// ABOUTME: Package documentation for the stretch engine
// Package stretch changes the tempo and pitch of an audio stream in place.
//
// An Engine accepts interleaved 16-bit frames through Write, transforms
// them with the speed, pitch and rate in effect at the time of the call, and
// makes the result available to Read. Speed changes duration only, pitch
// changes pitch only, and rate changes both together like a turntable.
//
// The speed stage is pitch-synchronous overlap-add: the pitch period of the
// signal is found by an average magnitude difference search and whole
// periods are dropped (faster) or repeated (slower) with a linear crossfade.
// Pitch is then applied by resampling the stretched signal with a 4-point
// Hermite resampler.
//
// Example:
//
//	e, err := stretch.New(48000, 2)
//	e.SetSpeed(1.5)
//	e.Write(pcm)
//	n := e.Read(out)
package stretch
