// ABOUTME: Audio encoder package for storing rendered audio
// ABOUTME: Provides the Encoder interface, a PCM encoder and a WAV writer sink
// Package encode stores rendered audio.
//
// Supports: PCM (16-bit and 24-bit) and WAV files, optionally compressed
// with zstd. WAVWriter implements render.Sink so a render stage can write
// straight to disk.
//
// Example:
//
//	w, err := encode.Create("out.wav", format)
//	defer w.Close()
//	stage := render.NewStage(w, clk)
package encode
