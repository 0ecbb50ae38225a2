// ABOUTME: Audio decoding package producing render-ready PCM buffers
// ABOUTME: Provides the Source interface and WAV, raw PCM, MP3, FLAC and tone sources
// Package decode turns audio files into a stream of decoded buffers.
//
// Every Source emits interleaved little-endian 16-bit PCM in
// audio.DecodedBuffer values with increasing indices and presentation
// timestamps derived from the frames emitted so far. Next returns io.EOF
// once the stream is exhausted.
//
// Supports: WAV and raw PCM (16-bit and 24-bit), MP3, FLAC, and any of
// these compressed with zstd (".zst" suffix).
//
// Example:
//
//	src, err := decode.Open("track.flac")
//	defer src.Close()
//	for {
//		buf, err := src.Next()
//		if err == io.EOF {
//			break
//		}
//	}
package decode
