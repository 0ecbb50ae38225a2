// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, DecodedBuffer types and sample conversion functions
// Package audio provides the fundamental audio types shared by the decode,
// stretch, render and output packages.
//
// This package defines:
//   - Format: Describes a decoder output format (sample rate, channels, bit depth)
//   - DecodedBuffer: One indexed unit of decoder output with its presentation time
//   - Flags: End-of-stream and decode-only markers
//
// It also provides utilities for converting between sample representations:
//   - 16-bit ↔ 24-bit conversions
//   - int16 ↔ little-endian byte packing
//
// Example:
//
//	format := audio.Format{
//	    Codec:      "pcm",
//	    SampleRate: 48000,
//	    Channels:   2,
//	    BitDepth:   16,
//	}
//	if err := format.Validate(); err != nil {
//	    return err
//	}
package audio
