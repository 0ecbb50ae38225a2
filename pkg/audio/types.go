// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, decoded buffers and sample conversions
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// BytesPerSample is the size of one 16-bit PCM sample
	BytesPerSample = 2
)

// ErrInvalidFormat is returned for formats that cannot carry audio
var ErrInvalidFormat = errors.New("invalid audio format")

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Validate reports whether the format can drive the render path.
// Only interleaved 16-bit PCM is accepted there.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrInvalidFormat, f.Channels)
	}
	if f.BitDepth != 0 && f.BitDepth != 16 {
		return fmt.Errorf("%w: bit depth %d (supported: 16)", ErrInvalidFormat, f.BitDepth)
	}
	return nil
}

// FrameSize returns the number of bytes in one interleaved 16-bit frame
func (f Format) FrameSize() int {
	return f.Channels * BytesPerSample
}

// DurationUs returns the duration in microseconds of the given frame count
func (f Format) DurationUs(frames int64) int64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return frames * 1000000 / int64(f.SampleRate)
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %dbit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
}

// Flags annotate a decoded buffer
type Flags uint32

const (
	// FlagEndOfStream marks the last buffer of a stream; it may carry no data
	FlagEndOfStream Flags = 1 << iota
	// FlagDecodeOnly marks buffers that must be decoded but not rendered
	FlagDecodeOnly
)

// Has reports whether all bits in other are set
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// DecodedBuffer is one unit of decoder output.
// Index increases monotonically within a format epoch and identifies the
// buffer across repeated render-loop calls.
type DecodedBuffer struct {
	Index              int
	Data               []byte // interleaved little-endian 16-bit PCM
	PresentationTimeUs int64
	Flags              Flags
}

// Frames returns the number of whole frames in the buffer for the format
func (b DecodedBuffer) Frames(f Format) int {
	if f.FrameSize() == 0 {
		return 0
	}
	return len(b.Data) / f.FrameSize()
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// ClampInt16 saturates a wide sample to the int16 range
func ClampInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// PutInt16s encodes samples as little-endian bytes into dst and returns the
// number of bytes written. dst must hold 2*len(samples) bytes.
func PutInt16s(dst []byte, samples []int16) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return len(samples) * 2
}

// AppendInt16s decodes little-endian 16-bit samples from src and appends
// them to dst. A trailing odd byte is ignored.
func AppendInt16s(dst []int16, src []byte) []int16 {
	n := len(src) / 2
	for i := 0; i < n; i++ {
		dst = append(dst, int16(binary.LittleEndian.Uint16(src[i*2:])))
	}
	return dst
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
