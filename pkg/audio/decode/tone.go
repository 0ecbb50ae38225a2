// ABOUTME: Test tone generator source
// ABOUTME: Generates a sine wave for testing and analysis
package decode

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/Sendspin/varispeed-go/pkg/audio"
)

// ToneSource generates a sine tone, identical in every channel
type ToneSource struct {
	frequency float64
	amplitude float64
	total     int64 // frames to generate, 0 for endless
	frames    int
	framer    framer
}

// NewToneSource creates a tone at frequency Hz lasting durationUs, or
// forever when durationUs is 0.
func NewToneSource(format audio.Format, frequency float64, durationUs int64, opts ...Option) *ToneSource {
	o := newOptions(opts)
	format.Codec = "tone"
	format.BitDepth = 16
	return &ToneSource{
		frequency: frequency,
		amplitude: 0.5, // 50% volume
		total:     framesAt(durationUs, format.SampleRate),
		frames:    o.bufferFrames,
		framer:    framer{format: format},
	}
}

// Format returns the tone format
func (s *ToneSource) Format() audio.Format {
	return s.framer.format
}

// Next generates the next buffer of the tone
func (s *ToneSource) Next() (audio.DecodedBuffer, error) {
	frames := int64(s.frames)
	if s.total > 0 {
		frames = min(frames, s.total-s.framer.frames)
	}
	if frames <= 0 {
		return audio.DecodedBuffer{}, io.EOF
	}

	channels := s.framer.format.Channels
	rate := float64(s.framer.format.SampleRate)
	data := make([]byte, int(frames)*channels*audio.BytesPerSample)
	for i := int64(0); i < frames; i++ {
		t := float64(s.framer.frames+i) / rate
		v := int16(math.Sin(2*math.Pi*s.frequency*t) * 32767.0 * s.amplitude)
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(data[(int(i)*channels+ch)*2:], uint16(v))
		}
	}

	return s.framer.buffer(data), nil
}

// DurationUs returns the tone length, or -1 for an endless tone
func (s *ToneSource) DurationUs() int64 {
	if s.total == 0 {
		return -1
	}
	return s.framer.format.DurationUs(s.total)
}

// SeekUs moves the tone phase to timeUs
func (s *ToneSource) SeekUs(timeUs int64) error {
	frame := framesAt(timeUs, s.framer.format.SampleRate)
	if s.total > 0 {
		frame = min(frame, s.total)
	}
	s.framer.seek(frame)
	return nil
}

// Close does nothing
func (s *ToneSource) Close() error { return nil }
