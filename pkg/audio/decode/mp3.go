// ABOUTME: MP3 audio source
// ABOUTME: Decodes MP3 streams to 16-bit stereo buffers with go-mp3
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Sendspin/varispeed-go/pkg/audio"
)

// mp3FrameSize is the byte size of one decoded frame; go-mp3 always emits
// 16-bit stereo
const mp3FrameSize = 4

// MP3Source decodes an MP3 stream
type MP3Source struct {
	decoder *mp3.Decoder
	closer  io.Closer
	framer  framer
	size    int
}

// NewMP3Source creates a source decoding MP3 from r. Seeking requires r to
// implement io.Seeker. closer may be nil.
func NewMP3Source(r io.Reader, closer io.Closer, opts ...Option) (*MP3Source, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	if closer == nil {
		closer = nopCloser{}
	}

	o := newOptions(opts)
	format := audio.Format{Codec: "mp3", SampleRate: decoder.SampleRate(), Channels: 2, BitDepth: 16}
	s := &MP3Source{
		decoder: decoder,
		closer:  closer,
		framer:  framer{format: format},
		size:    o.bufferFrames * mp3FrameSize,
	}

	o.logger.Info("Loaded MP3", "sample_rate", format.SampleRate, "duration_us", s.DurationUs())
	return s, nil
}

// Format returns the decoded format
func (s *MP3Source) Format() audio.Format {
	return s.framer.format
}

// Next decodes up to one buffer of frames
func (s *MP3Source) Next() (audio.DecodedBuffer, error) {
	data := make([]byte, s.size)
	n, err := io.ReadFull(s.decoder, data)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return audio.DecodedBuffer{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	n -= n % mp3FrameSize
	if n == 0 {
		return audio.DecodedBuffer{}, io.EOF
	}
	return s.framer.buffer(data[:n]), nil
}

// DurationUs returns the stream length, or -1 when the input cannot seek
func (s *MP3Source) DurationUs() int64 {
	length := s.decoder.Length()
	if length < 0 {
		return -1
	}
	return s.framer.format.DurationUs(length / mp3FrameSize)
}

// SeekUs moves to the frame at timeUs
func (s *MP3Source) SeekUs(timeUs int64) error {
	if s.decoder.Length() < 0 {
		return ErrNotSeekable
	}
	frame := framesAt(timeUs, s.framer.format.SampleRate)
	if _, err := s.decoder.Seek(frame*mp3FrameSize, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek MP3: %w", err)
	}
	s.framer.seek(frame)
	return nil
}

// Close releases the underlying reader
func (s *MP3Source) Close() error {
	return s.closer.Close()
}
