// ABOUTME: PCM audio source
// ABOUTME: Reads 16-bit and 24-bit interleaved PCM and emits 16-bit buffers
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Sendspin/varispeed-go/pkg/audio"
)

// PCMSource reads headerless interleaved PCM
type PCMSource struct {
	r        io.Reader
	closer   io.Closer
	in       audio.Format
	framer   framer
	frames   int
	raw      []byte
	start    int64 // byte offset of the first frame
	length   int64 // bytes of audio, -1 when unknown
	consumed int64
}

// NewPCMSource creates a source reading PCM in format from r.
// closer may be nil.
func NewPCMSource(r io.Reader, closer io.Closer, format audio.Format, opts ...Option) (*PCMSource, error) {
	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("%w: %s", audio.ErrInvalidFormat, format)
	}
	if closer == nil {
		closer = nopCloser{}
	}

	o := newOptions(opts)
	out := audio.Format{Codec: "pcm", SampleRate: format.SampleRate, Channels: format.Channels, BitDepth: 16}

	return &PCMSource{
		r:      r,
		closer: closer,
		in:     format,
		framer: framer{format: out},
		frames: o.bufferFrames,
		raw:    make([]byte, o.bufferFrames*inFrameSize(format)),
		length: -1,
	}, nil
}

func inFrameSize(f audio.Format) int {
	return f.Channels * f.BitDepth / 8
}

// Format returns the 16-bit output format
func (s *PCMSource) Format() audio.Format {
	return s.framer.format
}

// Next reads up to one buffer of frames
func (s *PCMSource) Next() (audio.DecodedBuffer, error) {
	want := len(s.raw)
	if s.length >= 0 {
		want = int(min(int64(want), s.length-s.consumed))
	}
	if want <= 0 {
		return audio.DecodedBuffer{}, io.EOF
	}

	n, err := io.ReadFull(s.r, s.raw[:want])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return audio.DecodedBuffer{}, io.EOF
		}
		return audio.DecodedBuffer{}, fmt.Errorf("failed to read PCM: %w", err)
	}
	s.consumed += int64(n)

	// A trailing partial frame is discarded
	frameSize := inFrameSize(s.in)
	n -= n % frameSize
	if n == 0 {
		return audio.DecodedBuffer{}, io.EOF
	}

	return s.framer.buffer(s.convert(s.raw[:n])), nil
}

// convert returns 16-bit little-endian PCM for raw input frames
func (s *PCMSource) convert(raw []byte) []byte {
	if s.in.BitDepth == 16 {
		return append([]byte(nil), raw...)
	}

	// 24-bit PCM: 3 bytes per sample
	numSamples := len(raw) / 3
	out := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		b := [3]byte{raw[i*3], raw[i*3+1], raw[i*3+2]}
		sample := audio.SampleToInt16(audio.SampleFrom24Bit(b))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// DurationUs returns the length when the data size is known
func (s *PCMSource) DurationUs() int64 {
	if s.length < 0 {
		return -1
	}
	return s.framer.format.DurationUs(s.length / int64(inFrameSize(s.in)))
}

// SeekUs moves to the frame at timeUs when the reader supports seeking
func (s *PCMSource) SeekUs(timeUs int64) error {
	seeker, ok := s.r.(io.Seeker)
	if !ok {
		return ErrNotSeekable
	}

	frame := framesAt(timeUs, s.in.SampleRate)
	offset := frame * int64(inFrameSize(s.in))
	if s.length >= 0 && offset > s.length {
		offset = s.length - s.length%int64(inFrameSize(s.in))
		frame = offset / int64(inFrameSize(s.in))
	}

	if _, err := seeker.Seek(s.start+offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek PCM: %w", err)
	}
	s.consumed = offset
	s.framer.seek(frame)
	return nil
}

// Close releases the underlying reader
func (s *PCMSource) Close() error {
	return s.closer.Close()
}
