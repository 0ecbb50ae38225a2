// ABOUTME: WAV container parsing
// ABOUTME: Reads RIFF headers and exposes the data chunk as a PCM source
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Sendspin/varispeed-go/pkg/audio"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE

	// wavStreamingSize marks a data chunk written without a known length
	wavStreamingSize = 0xFFFFFFFF
)

// ErrInvalidWAV is returned for malformed or unsupported WAV files
var ErrInvalidWAV = errors.New("invalid WAV file")

// WAVHeader describes the audio in a WAV file
type WAVHeader struct {
	Format     audio.Format
	DataOffset int64 // byte offset of the data chunk payload
	DataSize   int64 // -1 when the writer could not record it
}

// ReadWAVHeader reads chunks up to the start of the audio data, leaving r
// positioned at the first frame.
func ReadWAVHeader(r io.Reader) (WAVHeader, error) {
	var h WAVHeader
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return h, fmt.Errorf("%w: missing RIFF/WAVE signature", ErrInvalidWAV)
	}
	offset := int64(len(riff))

	haveFormat := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return h, fmt.Errorf("%w: no data chunk: %v", ErrInvalidWAV, err)
		}
		offset += int64(len(chunk))
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return h, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return h, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
			tag := binary.LittleEndian.Uint16(body[0:2])
			if tag != wavFormatPCM && tag != wavFormatExtensible {
				return h, fmt.Errorf("%w: format tag %#x is not PCM", ErrInvalidWAV, tag)
			}
			h.Format = audio.Format{
				Codec:      "pcm",
				Channels:   int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
				BitDepth:   int(binary.LittleEndian.Uint16(body[14:16])),
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return h, fmt.Errorf("%w: data before fmt chunk", ErrInvalidWAV)
			}
			h.DataOffset = offset
			h.DataSize = size
			if size == wavStreamingSize {
				h.DataSize = -1
			}
			return h, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size); err != nil {
				return h, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
		}
		// Chunks are word aligned
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return h, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
			}
			size++
		}
		offset += size
	}
}

// NewWAVSource parses a WAV header from r and returns a source for its
// audio data. closer may be nil.
func NewWAVSource(r io.Reader, closer io.Closer, opts ...Option) (*PCMSource, error) {
	h, err := ReadWAVHeader(r)
	if err != nil {
		return nil, err
	}

	s, err := NewPCMSource(r, closer, h.Format, opts...)
	if err != nil {
		return nil, err
	}
	s.framer.format.Codec = "wav"
	s.start = h.DataOffset
	s.length = h.DataSize

	o := newOptions(opts)
	o.logger.Info("Loaded WAV", "format", h.Format, "duration_us", s.DurationUs())
	return s, nil
}
