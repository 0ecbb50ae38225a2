// ABOUTME: WAV file writer sink
// ABOUTME: Writes rendered audio to WAV files, optionally zstd-compressed
package encode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/render"
)

const (
	wavHeaderSize = 44
	// streamingSize is written when the output cannot be rewound
	streamingSize = 0xFFFFFFFF
)

// WAVWriter is a render.Sink that stores every submitted buffer in a WAV
// stream. The header sizes are patched on Close when the destination can
// seek; otherwise they are left marked as unknown.
type WAVWriter struct {
	w       io.Writer
	closer  io.Closer
	format  audio.Format
	encoder *PCMEncoder
	logger  *log.Logger

	samples []int16
	frames  int64
	closed  bool
}

// WAVOption configures a WAVWriter
type WAVOption func(*WAVWriter)

// WithLogger sets the writer logger
func WithLogger(logger *log.Logger) WAVOption {
	return func(w *WAVWriter) {
		w.logger = logger
	}
}

// NewWAVWriter writes a WAV header for format to w. Rendered audio is
// stored at format.BitDepth, 16 or 24. closer may be nil.
func NewWAVWriter(w io.Writer, closer io.Closer, format audio.Format, opts ...WAVOption) (*WAVWriter, error) {
	format.Codec = "pcm"
	if format.BitDepth == 0 {
		format.BitDepth = 16
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("%w: %s", audio.ErrInvalidFormat, format)
	}
	encoder, err := NewPCM(format)
	if err != nil {
		return nil, err
	}

	ww := &WAVWriter{
		w:       w,
		closer:  closer,
		format:  format,
		encoder: encoder,
	}
	for _, opt := range opts {
		opt(ww)
	}
	if ww.logger == nil {
		ww.logger = log.Default().WithPrefix("encode")
	}

	if _, err := w.Write(ww.header(streamingSize)); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return ww, nil
}

// Create opens path for writing. A ".zst" suffix compresses the file.
func Create(path string, format audio.Format, opts ...WAVOption) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	if !strings.EqualFold(filepath.Ext(path), ".zst") {
		w, err := NewWAVWriter(f, f, format, opts...)
		if err != nil {
			f.Close()
			return nil, err
		}
		return w, nil
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd stream: %w", err)
	}
	w, err := NewWAVWriter(zw, closers{zw, f}, format, opts...)
	if err != nil {
		zw.Close()
		f.Close()
		return nil, err
	}
	return w, nil
}

// Submit encodes and writes out. Everything is consumed on success.
func (w *WAVWriter) Submit(out render.ProcessedBuffer) (bool, error) {
	if w.closed {
		return false, errors.New("WAV writer is closed")
	}
	if len(out.Data) == 0 {
		return true, nil
	}

	w.samples = audio.AppendInt16s(w.samples[:0], out.Data)
	data, err := w.encoder.Encode(w.samples)
	if err != nil {
		return false, err
	}
	if _, err := w.w.Write(data); err != nil {
		return false, fmt.Errorf("failed to write WAV data: %w", err)
	}
	w.frames += int64(len(w.samples) / w.format.Channels)
	return true, nil
}

// Format returns the stored format
func (w *WAVWriter) Format() audio.Format {
	return w.format
}

// Frames returns the number of frames written
func (w *WAVWriter) Frames() int64 {
	return w.frames
}

// Bytes returns the size of the file written so far
func (w *WAVWriter) Bytes() int64 {
	return wavHeaderSize + w.dataSize()
}

// Close finalizes the header when possible and closes the destination
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if ws, ok := w.w.(io.WriteSeeker); ok {
		if err := w.patchHeader(ws); err != nil {
			errs = append(errs, err)
		}
	}
	if w.closer != nil {
		errs = append(errs, w.closer.Close())
	}

	w.logger.Debug("Closed WAV", "frames", w.frames, "format", w.format)
	return errors.Join(errs...)
}

func (w *WAVWriter) dataSize() int64 {
	return w.frames * int64(w.format.Channels*w.encoder.BytesPerSample())
}

func (w *WAVWriter) patchHeader(ws io.WriteSeeker) error {
	size := w.dataSize()
	if size > streamingSize-wavHeaderSize {
		return nil
	}
	if _, err := ws.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind WAV: %w", err)
	}
	if _, err := ws.Write(w.header(uint32(size))); err != nil {
		return fmt.Errorf("failed to update WAV header: %w", err)
	}
	_, err := ws.Seek(0, io.SeekEnd)
	return err
}

func (w *WAVWriter) header(dataSize uint32) []byte {
	le := binary.LittleEndian
	bytesPerSample := w.encoder.BytesPerSample()
	blockAlign := w.format.Channels * bytesPerSample

	riffSize := uint32(streamingSize)
	if dataSize != streamingSize {
		riffSize = dataSize + wavHeaderSize - 8
	}

	h := make([]byte, wavHeaderSize)
	copy(h[0:], "RIFF")
	le.PutUint32(h[4:], riffSize)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	le.PutUint32(h[16:], 16)
	le.PutUint16(h[20:], 1)
	le.PutUint16(h[22:], uint16(w.format.Channels))
	le.PutUint32(h[24:], uint32(w.format.SampleRate))
	le.PutUint32(h[28:], uint32(w.format.SampleRate*blockAlign))
	le.PutUint16(h[32:], uint16(blockAlign))
	le.PutUint16(h[34:], uint16(w.format.BitDepth))
	copy(h[36:], "data")
	le.PutUint32(h[40:], dataSize)
	return h
}

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
