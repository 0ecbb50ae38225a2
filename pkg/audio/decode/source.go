// ABOUTME: Source interface and file opening by extension
// ABOUTME: Shares buffer indexing and timestamps across all decoders
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"github.com/Sendspin/varispeed-go/pkg/audio"
)

// DefaultBufferFrames is the number of frames per decoded buffer
const DefaultBufferFrames = 4096

var (
	// ErrUnsupported is returned for files no decoder handles
	ErrUnsupported = errors.New("unsupported audio format")
	// ErrNotSeekable is returned when seeking a stream without random access
	ErrNotSeekable = errors.New("source is not seekable")
)

// Source produces decoded 16-bit PCM buffers
type Source interface {
	// Format returns the format of every buffer the source emits
	Format() audio.Format
	// Next returns the next buffer, or io.EOF at the end of the stream
	Next() (audio.DecodedBuffer, error)
	// DurationUs returns the stream length, or -1 when unknown
	DurationUs() int64
	// Close releases the underlying file
	Close() error
}

// Seeker is implemented by sources with random access
type Seeker interface {
	// SeekUs moves the read position to the given media time
	SeekUs(timeUs int64) error
}

// Option configures a Source
type Option func(*options)

type options struct {
	bufferFrames int
	rawFormat    audio.Format
	logger       *log.Logger
}

// WithBufferFrames sets the number of frames per decoded buffer
func WithBufferFrames(frames int) Option {
	return func(o *options) {
		if frames > 0 {
			o.bufferFrames = frames
		}
	}
}

// WithRawFormat sets the format assumed for headerless PCM files
func WithRawFormat(f audio.Format) Option {
	return func(o *options) {
		o.rawFormat = f
	}
}

// WithLogger sets the logger used when files are loaded
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{
		bufferFrames: DefaultBufferFrames,
		rawFormat:    audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 16},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default().WithPrefix("decode")
	}
	return o
}

// Open creates a source for the file at path based on its extension.
// A trailing ".zst" is decompressed transparently; such sources cannot seek.
func Open(path string, opts ...Option) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	var r io.Reader = f
	closer := io.Closer(f)
	name := path

	if strings.EqualFold(filepath.Ext(name), ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		rc := zr.IOReadCloser()
		r = rc
		closer = closers{rc, f}
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	src, err := openReader(r, closer, strings.ToLower(filepath.Ext(name)), opts)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

func openReader(r io.Reader, closer io.Closer, ext string, opts []Option) (Source, error) {
	switch ext {
	case ".wav", ".wave":
		return NewWAVSource(r, closer, opts...)
	case ".pcm", ".raw":
		o := newOptions(opts)
		return NewPCMSource(r, closer, o.rawFormat, opts...)
	case ".mp3":
		return NewMP3Source(r, closer, opts...)
	case ".flac":
		return NewFLACSource(r, closer, opts...)
	default:
		return nil, fmt.Errorf("%w: %q (supported: .wav, .pcm, .raw, .mp3, .flac)", ErrUnsupported, ext)
	}
}

// framer assigns indices and timestamps to emitted buffers
type framer struct {
	format audio.Format
	index  int
	frames int64
}

func (f *framer) buffer(data []byte) audio.DecodedBuffer {
	b := audio.DecodedBuffer{
		Index:              f.index,
		Data:               data,
		PresentationTimeUs: f.format.DurationUs(f.frames),
	}
	f.index++
	f.frames += int64(len(data) / f.format.FrameSize())
	return b
}

// seek moves the timestamp base; indices keep increasing
func (f *framer) seek(frames int64) {
	f.frames = frames
}

func framesAt(timeUs int64, sampleRate int) int64 {
	if timeUs <= 0 {
		return 0
	}
	return timeUs * int64(sampleRate) / 1000000
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
