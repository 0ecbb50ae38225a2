// ABOUTME: Render loop feeding decoded buffers through the render stage
// ABOUTME: Re-offers unconsumed buffers on a ticker and ends the stream on EOF
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/audio/decode"
	"github.com/Sendspin/varispeed-go/pkg/clock"
	"github.com/Sendspin/varispeed-go/pkg/render"
)

// DefaultInterval is how often the loop retries a sink that was full
const DefaultInterval = 10 * time.Millisecond

// Stats tracks render loop activity
type Stats struct {
	Decoded  int64 // buffers read from the source
	Consumed int64 // buffers the sink took completely
	Retries  int64 // offers the sink could not take
}

// Option configures a Renderer
type Option func(*Renderer)

// WithInterval sets the retry interval
func WithInterval(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the renderer logger
func WithLogger(logger *log.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// WithSeekHook sets a function run on every Seek while the loop is held,
// after the stage is reset and before rendering resumes. Sessions use it
// to drop audio queued in the output.
func WithSeekHook(fn func()) Option {
	return func(r *Renderer) {
		r.onSeek = fn
	}
}

// Renderer pulls buffers from a source and drives them through a stage.
// The clock runs while the loop plays and stops when it is paused or the
// stream ends.
type Renderer struct {
	mu       sync.Mutex
	source   decode.Source
	stage    *render.Stage
	clock    *clock.PlaybackClock
	interval time.Duration
	logger   *log.Logger
	onSeek   func()

	pending   *audio.DecodedBuffer // offered but not yet consumed
	lastIndex int
	eos       bool
	paused    bool
	stats     Stats

	done     chan struct{}
	doneOnce sync.Once
}

// NewRenderer announces the source format to the stage and returns a loop
// ready to Run
func NewRenderer(source decode.Source, stage *render.Stage, clk *clock.PlaybackClock, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		source:    source,
		stage:     stage,
		clock:     clk,
		interval:  DefaultInterval,
		lastIndex: -1,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default().WithPrefix("player")
	}

	if err := stage.OnOutputFormatChanged(source.Format()); err != nil {
		return nil, fmt.Errorf("unsupported source: %w", err)
	}
	return r, nil
}

// Run renders until the stream ends, ctx is done or an error occurs.
// A finished stream returns nil.
func (r *Renderer) Run(ctx context.Context) error {
	defer r.finish()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			r.clock.Stop()
			return err
		}

		progress, finished, err := r.Step()
		if err != nil {
			r.clock.Stop()
			return err
		}
		if finished {
			r.logger.Debug("Stream finished", "position_us", r.clock.PositionUs(), "decoded", r.Stats().Decoded)
			return nil
		}
		if progress {
			continue
		}

		// Sink is full or playback is paused
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// Step offers one buffer to the stage. progress reports whether the sink
// took it; finished reports that the end-of-stream buffer was consumed.
func (r *Renderer) Step() (progress, finished bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused {
		return false, false, nil
	}

	if r.pending == nil {
		buf, err := r.next()
		if err != nil {
			return false, false, err
		}
		r.pending = &buf
	}

	consumed, err := r.stage.ProcessOutputBuffer(*r.pending)
	if err != nil {
		return false, false, err
	}
	if !consumed {
		r.stats.Retries++
		return false, false, nil
	}

	r.clock.Start()
	r.stats.Consumed++
	last := r.pending
	r.pending = nil
	if last.Flags.Has(audio.FlagEndOfStream) {
		r.clock.Stop()
		return true, true, nil
	}
	return true, false, nil
}

// next reads the next buffer, turning EOF into an empty end-of-stream
// buffer so the stage flushes its tail
func (r *Renderer) next() (audio.DecodedBuffer, error) {
	if r.eos {
		return audio.DecodedBuffer{}, io.EOF
	}

	buf, err := r.source.Next()
	if errors.Is(err, io.EOF) {
		r.eos = true
		r.lastIndex++
		return audio.DecodedBuffer{
			Index:              r.lastIndex,
			PresentationTimeUs: r.clock.PositionUs(),
			Flags:              audio.FlagEndOfStream,
		}, nil
	}
	if err != nil {
		return audio.DecodedBuffer{}, fmt.Errorf("failed to decode: %w", err)
	}
	r.stats.Decoded++
	r.lastIndex = buf.Index
	return buf, nil
}

// Pause stops the clock and holds the current buffer
func (r *Renderer) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
	r.clock.Stop()
}

// Resume continues after Pause
func (r *Renderer) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
	if r.pending != nil || !r.eos {
		r.clock.Start()
	}
}

// Paused reports whether the loop is paused
func (r *Renderer) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Seek moves the source to timeUs, discards audio buffered in the stage
// and rebases the clock
func (r *Renderer) Seek(timeUs int64) error {
	seeker, ok := r.source.(decode.Seeker)
	if !ok {
		return decode.ErrNotSeekable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d := r.source.DurationUs(); d >= 0 {
		timeUs = min(timeUs, d)
	}
	timeUs = max(timeUs, 0)

	if err := seeker.SeekUs(timeUs); err != nil {
		return err
	}
	r.stage.Reset()
	if r.onSeek != nil {
		r.onSeek()
	}
	r.clock.SetPositionUs(timeUs)
	r.pending = nil
	r.eos = false
	r.logger.Debug("Seeked", "position_us", timeUs)
	return nil
}

// Done is closed when Run returns
func (r *Renderer) Done() <-chan struct{} {
	return r.done
}

// Stats returns a snapshot of the loop counters
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Renderer) finish() {
	r.doneOnce.Do(func() { close(r.done) })
}
