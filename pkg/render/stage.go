// ABOUTME: Render stage composing a stretch engine with the playback clock
// ABOUTME: Owns the engine per format epoch and deduplicates repeated buffers
package render

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/audio/stretch"
	"github.com/Sendspin/varispeed-go/pkg/clock"
)

const (
	// DefaultFrameBudget is the decoder buffer size in frames the stage sizes for
	DefaultFrameBudget = 4096
	// DefaultOutputHeadroom is how many frame budgets the output region holds
	DefaultOutputHeadroom = 4
)

// ErrInvalidFormat is returned for output formats the stage cannot render
var ErrInvalidFormat = audio.ErrInvalidFormat

// ProcessedBuffer is one unit of stage output.
// Data aliases a stage-owned region and is valid until the next call into
// the stage.
type ProcessedBuffer struct {
	Index              int
	PresentationTimeUs int64
	Flags              audio.Flags
	Data               []byte
}

// Sink receives processed audio
type Sink interface {
	// Submit offers out to the sink and reports whether all of it was
	// consumed. Unconsumed buffers are offered again.
	Submit(out ProcessedBuffer) (consumed bool, err error)
}

// Stats counts stage activity
type Stats struct {
	Processed  uint64 // buffers written to the engine
	Duplicates uint64 // buffers resubmitted without engine work
	Dropped    uint64 // buffers discarded without a valid format
	Faults     uint64 // engine write failures
	Epochs     uint64 // valid format announcements
}

// Option configures a Stage
type Option func(*Stage)

// WithFrameBudget sets the expected decoder buffer size in frames
func WithFrameBudget(frames int) Option {
	return func(s *Stage) {
		if frames > 0 {
			s.frameBudget = frames
		}
	}
}

// WithOutputHeadroom sets how many frame budgets the output region holds
func WithOutputHeadroom(n int) Option {
	return func(s *Stage) {
		if n > 0 {
			s.headroom = n
		}
	}
}

// WithEngineOptions passes options to every engine the stage creates
func WithEngineOptions(opts ...stretch.Option) Option {
	return func(s *Stage) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithLogger sets the stage logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Stage) {
		s.logger = logger
	}
}

// Stage transforms decoded buffers with the current speed, pitch and rate
// and hands the result to a Sink.
//
// One goroutine drives ProcessOutputBuffer while others may change
// parameters. The lock is held for one buffer or one parameter change.
type Stage struct {
	mu       sync.Mutex
	sink     Sink
	clock    *clock.PlaybackClock
	logger   *log.Logger
	reporter *reporter

	frameBudget int
	headroom    int
	engineOpts  []stretch.Option

	format audio.Format
	engine *stretch.Engine

	// Requested parameters, applied to every new engine
	speed  float64
	pitch  float64
	rate   float64
	volume float64

	output   []byte
	outIndex int
	outValid bool
	outPts   int64
	outFlags audio.Flags
	stats    Stats
}

// NewStage creates an uninitialized stage. No audio is rendered until a
// valid output format is announced.
func NewStage(sink Sink, clk *clock.PlaybackClock, opts ...Option) *Stage {
	s := &Stage{
		sink:        sink,
		clock:       clk,
		frameBudget: DefaultFrameBudget,
		headroom:    DefaultOutputHeadroom,
		speed:       1,
		pitch:       1,
		rate:        1,
		volume:      1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default().WithPrefix("render")
	}
	s.reporter = newReporter(s.logger, time.Second, 5)
	return s
}

// OnOutputFormatChanged starts a new epoch for format f. An invalid format
// leaves the stage uninitialized and the error is returned for logging.
func (s *Stage) OnOutputFormatChanged(f audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine = nil
	s.outValid = false
	s.output = s.output[:0]

	if err := f.Validate(); err != nil {
		s.format = audio.Format{}
		s.reporter.Warn("Rejected output format", "format", f, "err", err)
		return fmt.Errorf("output format: %w", err)
	}

	opts := append([]stretch.Option{stretch.WithLogger(s.logger)}, s.engineOpts...)
	engine, err := stretch.New(f.SampleRate, f.Channels, opts...)
	if err != nil {
		s.format = audio.Format{}
		s.reporter.Error("Failed to create engine", "format", f, "err", err)
		return fmt.Errorf("output format: %w", err)
	}
	// Pending values were validated when set
	engine.SetParameters(s.speed, s.pitch, s.rate)
	engine.SetVolume(s.volume)

	size := f.FrameSize() * s.frameBudget * s.headroom
	if cap(s.output) < size {
		s.output = make([]byte, 0, size)
	}

	s.format = f
	s.engine = engine
	s.stats.Epochs++
	s.logger.Debug("Output format changed", "format", f, "epoch", s.stats.Epochs)
	return nil
}

// Format returns the current output format and whether it is valid
func (s *Stage) Format() (audio.Format, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format, s.engine != nil
}

// ProcessOutputBuffer renders buf and submits the result to the sink.
//
// A buffer with the same index as the last one is not processed again; the
// output already produced for it is resubmitted. Returns whether the sink
// consumed the output.
func (s *Stage) ProcessOutputBuffer(buf audio.DecodedBuffer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		s.stats.Dropped++
		s.reporter.Warn("Dropping buffer without output format", "index", buf.Index)
		return true, nil
	}

	if s.outValid && buf.Index == s.outIndex {
		s.stats.Duplicates++
		return s.submit()
	}

	if buf.Flags.Has(audio.FlagDecodeOnly) {
		return true, nil
	}

	if len(buf.Data) > 0 {
		if err := s.engine.WriteBytes(buf.Data); err != nil {
			s.stats.Faults++
			s.reporter.Error("Engine rejected buffer", "index", buf.Index, "err", err)
		}
	}
	if buf.Flags.Has(audio.FlagEndOfStream) {
		s.engine.Flush()
	}
	s.stats.Processed++

	// Grow only when the engine holds more than the region
	need := s.engine.OutputFrames() * s.format.FrameSize()
	if cap(s.output) < need {
		s.output = make([]byte, 0, need)
	}
	n := s.engine.ReadBytes(s.output[:need])
	s.output = s.output[:n]

	s.outIndex = buf.Index
	s.outPts = buf.PresentationTimeUs
	s.outFlags = buf.Flags
	s.outValid = true

	return s.submit()
}

func (s *Stage) submit() (bool, error) {
	consumed, err := s.sink.Submit(ProcessedBuffer{
		Index:              s.outIndex,
		PresentationTimeUs: s.outPts,
		Flags:              s.outFlags,
		Data:               s.output,
	})
	if err != nil {
		s.reporter.Error("Sink rejected buffer", "index", s.outIndex, "err", err)
		return false, fmt.Errorf("submit buffer %d: %w", s.outIndex, err)
	}
	return consumed, nil
}

// SetSpeed changes tempo. Invalid values are logged and ignored.
func (s *Stage) SetSpeed(speed float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply("speed", speed, s.pitch, s.rate)
}

// SetPitch changes pitch. Invalid values are logged and ignored.
func (s *Stage) SetPitch(pitch float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply("pitch", s.speed, pitch, s.rate)
}

// SetRate changes tempo and pitch together. Invalid values are logged and ignored.
func (s *Stage) SetRate(rate float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply("rate", s.speed, s.pitch, rate)
}

// SetParameters replaces speed, pitch and rate together. When the
// combination is invalid nothing changes.
func (s *Stage) SetParameters(speed, pitch, rate float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply("parameters", speed, pitch, rate)
}

// apply validates the combined parameters, then updates the stage, the
// engine and the clock. Caller holds s.mu.
func (s *Stage) apply(what string, speed, pitch, rate float64) bool {
	if err := stretch.ValidateParameters(speed, pitch, rate); err != nil {
		s.reporter.Warn("Ignoring "+what, "err", err)
		return false
	}
	s.speed, s.pitch, s.rate = speed, pitch, rate
	if s.engine != nil {
		s.engine.SetParameters(speed, pitch, rate)
	}
	s.syncClock()
	return true
}

// Speed returns the speed applied by the engine, or the pending speed
// when no format has been announced.
func (s *Stage) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		return s.engine.Speed()
	}
	return s.speed
}

// Pitch returns the requested pitch
func (s *Stage) Pitch() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pitch
}

// Rate returns the requested rate
func (s *Stage) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// PositionUs returns the playback position from the clock
func (s *Stage) PositionUs() int64 {
	return s.clock.PositionUs()
}

// PlaybackParameters returns the parameters held by the clock
func (s *Stage) PlaybackParameters() clock.Parameters {
	return s.clock.PlaybackParameters()
}

// SetPlaybackParameters applies p's speed and pitch to the engine and the
// clock. Invalid fields are logged and ignored. Returns the parameters the
// clock now holds.
func (s *Stage) SetPlaybackParameters(p clock.Parameters) clock.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Each field is checked against the values already in effect
	s.apply("speed", p.Speed, s.pitch, s.rate)
	s.apply("pitch", s.speed, p.Pitch, s.rate)
	return s.clock.PlaybackParameters()
}

// SetVolume sets the output gain of the current and future engines
func (s *Stage) SetVolume(volume float64) {
	if volume < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
	if s.engine != nil {
		s.engine.SetVolume(volume)
	}
}

// Stats returns a snapshot of the stage counters
func (s *Stage) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Reset drops buffered audio and forgets the last buffer, as after a seek
func (s *Stage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		s.engine.Reset()
	}
	s.outValid = false
	s.output = s.output[:0]
}

// syncClock pushes the effective playback speed into the clock.
// Rate changes tempo as well as pitch, so the clock runs at speed*rate.
func (s *Stage) syncClock() {
	s.clock.SetPlaybackParameters(clock.Parameters{
		Speed: s.speed * s.rate,
		Pitch: s.pitch,
	})
}
