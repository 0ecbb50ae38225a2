// ABOUTME: Playback session orchestration
// ABOUTME: Wires a source, render stage, clock and output into one controllable unit
package app

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Sendspin/varispeed-go/internal/config"
	"github.com/Sendspin/varispeed-go/internal/player"
	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/audio/decode"
	"github.com/Sendspin/varispeed-go/pkg/audio/output"
	"github.com/Sendspin/varispeed-go/pkg/audio/stretch"
	"github.com/Sendspin/varispeed-go/pkg/clock"
	"github.com/Sendspin/varispeed-go/pkg/render"
)

const (
	// MinSpeed and MaxSpeed bound the interactive speed controls
	MinSpeed = 0.5
	MaxSpeed = 2.0

	// semitone is the pitch ratio of one equal-tempered step
	semitone = 1.0594630943592953
)

// SpeedPresets are the speeds offered for direct selection
var SpeedPresets = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 2.0}

// Volume is implemented by outputs with software volume
type Volume interface {
	SetVolume(volume int)
	Volume() int
	SetMuted(muted bool)
	Muted() bool
}

// Status is a snapshot of a session for display
type Status struct {
	ID         string
	Name       string
	Format     audio.Format
	PositionUs int64
	DurationUs int64
	Speed      float64
	Pitch      float64
	Rate       float64
	Paused     bool
	Finished   bool
	Volume     int
	Muted      bool
	Stage      render.Stats
	Player     player.Stats
	Latency    time.Duration
	Underruns  uint64
	Err        error
}

// Session plays one source through a render stage to an output
type Session struct {
	id       uuid.UUID
	name     string
	source   decode.Source
	out      output.Output
	stage    *render.Stage
	clock    *clock.PlaybackClock
	renderer *player.Renderer
	logger   *log.Logger

	mu        sync.Mutex
	speedStep float64
	finished  bool
	err       error
}

// NewSession opens out for the source format and applies the speed,
// pitch, rate and volume from cfg
func NewSession(name string, src decode.Source, out output.Output, cfg config.Config) (*Session, error) {
	id := uuid.New()
	logger := log.Default().WithPrefix("session").With("id", id.String()[:8])

	if err := out.Open(src.Format()); err != nil {
		return nil, fmt.Errorf("failed to open output: %w", err)
	}

	clk := clock.New(clock.WithLogger(logger))
	stage := NewStage(out, clk, cfg, logger)

	// Queued output is dropped inside the seek so a concurrent Step cannot
	// submit stale audio in between
	renderer, err := player.NewRenderer(src, stage, clk,
		player.WithLogger(logger),
		player.WithSeekHook(out.Reset),
	)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        id,
		name:      filepath.Base(name),
		source:    src,
		out:       out,
		stage:     stage,
		clock:     clk,
		renderer:  renderer,
		logger:    logger,
		speedStep: cfg.SpeedStep,
	}
	if v, ok := out.(Volume); ok {
		v.SetVolume(cfg.Volume)
	}

	logger.Info("Session created", "name", s.name, "format", src.Format(), "duration_us", src.DurationUs())
	return s, nil
}

// NewStage creates a render stage for sink with the engine settings and
// playback parameters from cfg
func NewStage(sink render.Sink, clk *clock.PlaybackClock, cfg config.Config, logger *log.Logger) *render.Stage {
	stage := render.NewStage(sink, clk,
		render.WithLogger(logger),
		render.WithFrameBudget(cfg.FrameBudget),
		render.WithOutputHeadroom(cfg.OutputHeadroom),
		render.WithEngineOptions(stretch.WithPitchRange(cfg.MinPitchHz, cfg.MaxPitchHz)),
	)
	stage.SetParameters(cfg.Speed, cfg.Pitch, cfg.Rate)
	return stage
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Stage returns the render stage
func (s *Session) Stage() *render.Stage {
	return s.stage
}

// Run plays until the source ends or ctx is done
func (s *Session) Run(ctx context.Context) error {
	err := s.renderer.Run(ctx)

	s.mu.Lock()
	s.finished = true
	if err != nil && ctx.Err() == nil {
		s.err = err
	}
	s.mu.Unlock()

	if err != nil && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		s.logger.Error("Playback failed", "err", err)
		return err
	}
	s.logger.Info("Playback finished", "position_us", s.clock.PositionUs())
	return nil
}

// Done is closed when Run returns
func (s *Session) Done() <-chan struct{} {
	return s.renderer.Done()
}

// TogglePause pauses or resumes playback and reports whether it is now paused
func (s *Session) TogglePause() bool {
	if s.renderer.Paused() {
		s.renderer.Resume()
		return false
	}
	s.renderer.Pause()
	return true
}

// Seek moves playback by deltaUs of media time
func (s *Session) Seek(deltaUs int64) error {
	return s.SeekTo(s.clock.PositionUs() + deltaUs)
}

// SeekTo moves playback to timeUs
func (s *Session) SeekTo(timeUs int64) error {
	if err := s.renderer.Seek(timeUs); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// AdjustSpeed changes speed by steps of the configured step size, within
// MinSpeed and MaxSpeed, and returns the new speed
func (s *Session) AdjustSpeed(steps int) float64 {
	s.mu.Lock()
	step := s.speedStep
	s.mu.Unlock()

	speed := s.stage.Speed() + float64(steps)*step
	speed = math.Round(speed*100) / 100
	return s.SetSpeed(max(MinSpeed, min(speed, MaxSpeed)))
}

// SetSpeed sets the speed and returns the speed in effect
func (s *Session) SetSpeed(speed float64) float64 {
	s.stage.SetSpeed(speed)
	return s.stage.Speed()
}

// AdjustPitch shifts pitch by semitones and returns the new pitch factor
func (s *Session) AdjustPitch(semitones int) float64 {
	pitch := s.stage.Pitch() * math.Pow(semitone, float64(semitones))
	// Snap back to unity after equal up and down steps
	if math.Abs(pitch-1) < 1e-9 {
		pitch = 1
	}
	s.stage.SetPitch(pitch)
	return s.stage.Pitch()
}

// AdjustRate changes rate by steps of the configured step size
func (s *Session) AdjustRate(steps int) float64 {
	s.mu.Lock()
	step := s.speedStep
	s.mu.Unlock()

	rate := math.Round((s.stage.Rate()+float64(steps)*step)*100) / 100
	s.stage.SetRate(max(MinSpeed, min(rate, MaxSpeed)))
	return s.stage.Rate()
}

// ResetParameters returns speed, pitch and rate to 1
func (s *Session) ResetParameters() {
	s.stage.SetParameters(1, 1, 1)
}

// AdjustVolume changes the output volume by delta percent
func (s *Session) AdjustVolume(delta int) {
	if v, ok := s.out.(Volume); ok {
		v.SetVolume(v.Volume() + delta)
	}
}

// ToggleMute mutes or unmutes the output
func (s *Session) ToggleMute() {
	if v, ok := s.out.(Volume); ok {
		v.SetMuted(!v.Muted())
	}
}

// ApplyConfig applies settings changed in the config file
func (s *Session) ApplyConfig(cfg config.Config) {
	s.mu.Lock()
	s.speedStep = cfg.SpeedStep
	s.mu.Unlock()

	s.stage.SetParameters(cfg.Speed, cfg.Pitch, cfg.Rate)
	if v, ok := s.out.(Volume); ok {
		v.SetVolume(cfg.Volume)
	}
	s.logger.Info("Applied configuration", "speed", cfg.Speed, "pitch", cfg.Pitch, "rate", cfg.Rate)
}

// Status returns a snapshot for display
func (s *Session) Status() Status {
	format, _ := s.stage.Format()
	st := Status{
		ID:         s.id.String(),
		Name:       s.name,
		Format:     format,
		PositionUs: s.clock.PositionUs(),
		DurationUs: s.source.DurationUs(),
		Speed:      s.stage.Speed(),
		Pitch:      s.stage.Pitch(),
		Rate:       s.stage.Rate(),
		Paused:     s.renderer.Paused(),
		Stage:      s.stage.Stats(),
		Player:     s.renderer.Stats(),
		Volume:     100,
	}
	if v, ok := s.out.(Volume); ok {
		st.Volume = v.Volume()
		st.Muted = v.Muted()
	}
	if o, ok := s.out.(*output.Oto); ok {
		st.Latency = o.Latency()
		st.Underruns = o.Underruns()
	}

	s.mu.Lock()
	st.Finished = s.finished
	st.Err = s.err
	s.mu.Unlock()
	return st
}

// Close releases the source and output
func (s *Session) Close() error {
	srcErr := s.source.Close()
	outErr := s.out.Close()
	if srcErr != nil {
		return srcErr
	}
	return outErr
}
