// ABOUTME: Variable-rate playback clock
// ABOUTME: Maps real elapsed time to media time under a changeable speed
package clock

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Parameters is the externally visible playback parameter tuple
type Parameters struct {
	Speed float64
	Pitch float64
}

// DefaultParameters is normal speed and pitch
var DefaultParameters = Parameters{Speed: 1, Pitch: 1}

// MediaClock is a source of playback position
type MediaClock interface {
	PositionUs() int64
	PlaybackParameters() Parameters
}

// TimeSource returns monotonic real time
type TimeSource func() time.Duration

// MonotonicTimeSource returns a TimeSource measuring time since its creation
func MonotonicTimeSource() TimeSource {
	origin := time.Now()
	return func() time.Duration {
		return time.Since(origin)
	}
}

// Option configures a PlaybackClock
type Option func(*PlaybackClock)

// WithTimeSource replaces the monotonic wall clock
func WithTimeSource(now TimeSource) Option {
	return func(c *PlaybackClock) {
		c.now = now
	}
}

// WithLogger sets the logger used for rejected parameter changes
func WithLogger(logger *log.Logger) Option {
	return func(c *PlaybackClock) {
		c.logger = logger
	}
}

// PlaybackClock advances media time with real time scaled by speed.
//
// Media time is kept in fractional milliseconds so that many short
// accrual intervals do not accumulate truncation error; conversion to
// microseconds happens only when the position is read.
type PlaybackClock struct {
	mu              sync.Mutex
	now             TimeSource
	logger          *log.Logger
	started         bool
	lastMediaTimeMs float64
	lastRealTime    time.Duration
	speed           float64
	params          Parameters
}

// New creates a stopped clock at position zero with default parameters
func New(opts ...Option) *PlaybackClock {
	c := &PlaybackClock{
		speed:  1,
		params: DefaultParameters,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.now == nil {
		c.now = MonotonicTimeSource()
	}
	if c.logger == nil {
		c.logger = log.Default().WithPrefix("clock")
	}
	return c
}

// Start starts the clock. Does nothing if the clock is already started.
func (c *PlaybackClock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return
	}
	c.lastRealTime = c.now()
	c.started = true
}

// Stop stops the clock. Does nothing if the clock is already stopped.
func (c *PlaybackClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}
	c.foldForward()
	c.started = false
}

// Started reports whether the clock is advancing
func (c *PlaybackClock) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// PositionUs returns the current media time in microseconds
func (c *PlaybackClock) PositionUs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.foldForward()
	return c.positionUs()
}

// SetPositionUs rebases the clock at the given media time
func (c *PlaybackClock) SetPositionUs(timeUs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rebase(timeUs)
}

// SetPlaybackParameters stores p and applies its speed from now on.
//
// Time elapsed so far is committed at the old speed before the new speed
// takes effect. p is returned unchanged; a speed that cannot drive the clock
// is stored for retrieval but accrual keeps the previous speed.
func (c *PlaybackClock) SetPlaybackParameters(p Parameters) Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		c.foldForward()
		c.rebase(c.positionUs())
	}
	c.params = p

	if validSpeed(p.Speed) {
		c.speed = p.Speed
	} else {
		c.logger.Warn("Ignoring playback speed", "speed", p.Speed, "kept", c.speed)
	}

	return p
}

// PlaybackParameters returns the last stored parameters verbatim
func (c *PlaybackClock) PlaybackParameters() Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// SetPlaybackSpeed commits elapsed time at the old speed and replaces it
func (c *PlaybackClock) SetPlaybackSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !validSpeed(speed) {
		c.logger.Warn("Ignoring playback speed", "speed", speed, "kept", c.speed)
		return
	}
	c.foldForward()
	c.speed = speed
	c.params.Speed = speed
}

// PlaybackSpeed returns the speed media time currently accrues at
func (c *PlaybackClock) PlaybackSpeed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Synchronize copies the position and parameters of another clock
func (c *PlaybackClock) Synchronize(other MediaClock) {
	positionUs := other.PositionUs()
	params := other.PlaybackParameters()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rebase(positionUs)
	c.params = params
	if validSpeed(params.Speed) {
		c.speed = params.Speed
	}
}

// foldForward settles elapsed real time into media time at the current speed
func (c *PlaybackClock) foldForward() {
	if !c.started {
		return
	}
	realTime := c.now()
	elapsedMs := float64(realTime-c.lastRealTime) / float64(time.Millisecond)
	c.lastMediaTimeMs += elapsedMs * c.speed
	c.lastRealTime = realTime
}

func (c *PlaybackClock) rebase(timeUs int64) {
	c.lastRealTime = c.now()
	c.lastMediaTimeMs = float64(timeUs) / 1000.0
}

// positionUs truncates; the epsilon absorbs representation error of
// millisecond values rebased from whole microseconds.
func (c *PlaybackClock) positionUs() int64 {
	return int64(math.Floor(c.lastMediaTimeMs*1000 + 1e-6))
}

func validSpeed(speed float64) bool {
	return speed > 0 && !math.IsNaN(speed) && !math.IsInf(speed, 0)
}
