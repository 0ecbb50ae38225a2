// ABOUTME: Streaming speed, pitch and rate engine for interleaved 16-bit PCM
// ABOUTME: Buffers input, applies the speed stage and resamples for pitch and rate
package stretch

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/audio/resample"
)

const (
	// MinRatio is the smallest accepted speed, pitch or rate
	MinRatio = 0.05
	// MaxRatio is the largest accepted speed, pitch or rate
	MaxRatio = 20.0

	// unityTolerance is how close to 1 a factor must be to skip its stage
	unityTolerance = 1e-5

	// ratioTolerance absorbs rounding in the derived stage factors
	ratioTolerance = 1e-9
)

var (
	// ErrInvalidFormat is returned for non-positive sample rates or channel counts
	ErrInvalidFormat = audio.ErrInvalidFormat
	// ErrInvalidRatio is returned for speed, pitch or rate outside [MinRatio, MaxRatio],
	// or when speed/pitch or rate*pitch leaves that range
	ErrInvalidRatio = errors.New("invalid ratio")
	// ErrPartialFrame is returned when written data does not hold whole frames
	ErrPartialFrame = errors.New("partial frame")
	// ErrFault is returned when processing a chunk failed and it was dropped
	ErrFault = errors.New("processing fault")
)

// Option configures an Engine
type Option func(*config)

type config struct {
	minPitchHz int
	maxPitchHz int
	logger     *log.Logger
}

// WithPitchRange sets the pitch range searched by the speed stage
func WithPitchRange(minHz, maxHz int) Option {
	return func(c *config) {
		c.minPitchHz = minHz
		c.maxPitchHz = maxHz
	}
}

// WithLogger sets the logger used to report recovered faults
func WithLogger(logger *log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Engine applies speed, pitch and rate to a stream of interleaved frames.
// All methods are safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	logger *log.Logger

	sampleRate int
	channels   int

	speed  float64
	pitch  float64
	rate   float64
	volume float64

	// Period search bounds in frames
	minPeriod   int
	maxPeriod   int
	maxRequired int

	input           []int16 // pending speed stage input
	stretched       []int16 // speed stage output for the current call
	output          []int16 // frames ready for Read
	mono            []int16 // period search scratch
	scratch         []int16 // WriteBytes conversion scratch
	remainingToCopy int
	carry           float64 // fractional frames owed by skip and insert
	owed            float64 // speed stage output still due for consumed input

	resampler *resample.Resampler
	faults    uint64
}

// New creates an engine for the given format with unity parameters
func New(sampleRate, channels int, opts ...Option) (*Engine, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: %dHz %dch", ErrInvalidFormat, sampleRate, channels)
	}

	cfg := config{
		minPitchHz: DefaultMinPitchHz,
		maxPitchHz: DefaultMaxPitchHz,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.minPitchHz <= 0 || cfg.maxPitchHz < cfg.minPitchHz {
		return nil, fmt.Errorf("invalid pitch range %d-%dHz", cfg.minPitchHz, cfg.maxPitchHz)
	}
	if cfg.logger == nil {
		cfg.logger = log.Default().WithPrefix("stretch")
	}

	r, err := resample.New(channels, 1)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		logger:     cfg.logger,
		sampleRate: sampleRate,
		channels:   channels,
		speed:      1,
		pitch:      1,
		rate:       1,
		volume:     1,
		minPeriod:  max(sampleRate/cfg.maxPitchHz, 1),
		maxPeriod:  max(sampleRate/cfg.minPitchHz, 1),
		resampler:  r,
	}
	e.maxRequired = 2 * e.maxPeriod
	e.mono = make([]int16, 0, e.maxRequired)

	return e, nil
}

// SampleRate returns the stream sample rate
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// Channels returns the number of interleaved channels
func (e *Engine) Channels() int {
	return e.channels
}

// SetSpeed changes tempo without changing pitch. The current value is kept when
// the combined parameters would leave the supported range.
func (e *Engine) SetSpeed(speed float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ValidateParameters(speed, e.pitch, e.rate); err != nil {
		return err
	}
	e.speed = speed
	return nil
}

// Speed returns the current speed
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetPitch changes pitch without changing tempo. The current value is kept when
// the combined parameters would leave the supported range.
func (e *Engine) SetPitch(pitch float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ValidateParameters(e.speed, pitch, e.rate); err != nil {
		return err
	}
	e.pitch = pitch
	return nil
}

// Pitch returns the current pitch factor
func (e *Engine) Pitch() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pitch
}

// SetRate changes tempo and pitch together. The current value is kept when
// the combined parameters would leave the supported range.
func (e *Engine) SetRate(rate float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ValidateParameters(e.speed, e.pitch, rate); err != nil {
		return err
	}
	e.rate = rate
	return nil
}

// Rate returns the current rate
func (e *Engine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// SetParameters replaces speed, pitch and rate together, or none of them
func (e *Engine) SetParameters(speed, pitch, rate float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ValidateParameters(speed, pitch, rate); err != nil {
		return err
	}
	e.speed, e.pitch, e.rate = speed, pitch, rate
	return nil
}

// SetVolume sets the linear gain applied to output frames
func (e *Engine) SetVolume(volume float64) {
	if volume < 0 || math.IsNaN(volume) || math.IsInf(volume, 0) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = volume
}

// Volume returns the linear output gain
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Faults returns the number of chunks dropped after a processing fault
func (e *Engine) Faults() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.faults
}

// OutputFrames returns the number of frames ready to Read
func (e *Engine) OutputFrames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.output) / e.channels
}

// InputFrames returns the number of frames buffered ahead of the speed stage
func (e *Engine) InputFrames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.input) / e.channels
}

// Write appends interleaved frames and processes them with the current
// parameters. Data that does not hold whole frames is rejected.
func (e *Engine) Write(samples []int16) error {
	if len(samples)%e.channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrPartialFrame, len(samples), e.channels)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.write(samples)
}

// WriteBytes is Write for little-endian 16-bit PCM bytes
func (e *Engine) WriteBytes(pcm []byte) error {
	frameSize := e.channels * audio.BytesPerSample
	if len(pcm)%frameSize != 0 {
		return fmt.Errorf("%w: %d bytes for %d byte frames", ErrPartialFrame, len(pcm), frameSize)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scratch = audio.AppendInt16s(e.scratch[:0], pcm)
	return e.write(e.scratch)
}

// Read copies up to len(dst)/channels ready frames into dst and returns
// the number of frames copied.
func (e *Engine) Read(dst []int16) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := min(len(dst)/e.channels, len(e.output)/e.channels) * e.channels
	copy(dst, e.output[:n])
	e.consume(n)
	return n / e.channels
}

// ReadBytes copies ready frames into dst as little-endian 16-bit PCM and
// returns the number of bytes written.
func (e *Engine) ReadBytes(dst []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	frameSize := e.channels * audio.BytesPerSample
	n := min(len(dst)/frameSize, len(e.output)/e.channels) * e.channels
	written := audio.PutInt16s(dst, e.output[:n])
	e.consume(n)
	return written
}

// Flush pushes every buffered frame through so that the output matches the
// input duration scaled by 1/(speed*rate). Call it at end of stream.
func (e *Engine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.speed / e.pitch
	r := e.rate * e.pitch
	pending := float64(len(e.input)/e.channels)/s + e.owed
	expected := len(e.output)/e.channels + int(math.Round((pending+e.resampler.Pending())/r))

	// Enough silence to push the last period through both stages
	silence := 2 * e.maxRequired * e.channels
	for i := 0; i < silence; i++ {
		e.input = append(e.input, 0)
	}
	if err := e.process(); err != nil {
		e.faults++
		e.logger.Error("Flush failed", "err", err)
	}

	want := expected * e.channels
	if len(e.output) > want {
		e.output = e.output[:want]
	}
	for len(e.output) < want {
		e.output = append(e.output, 0)
	}

	e.input = e.input[:0]
	e.remainingToCopy = 0
	e.carry = 0
	e.owed = 0
	e.resampler.Reset()
}

// Reset drops all buffered audio and keeps the parameters
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *Engine) reset() {
	e.input = e.input[:0]
	e.stretched = e.stretched[:0]
	e.output = e.output[:0]
	e.remainingToCopy = 0
	e.carry = 0
	e.owed = 0
	e.resampler.Reset()
}

func (e *Engine) write(samples []int16) error {
	e.input = append(e.input, samples...)
	if err := e.process(); err != nil {
		e.faults++
		e.logger.Error("Dropped chunk", "frames", len(samples)/e.channels, "err", err)
		return err
	}
	return nil
}

// process runs the speed stage and the resampler over the buffered input.
// A panic drops the pending input and keeps the ready output.
func (e *Engine) process() (err error) {
	outputLen := len(e.output)
	defer func() {
		if r := recover(); r != nil {
			e.input = e.input[:0]
			e.output = e.output[:outputLen]
			e.remainingToCopy = 0
			e.carry = 0
			e.owed = 0
			e.resampler.Reset()
			err = fmt.Errorf("%w: %v", ErrFault, r)
		}
	}()

	s := e.speed / e.pitch
	r := e.rate * e.pitch

	e.stretched = e.stretched[:0]
	if math.Abs(s-1) < unityTolerance {
		e.stretched = append(e.stretched, e.input...)
		e.input = e.input[:0]
		e.remainingToCopy = 0
	} else {
		e.changeSpeed(s)
	}

	if math.Abs(r-1) < unityTolerance && e.bypassResampler() {
		e.output = append(e.output, e.stretched...)
	} else {
		if err := e.resampler.SetRatio(r); err != nil {
			return err
		}
		e.resampler.Write(e.stretched)
		e.output = e.resampler.Process(e.output)
	}

	e.applyVolume(e.output[outputLen:])
	return nil
}

// bypassResampler moves any frames held by the resampler to the output
// and reports whether the resampler can be skipped.
func (e *Engine) bypassResampler() bool {
	if e.resampler.Pending() == 0 {
		return true
	}
	out, ok := e.resampler.Drain(e.output)
	e.output = out
	return ok
}

func (e *Engine) applyVolume(samples []int16) {
	if e.volume == 1 {
		return
	}
	for i, s := range samples {
		samples[i] = audio.ClampInt16(int32(math.Round(float64(s) * e.volume)))
	}
}

// consume drops n samples from the front of the output
func (e *Engine) consume(n int) {
	e.output = e.output[:copy(e.output, e.output[n:])]
}

// ValidateParameters checks each ratio and the stage factors derived from
// them: the speed stage runs at speed/pitch and the resampler at rate*pitch.
func ValidateParameters(speed, pitch, rate float64) error {
	if err := errors.Join(
		ValidateRatio("speed", speed),
		ValidateRatio("pitch", pitch),
		ValidateRatio("rate", rate),
	); err != nil {
		return err
	}
	if err := validateFactor("speed/pitch", speed/pitch); err != nil {
		return err
	}
	return validateFactor("rate*pitch", rate*pitch)
}

func validateFactor(name string, v float64) error {
	if v < MinRatio*(1-ratioTolerance) || v > MaxRatio*(1+ratioTolerance) {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrInvalidRatio, name, v, MinRatio, MaxRatio)
	}
	return nil
}

// ValidateRatio checks that v is usable as a speed, pitch or rate
func ValidateRatio(name string, v float64) error {
	if math.IsNaN(v) || v < MinRatio || v > MaxRatio {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrInvalidRatio, name, v, MinRatio, MaxRatio)
	}
	return nil
}
