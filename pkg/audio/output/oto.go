// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays rendered PCM from a ring buffer with software volume control
package output

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/render"
)

// DefaultBufferDuration is how much audio the Oto ring buffer holds
const DefaultBufferDuration = 250 * time.Millisecond

// OtoOption configures an Oto output
type OtoOption func(*Oto)

// WithBufferDuration sets the ring buffer length
func WithBufferDuration(d time.Duration) OtoOption {
	return func(o *Oto) {
		if d > 0 {
			o.bufferDuration = d
		}
	}
}

// WithLogger sets the output logger
func WithLogger(logger *log.Logger) OtoOption {
	return func(o *Oto) {
		o.logger = logger
	}
}

// Oto output implementation using oto library
type Oto struct {
	mu             sync.Mutex
	logger         *log.Logger
	bufferDuration time.Duration

	otoCtx  *oto.Context
	player  *oto.Player
	ring    *RingBuffer
	format  audio.Format
	pending partial
	scratch []byte

	volume int
	muted  bool
}

// NewOto creates a new Oto output
func NewOto(opts ...OtoOption) *Oto {
	o := &Oto{
		bufferDuration: DefaultBufferDuration,
		volume:         100,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.Default().WithPrefix("output")
	}
	return o
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("output format: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// If already initialized with same format, reuse the existing context
	if o.otoCtx != nil && o.format.SampleRate == format.SampleRate && o.format.Channels == format.Channels {
		o.logger.Debug("Audio output already initialized with same format, reusing context")
		return nil
	}

	// oto allows one context per process
	if o.otoCtx != nil {
		return fmt.Errorf("format change %dHz %dch -> %dHz %dch is not supported by oto",
			o.format.SampleRate, o.format.Channels, format.SampleRate, format.Channels)
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	frames := int(o.bufferDuration.Seconds() * float64(format.SampleRate))
	o.ring = NewRingBuffer(frames * format.FrameSize())
	o.otoCtx = ctx
	o.format = format

	// The player pulls from the ring and gets silence when it runs dry
	o.player = o.otoCtx.NewPlayer(o.ring)
	o.player.Play()

	o.logger.Info("Audio output initialized", "sample_rate", format.SampleRate, "channels", format.Channels,
		"buffer", o.bufferDuration)
	return nil
}

// Submit queues as much of out as the ring buffer has room for.
// A partly queued buffer is resumed when it is offered again.
func (o *Oto) Submit(out render.ProcessedBuffer) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ring == nil {
		return false, fmt.Errorf("output not initialized")
	}

	return o.pending.take(out, func(data []byte) int {
		// Whole frames only so volume sees aligned samples
		n := min(len(data), o.ring.Free())
		n -= n % o.format.FrameSize()
		o.scratch = append(o.scratch[:0], data[:n]...)
		applyVolume(o.scratch, o.volume, o.muted)
		return o.ring.Write(o.scratch)
	}), nil
}

// Reset drops queued audio
func (o *Oto) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.reset()
	if o.ring != nil {
		o.ring.Reset()
	}
}

// Latency returns the duration of audio queued ahead of the device
func (o *Oto) Latency() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ring == nil {
		return 0
	}
	frames := o.ring.Available() / o.format.FrameSize()
	return time.Duration(o.format.DurationUs(int64(frames))) * time.Microsecond
}

// Underruns returns how many device reads found the buffer empty
func (o *Oto) Underruns() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ring == nil {
		return 0
	}
	return o.ring.Underruns()
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = max(0, min(volume, 100))
	o.logger.Debug("Volume set", "volume", o.volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted = muted
	o.logger.Debug("Muted", "muted", muted)
}

// Volume returns current volume
func (o *Oto) Volume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// Muted returns mute state
func (o *Oto) Muted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// applyVolume scales little-endian 16-bit samples in place
func applyVolume(pcm []byte, volume int, muted bool) {
	multiplier := getVolumeMultiplier(volume, muted)
	if multiplier == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += audio.BytesPerSample {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		s = audio.ClampInt16(int32(math.Round(float64(s) * multiplier)))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(s))
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
