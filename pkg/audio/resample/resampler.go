// ABOUTME: Streaming Hermite resampler for interleaved 16-bit PCM
// ABOUTME: Changes pitch and duration together by a variable ratio
package resample

import (
	"errors"
	"fmt"
	"math"

	"github.com/Sendspin/varispeed-go/pkg/audio"
)

// ErrInvalidRatio is returned for ratios that are not positive and finite
var ErrInvalidRatio = errors.New("invalid resample ratio")

// Resampler performs 4-point Hermite interpolation over a stream of frames.
//
// Ratio is the number of input frames advanced per output frame: 2.0 halves
// the duration and raises pitch by an octave. Input is buffered across
// Write calls, so output does not depend on how the input was chunked.
type Resampler struct {
	channels int
	ratio    float64
	buf      []int16 // retained input frames, interleaved
	index    int     // integer read position in frames
	frac     float64 // fractional read position in [0, 1)
}

// New creates a resampler for interleaved frames of the given width
func New(channels int, ratio float64) (*Resampler, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("resampler channel count must be positive: %d", channels)
	}
	r := &Resampler{channels: channels, ratio: 1}
	if err := r.SetRatio(ratio); err != nil {
		return nil, err
	}
	r.Reset()
	return r, nil
}

// SetRatio changes the ratio for frames produced from now on
func (r *Resampler) SetRatio(ratio float64) error {
	if !(ratio > 0) || math.IsInf(ratio, 0) {
		return fmt.Errorf("%w: %f", ErrInvalidRatio, ratio)
	}
	r.ratio = ratio
	return nil
}

// Ratio returns the current ratio
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// Write appends whole interleaved frames; a trailing partial frame is ignored
func (r *Resampler) Write(samples []int16) {
	n := len(samples) - len(samples)%r.channels
	r.buf = append(r.buf, samples[:n]...)
}

// Process appends every frame that can be interpolated from the buffered
// input to dst and returns the extended slice.
func (r *Resampler) Process(dst []int16) []int16 {
	ch := r.channels
	frames := len(r.buf) / ch

	// Each output frame needs one frame behind and two ahead of index
	for r.index+2 < frames {
		if r.frac == 0 {
			dst = append(dst, r.buf[r.index*ch:(r.index+1)*ch]...)
		} else {
			for c := 0; c < ch; c++ {
				xm1 := float64(r.buf[(r.index-1)*ch+c])
				x0 := float64(r.buf[r.index*ch+c])
				x1 := float64(r.buf[(r.index+1)*ch+c])
				x2 := float64(r.buf[(r.index+2)*ch+c])
				v := hermite4(r.frac, xm1, x0, x1, x2)
				dst = append(dst, audio.ClampInt16(int32(math.Round(v))))
			}
		}

		r.frac += r.ratio
		step := math.Floor(r.frac)
		r.index += int(step)
		r.frac -= step
	}

	// Keep one frame of history behind the read position
	drop := r.index - 1
	if drop > frames {
		drop = frames
	}
	if drop > 0 {
		r.buf = r.buf[:copy(r.buf, r.buf[drop*ch:])]
		r.index -= drop
	}

	return dst
}

// Pending returns the number of buffered input frames not yet consumed
func (r *Resampler) Pending() float64 {
	p := float64(len(r.buf)/r.channels-r.index) - r.frac
	if p < 0 {
		return 0
	}
	return p
}

// Reset drops buffered input and restarts with a silent history frame
func (r *Resampler) Reset() {
	r.buf = r.buf[:0]
	for c := 0; c < r.channels; c++ {
		r.buf = append(r.buf, 0)
	}
	r.index = 1
	r.frac = 0
}

// hermite4 computes cubic 4-point interpolation from x0 to x1
func hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}

// Drain moves every buffered frame to dst unchanged and resets the
// resampler. It only succeeds when the read position sits exactly on a
// frame, which is when a unity ratio would copy frames verbatim anyway.
func (r *Resampler) Drain(dst []int16) ([]int16, bool) {
	if r.frac != 0 {
		return dst, false
	}
	dst = append(dst, r.buf[r.index*r.channels:]...)
	r.Reset()
	return dst, true
}
