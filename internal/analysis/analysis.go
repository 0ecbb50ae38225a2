// ABOUTME: Signal analysis of rendered audio
// ABOUTME: Measures level and dominant frequency with an FFT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/Sendspin/varispeed-go/pkg/audio"
)

const (
	// MinFFTSize is the shortest window DominantFrequency accepts
	MinFFTSize = 1024
	// MaxFFTSize bounds the analysis window
	MaxFFTSize = 1 << 16
)

// ErrTooShort is returned when there are fewer frames than MinFFTSize
var ErrTooShort = errors.New("signal too short to analyze")

// Report summarizes a block of interleaved 16-bit PCM
type Report struct {
	Frames     int
	DurationUs int64
	Peak       float64 // absolute peak, 0..1
	RMS        float64 // 0..1
	DominantHz float64 // 0 when the signal is too short or silent
	SampleRate int
	Channels   int
}

// Analyze measures pcm in format
func Analyze(pcm []int16, format audio.Format) (Report, error) {
	if err := format.Validate(); err != nil {
		return Report{}, err
	}
	mono := Mono(pcm, format.Channels)

	r := Report{
		Frames:     len(mono),
		DurationUs: format.DurationUs(int64(len(mono))),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}

	var sum float64
	for _, v := range mono {
		r.Peak = max(r.Peak, math.Abs(v))
		sum += v * v
	}
	if len(mono) > 0 {
		r.RMS = math.Sqrt(sum / float64(len(mono)))
	}

	hz, err := DominantFrequency(mono, format.SampleRate)
	if err != nil && !errors.Is(err, ErrTooShort) {
		return r, err
	}
	r.DominantHz = hz
	return r, nil
}

// Mono averages interleaved channels into samples scaled to -1..1
func Mono(pcm []int16, channels int) []float64 {
	if channels <= 0 {
		return nil
	}
	out := make([]float64, len(pcm)/channels)
	for i := range out {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(pcm[i*channels+ch])
		}
		out[i] = sum / float64(channels) / 32768.0
	}
	return out
}

// DominantFrequency returns the frequency in Hz of the strongest spectral
// peak in signal, refined by parabolic interpolation between bins.
// The window is the largest power of two that fits, up to MaxFFTSize,
// taken from the middle of the signal.
func DominantFrequency(signal []float64, sampleRate int) (float64, error) {
	if len(signal) < MinFFTSize {
		return 0, fmt.Errorf("%w: %d frames (need %d)", ErrTooShort, len(signal), MinFFTSize)
	}
	if sampleRate <= 0 {
		return 0, fmt.Errorf("%w: sample rate %d", audio.ErrInvalidFormat, sampleRate)
	}

	n := min(1<<(bits.Len(uint(len(signal)))-1), MaxFFTSize)
	start := (len(signal) - n) / 2

	buf := make([]float64, n)
	copy(buf, signal[start:start+n])
	vecmath.MulBlockInPlace(buf, hann(n))

	in := make([]complex128, n)
	for i, v := range buf {
		in[i] = complex(v, 0)
	}
	out := make([]complex128, n)

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return 0, fmt.Errorf("failed to plan FFT: %w", err)
	}
	if err := plan.Forward(out, in); err != nil {
		return 0, fmt.Errorf("FFT failed: %w", err)
	}

	bins := n/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)
	for i := 0; i < bins; i++ {
		re[i] = real(out[i])
		im[i] = imag(out[i])
	}
	mag := make([]float64, bins)
	vecmath.Magnitude(mag, re, im)

	// Skip DC
	peak := 1
	for i := 2; i < bins; i++ {
		if mag[i] > mag[peak] {
			peak = i
		}
	}
	if mag[peak] == 0 {
		return 0, nil
	}

	binHz := float64(sampleRate) / float64(n)
	return (float64(peak) + interpolate(mag, peak)) * binHz, nil
}

// interpolate returns the offset of the true peak from bin k, in bins
func interpolate(mag []float64, k int) float64 {
	if k <= 0 || k >= len(mag)-1 {
		return 0
	}
	a, b, c := mag[k-1], mag[k], mag[k+1]
	denom := a - 2*b + c
	if denom == 0 {
		return 0
	}
	return 0.5 * (a - c) / denom
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
