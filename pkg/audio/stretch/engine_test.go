// ABOUTME: Tests for the streaming speed, pitch and rate engine
// ABOUTME: Tests durations, identity, chunk invariance, validation and concurrency
package stretch

import (
	"errors"
	"io"
	"math"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestEngine(t *testing.T, sampleRate, channels int) *Engine {
	t.Helper()
	e, err := New(sampleRate, channels, WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

// sine returns interleaved frames of a sine wave, identical in every channel
func sine(frames, channels, sampleRate int, freq float64) []int16 {
	out := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = v
		}
	}
	return out
}

// drain reads every ready frame from the engine
func drain(e *Engine) []int16 {
	var out []int16
	buf := make([]int16, 1024*e.Channels())
	for {
		n := e.Read(buf)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n*e.Channels()]...)
	}
}

func writeChunks(t *testing.T, e *Engine, input []int16, frames int) {
	t.Helper()
	step := frames * e.Channels()
	for pos := 0; pos < len(input); pos += step {
		end := min(pos+step, len(input))
		if err := e.Write(input[pos:end]); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
}

func TestNewRejectsInvalidFormat(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
	}{
		{"zero rate", 0, 2},
		{"negative rate", -44100, 2},
		{"zero channels", 48000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.sampleRate, tt.channels)
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("expected ErrInvalidFormat, got %v", err)
			}
		})
	}

	if _, err := New(48000, 2, WithPitchRange(400, 65)); err == nil {
		t.Error("expected error for inverted pitch range")
	}
}

func TestSettersRejectInvalidRatios(t *testing.T) {
	values := []float64{0, -1, 0.01, 25, math.NaN(), math.Inf(1), math.Inf(-1)}

	for _, v := range values {
		e := newTestEngine(t, 48000, 2)
		e.SetSpeed(1.5)
		e.SetPitch(0.8)
		e.SetRate(1.2)

		if err := e.SetSpeed(v); !errors.Is(err, ErrInvalidRatio) {
			t.Errorf("SetSpeed(%v): expected ErrInvalidRatio, got %v", v, err)
		}
		if err := e.SetPitch(v); !errors.Is(err, ErrInvalidRatio) {
			t.Errorf("SetPitch(%v): expected ErrInvalidRatio, got %v", v, err)
		}
		if err := e.SetRate(v); !errors.Is(err, ErrInvalidRatio) {
			t.Errorf("SetRate(%v): expected ErrInvalidRatio, got %v", v, err)
		}

		if e.Speed() != 1.5 || e.Pitch() != 0.8 || e.Rate() != 1.2 {
			t.Errorf("expected previous values kept for %v, got %f %f %f", v, e.Speed(), e.Pitch(), e.Rate())
		}
	}
}

func TestIdentityIsExactCopy(t *testing.T) {
	e := newTestEngine(t, 44100, 2)
	input := make([]int16, 1000*2)
	for i := range input {
		input[i] = int16(i*37 - 20000)
	}

	writeChunks(t, e, input, 333)
	out := drain(e)

	if len(out) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(out))
	}
	for i := range input {
		if out[i] != input[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, input[i], out[i])
		}
	}
}

func TestDoubleSpeedHalvesDuration(t *testing.T) {
	e := newTestEngine(t, 48000, 2)
	e.SetSpeed(2)

	writeChunks(t, e, sine(9600, 2, 48000, 440), 960)

	ready := e.OutputFrames()
	if ready > 4800 || ready < 4800-e.maxRequired {
		t.Errorf("expected between %d and 4800 frames before flush, got %d", 4800-e.maxRequired, ready)
	}

	e.Flush()
	if got := e.OutputFrames(); got != 4800 {
		t.Errorf("expected 4800 frames after flush, got %d", got)
	}
	if e.InputFrames() != 0 {
		t.Errorf("expected no pending input after flush, got %d", e.InputFrames())
	}
}

func TestDurationScaling(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		pitch float64
		rate  float64
		want  int
	}{
		{"half speed", 0.5, 1, 1, 19200},
		{"speed 1.5", 1.5, 1, 1, 6400},
		{"pitch only up", 1, 2, 1, 9600},
		{"pitch only down", 1, 0.75, 1, 9600},
		{"rate only", 1, 1, 1.25, 7680},
		{"speed and rate", 2, 1, 2, 2400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, 48000, 1)
			e.SetSpeed(tt.speed)
			e.SetPitch(tt.pitch)
			e.SetRate(tt.rate)

			writeChunks(t, e, sine(9600, 1, 48000, 220), 1024)
			e.Flush()

			got := e.OutputFrames()
			tolerance := tt.want / 50
			if got < tt.want-tolerance || got > tt.want+tolerance {
				t.Errorf("expected ~%d frames, got %d", tt.want, got)
			}
		})
	}
}

func TestDurationAtRangeEdges(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		pitch float64
		rate  float64
	}{
		{"pitch floor", 1, 0.05, 1},
		{"pitch half", 1, 0.5, 1},
		{"pitch double", 1, 2, 1},
		{"pitch ceiling", 1, 20, 1},
		{"speed ceiling", 20, 1, 1},
		{"speed floor", 0.05, 1, 1},
		{"speed and pitch ceiling", 20, 20, 0.05},
		{"rate ceiling", 1, 1, 20},
	}

	const sampleRate = 48000
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, sampleRate, 2)
			if err := e.SetParameters(tt.speed, tt.pitch, tt.rate); err != nil {
				t.Fatalf("SetParameters failed: %v", err)
			}

			writeChunks(t, e, sine(sampleRate, 2, sampleRate, 220), 4096)
			want := float64(sampleRate) / (tt.speed * tt.rate)

			// Before Flush only the buffered tail is missing
			if got := float64(e.OutputFrames()); got < want*0.9 || got > want*1.01+2 {
				t.Errorf("expected ~%.0f frames before flush, got %.0f", want, got)
			}

			e.Flush()
			if got := float64(e.OutputFrames()); math.Abs(got-want) > 1 {
				t.Errorf("expected %.0f frames after flush, got %.0f", want, got)
			}
		})
	}
}

func TestSettersRejectCombinedFactors(t *testing.T) {
	e := newTestEngine(t, 48000, 2)
	if err := e.SetSpeed(0.05); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}

	// Speed stage would run at 0.05/20
	if err := e.SetPitch(20); !errors.Is(err, ErrInvalidRatio) {
		t.Errorf("expected ErrInvalidRatio, got %v", err)
	}
	if e.Pitch() != 1 {
		t.Errorf("expected pitch 1 kept, got %f", e.Pitch())
	}

	// Resampler would run at 20*2
	if err := e.SetRate(20); err != nil {
		t.Fatalf("SetRate failed: %v", err)
	}
	if err := e.SetPitch(2); !errors.Is(err, ErrInvalidRatio) {
		t.Errorf("expected ErrInvalidRatio, got %v", err)
	}

	if err := e.SetParameters(20, 0.05, 1); !errors.Is(err, ErrInvalidRatio) {
		t.Errorf("expected ErrInvalidRatio, got %v", err)
	}
	if e.Speed() != 0.05 || e.Pitch() != 1 || e.Rate() != 20 {
		t.Errorf("expected previous values kept, got %f %f %f", e.Speed(), e.Pitch(), e.Rate())
	}

	if err := e.SetParameters(0.05, 0.05, 20); err != nil {
		t.Errorf("expected matched parameters accepted, got %v", err)
	}
}

func TestFaultDropsPendingInput(t *testing.T) {
	e := newTestEngine(t, 48000, 2)
	e.SetSpeed(1.5)

	input := sine(8192, 2, 48000, 220)
	if err := e.Write(input); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ready := e.OutputFrames()
	if ready == 0 {
		t.Fatal("expected ready output before the fault")
	}

	// A window shorter than the period search needs makes it index past
	// the decimated buffer
	e.mu.Lock()
	maxRequired := e.maxRequired
	e.maxRequired = e.maxPeriod
	e.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("panic escaped Write: %v", r)
			}
		}()
		if err := e.Write(input); !errors.Is(err, ErrFault) {
			t.Errorf("expected ErrFault, got %v", err)
		}
	}()

	if e.Faults() != 1 {
		t.Errorf("expected 1 fault, got %d", e.Faults())
	}
	if got := e.OutputFrames(); got != ready {
		t.Errorf("expected %d ready frames kept, got %d", ready, got)
	}
	if got := e.InputFrames(); got != 0 {
		t.Errorf("expected pending input dropped, got %d frames", got)
	}

	e.mu.Lock()
	e.maxRequired = maxRequired
	e.mu.Unlock()
	if err := e.Write(input); err != nil {
		t.Fatalf("expected engine usable after a fault, got %v", err)
	}
	if e.OutputFrames() <= ready {
		t.Error("expected output to grow after recovery")
	}
}

func TestChunkSizeInvariance(t *testing.T) {
	input := sine(20000, 2, 44100, 330)

	run := func(chunk int) []int16 {
		e := newTestEngine(t, 44100, 2)
		e.SetSpeed(1.5)
		e.SetPitch(1.2)
		e.SetRate(0.9)
		writeChunks(t, e, input, chunk)
		e.Flush()
		return drain(e)
	}

	want := run(20000)
	for _, chunk := range []int{1, 17, 256, 4096} {
		got := run(chunk)
		if len(got) != len(want) {
			t.Fatalf("chunk %d: expected %d samples, got %d", chunk, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chunk %d: sample %d differs: %d vs %d", chunk, i, want[i], got[i])
			}
		}
	}
}

func TestParameterChangeIsProspective(t *testing.T) {
	e := newTestEngine(t, 48000, 1)
	first := sine(4800, 1, 48000, 300)
	if err := e.Write(first); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := e.SetSpeed(2); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}

	// Output produced at speed 1 is not touched by the change
	out := drain(e)
	if len(out) != len(first) {
		t.Fatalf("expected %d frames at the old speed, got %d", len(first), len(out))
	}
	for i := range first {
		if out[i] != first[i] {
			t.Fatalf("sample %d changed after speed change", i)
		}
	}

	writeChunks(t, e, sine(9600, 1, 48000, 300), 960)
	e.Flush()
	if got := e.OutputFrames(); got != 4800 {
		t.Errorf("expected 4800 frames at the new speed, got %d", got)
	}
}

func TestPartialFrameRejected(t *testing.T) {
	e := newTestEngine(t, 48000, 2)

	if err := e.Write([]int16{1, 2, 3}); !errors.Is(err, ErrPartialFrame) {
		t.Errorf("expected ErrPartialFrame, got %v", err)
	}
	if err := e.WriteBytes([]byte{1, 2, 3, 4, 5, 6}); !errors.Is(err, ErrPartialFrame) {
		t.Errorf("expected ErrPartialFrame for bytes, got %v", err)
	}
	if e.InputFrames() != 0 || e.OutputFrames() != 0 {
		t.Error("expected nothing buffered after a rejected write")
	}
}

func TestWriteBytesReadBytes(t *testing.T) {
	e := newTestEngine(t, 48000, 2)
	pcm := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0xff, 0x7f}

	if err := e.WriteBytes(pcm); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}

	// A destination smaller than one frame receives nothing
	if n := e.ReadBytes(make([]byte, 3)); n != 0 {
		t.Errorf("expected 0 bytes into a short buffer, got %d", n)
	}

	out := make([]byte, 16)
	n := e.ReadBytes(out)
	if n != len(pcm) {
		t.Fatalf("expected %d bytes, got %d", len(pcm), n)
	}
	for i := range pcm {
		if out[i] != pcm[i] {
			t.Errorf("byte %d: expected %#x, got %#x", i, pcm[i], out[i])
		}
	}
}

func TestReset(t *testing.T) {
	e := newTestEngine(t, 48000, 2)
	e.SetSpeed(0.75)
	writeChunks(t, e, sine(5000, 2, 48000, 440), 500)

	e.Reset()
	if e.OutputFrames() != 0 || e.InputFrames() != 0 {
		t.Errorf("expected empty engine after reset, got %d out %d in", e.OutputFrames(), e.InputFrames())
	}
	if e.Speed() != 0.75 {
		t.Errorf("expected speed kept after reset, got %f", e.Speed())
	}
}

func TestVolume(t *testing.T) {
	tests := []struct {
		name   string
		volume float64
		in     int16
		want   int16
	}{
		{"unity", 1, 1000, 1000},
		{"half", 0.5, 1000, 500},
		{"clip high", 4, 20000, 32767},
		{"clip low", 4, -20000, -32768},
		{"mute", 0, 1234, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, 8000, 1)
			e.SetVolume(tt.volume)
			e.Write([]int16{tt.in})

			out := make([]int16, 1)
			if n := e.Read(out); n != 1 {
				t.Fatalf("expected 1 frame, got %d", n)
			}
			if out[0] != tt.want {
				t.Errorf("expected %d, got %d", tt.want, out[0])
			}
		})
	}

	e := newTestEngine(t, 8000, 1)
	e.SetVolume(-1)
	if e.Volume() != 1 {
		t.Errorf("expected negative volume ignored, got %f", e.Volume())
	}
}

func TestFindPeriodInRange(t *testing.T) {
	samples := make([]int16, 400)
	for i := range samples {
		samples[i] = int16((i % 50) * 100)
	}

	if got := findPeriodInRange(samples, 20, 150); got != 50 {
		t.Errorf("expected period 50, got %d", got)
	}
}

func TestFindPitchPeriod(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
		period     int
	}{
		{"48k stereo 200Hz", 48000, 2, 240},
		{"8k mono 100Hz", 8000, 1, 80},
		{"44.1k mono", 44100, 1, 220},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.sampleRate, tt.channels)

			// Tile one period so the signal repeats exactly
			cycle := sine(tt.period, tt.channels, tt.period, 1)
			for len(e.input) < e.maxRequired*tt.channels {
				e.input = append(e.input, cycle...)
			}

			if got := e.findPitchPeriod(0); got != tt.period {
				t.Errorf("expected period %d, got %d", tt.period, got)
			}
		})
	}
}

func TestConcurrentWriteAndSetters(t *testing.T) {
	e := newTestEngine(t, 48000, 2)
	chunk := sine(480, 2, 48000, 440)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			e.Write(chunk)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			e.SetSpeed(0.5 + float64(i%4)*0.5)
			e.SetPitch(0.8 + float64(i%3)*0.2)
			e.SetRate(1 + float64(i%2)*0.1)
		}
	}()

	buf := make([]int16, 1024)
	for i := 0; i < 200; i++ {
		e.Read(buf)
	}
	wg.Wait()

	if e.Faults() != 0 {
		t.Errorf("expected no faults, got %d", e.Faults())
	}
}
