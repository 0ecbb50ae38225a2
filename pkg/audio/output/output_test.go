// ABOUTME: Audio output tests
// ABOUTME: Tests the ring buffer, resumable submission and volume scaling
package output

import (
	"bytes"
	"math"
	"testing"

	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/render"
)

func TestOtoImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(8)

	if n := rb.Write([]byte{1, 2, 3, 4, 5, 6}); n != 6 {
		t.Fatalf("expected 6 bytes written, got %d", n)
	}
	p := make([]byte, 4)
	rb.Read(p)
	if !bytes.Equal(p, []byte{1, 2, 3, 4}) {
		t.Errorf("unexpected read %v", p)
	}

	// Crosses the end of the backing slice
	if n := rb.Write([]byte{7, 8, 9, 10, 11, 12, 13}); n != 6 {
		t.Errorf("expected 6 bytes written into 6 free, got %d", n)
	}
	if rb.Free() != 0 || rb.Available() != 8 {
		t.Errorf("expected full buffer, free=%d available=%d", rb.Free(), rb.Available())
	}

	p = make([]byte, 8)
	rb.Read(p)
	if !bytes.Equal(p, []byte{5, 6, 7, 8, 9, 10, 11, 12}) {
		t.Errorf("unexpected read %v", p)
	}
	if rb.Underruns() != 0 {
		t.Errorf("expected no underruns, got %d", rb.Underruns())
	}
}

func TestRingBufferUnderrunZeroFills(t *testing.T) {
	rb := NewRingBuffer(16)
	rb.Write([]byte{9, 9})

	p := []byte{1, 1, 1, 1, 1}
	n, err := rb.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("expected full read without error, got %d %v", n, err)
	}
	if !bytes.Equal(p, []byte{9, 9, 0, 0, 0}) {
		t.Errorf("expected zero fill, got %v", p)
	}
	if rb.Underruns() != 1 {
		t.Errorf("expected 1 underrun, got %d", rb.Underruns())
	}

	rb.Write([]byte{1, 2, 3})
	rb.Reset()
	if rb.Available() != 0 {
		t.Errorf("expected empty buffer after reset, got %d", rb.Available())
	}
}

func TestPartialTakeResumes(t *testing.T) {
	var got []byte
	room := 3
	write := func(p []byte) int {
		n := min(len(p), room)
		got = append(got, p[:n]...)
		room -= n
		return n
	}

	var pt partial
	buf := render.ProcessedBuffer{Index: 7, Data: []byte{1, 2, 3, 4, 5}}

	if pt.take(buf, write) {
		t.Fatal("expected buffer not yet taken")
	}
	room = 10
	if !pt.take(buf, write) {
		t.Fatal("expected buffer taken on resubmission")
	}
	if !bytes.Equal(got, buf.Data) {
		t.Errorf("expected each byte once, got %v", got)
	}

	// A different index starts from the beginning
	got = nil
	room = 2
	pt.take(render.ProcessedBuffer{Index: 8, Data: []byte{6, 7, 8}}, write)
	room = 10
	pt.take(render.ProcessedBuffer{Index: 9, Data: []byte{1, 2}}, write)
	if !bytes.Equal(got, []byte{6, 7, 1, 2}) {
		t.Errorf("expected new buffer from offset 0, got %v", got)
	}
}

func TestPartialTakeEmptyBuffer(t *testing.T) {
	var pt partial
	called := false
	ok := pt.take(render.ProcessedBuffer{Index: 1}, func(p []byte) int {
		called = true
		return 0
	})
	if !ok || called {
		t.Errorf("expected empty buffer taken without writing, ok=%v called=%v", ok, called)
	}
}

func TestApplyVolume(t *testing.T) {
	tests := []struct {
		name   string
		volume int
		muted  bool
		in     int16
		want   int16
	}{
		{"full", 100, false, 1000, 1000},
		{"half", 50, false, 1000, 500},
		{"half negative", 50, false, -1000, -500},
		{"muted", 100, true, 1000, 0},
		{"zero", 0, false, 32767, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := make([]byte, 2)
			audio.PutInt16s(pcm, []int16{tt.in})
			applyVolume(pcm, tt.volume, tt.muted)
			if got := audio.AppendInt16s(nil, pcm)[0]; got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestApplyVolumeInPlace(t *testing.T) {
	pcm := make([]byte, 4096*4)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	want := audio.AppendInt16s(nil, pcm)
	for i, s := range want {
		want[i] = audio.ClampInt16(int32(math.Round(float64(s) * 0.3)))
	}

	applyVolume(pcm, 30, false)
	got := audio.AppendInt16s(nil, pcm)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	allocs := testing.AllocsPerRun(100, func() {
		applyVolume(pcm, 50, false)
		applyVolume(pcm, 100, true)
	})
	if allocs != 0 {
		t.Errorf("expected no allocations, got %v", allocs)
	}
}

func TestOtoSubmitBeforeOpen(t *testing.T) {
	out := NewOto()
	if _, err := out.Submit(render.ProcessedBuffer{Data: []byte{0, 0}}); err == nil {
		t.Error("expected error before Open")
	}
	if out.Latency() != 0 || out.Underruns() != 0 {
		t.Error("expected zero latency and underruns before Open")
	}
}

func TestOtoOpenRejectsInvalidFormat(t *testing.T) {
	out := NewOto()
	if err := out.Open(audio.Format{SampleRate: 0, Channels: 2, BitDepth: 16}); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestOtoVolumeClamped(t *testing.T) {
	out := NewOto()
	out.SetVolume(150)
	if out.Volume() != 100 {
		t.Errorf("expected 100, got %d", out.Volume())
	}
	out.SetVolume(-3)
	if out.Volume() != 0 {
		t.Errorf("expected 0, got %d", out.Volume())
	}
	out.SetMuted(true)
	if !out.Muted() {
		t.Error("expected muted")
	}
}
