// ABOUTME: Tests for the tone source
// ABOUTME: Tests length, amplitude and seeking of generated tones
package decode

import (
	"testing"

	"github.com/Sendspin/varispeed-go/pkg/audio"
)

func TestToneSourceLength(t *testing.T) {
	format := audio.Format{SampleRate: 48000, Channels: 2}
	src := NewToneSource(format, 440, 250000, WithBufferFrames(4800))

	if src.Format().BitDepth != 16 || src.Format().Codec != "tone" {
		t.Errorf("unexpected format %s", src.Format())
	}
	if src.DurationUs() != 250000 {
		t.Errorf("expected 250000us, got %d", src.DurationUs())
	}

	total := 0
	for _, b := range collect(t, src) {
		total += b.Frames(src.Format())
	}
	if total != 12000 {
		t.Errorf("expected 12000 frames, got %d", total)
	}
}

func TestToneSourceAmplitude(t *testing.T) {
	format := audio.Format{SampleRate: 48000, Channels: 1}
	src := NewToneSource(format, 1000, 0)

	if src.DurationUs() != -1 {
		t.Errorf("expected endless tone, got %d", src.DurationUs())
	}

	buf, err := src.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	var peak int16
	for _, s := range audio.AppendInt16s(nil, buf.Data) {
		peak = max(peak, s)
	}
	if peak < 16000 || peak > 16384 {
		t.Errorf("expected peak near half scale, got %d", peak)
	}
}

func TestToneSourceSeek(t *testing.T) {
	format := audio.Format{SampleRate: 8000, Channels: 1}
	src := NewToneSource(format, 100, 1000000, WithBufferFrames(800))

	src.SeekUs(900000)
	buf, err := src.Next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if buf.PresentationTimeUs != 900000 {
		t.Errorf("expected pts 900000, got %d", buf.PresentationTimeUs)
	}
	if got := buf.Frames(src.Format()); got != 800 {
		t.Errorf("expected 800 frames, got %d", got)
	}
	// Only the last 0.1s remained, so the stream ends here
	if got := len(collect(t, src)); got != 0 {
		t.Errorf("expected end of stream, got %d buffers", got)
	}
}
