// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion, format validation and byte packing
package audio

import (
	"errors"
	"testing"
)

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected int32
	}{
		{"zero", 0, 0},
		{"positive", 100, 100 << 8},
		{"negative", -100, -100 << 8},
		{"max", 32767, 32767 << 8},
		{"min", -32768, -32768 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected int16
	}{
		{"zero", 0, 0},
		{"positive", 100 << 8, 100},
		{"negative", -100 << 8, -100},
		{"24bit positive", 1000000, 3906}, // 1000000 >> 8 = 3906
		{"24bit negative", -1000000, -3907},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleTo24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected [3]byte
	}{
		{"zero", 0, [3]byte{0, 0, 0}},
		{"positive", 0x123456, [3]byte{0x56, 0x34, 0x12}},
		{"negative", -256, [3]byte{0x00, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleTo24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSampleFrom24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    [3]byte
		expected int32
	}{
		{"zero", [3]byte{0, 0, 0}, 0},
		{"positive", [3]byte{0x56, 0x34, 0x12}, 0x123456},
		{"negative", [3]byte{0x00, 0xFF, 0xFF}, -256},
		{"max positive", [3]byte{0xFF, 0xFF, 0x7F}, Max24Bit},
		{"max negative", [3]byte{0x00, 0x00, 0x80}, Min24Bit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFrom24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestRoundTrip16Bit(t *testing.T) {
	// Test that 16-bit samples survive round-trip conversion
	samples := []int16{0, 100, -100, 1000, -1000, 32767, -32768}

	for _, original := range samples {
		sample32 := SampleFromInt16(original)
		result := SampleToInt16(sample32)
		if result != original {
			t.Errorf("round-trip failed: %d -> %d -> %d", original, sample32, result)
		}
	}
}

func TestRoundTrip24Bit(t *testing.T) {
	// Test that 24-bit samples survive round-trip conversion
	samples := []int32{0, 100000, -100000, Max24Bit, Min24Bit}

	for _, original := range samples {
		bytes := SampleTo24Bit(original)
		result := SampleFrom24Bit(bytes)
		// Mask to 24-bit for comparison
		expected := original & 0xFFFFFF
		if expected&0x800000 != 0 {
			expected |= ^0xFFFFFF
		}
		if result != expected {
			t.Errorf("round-trip failed: %d -> %v -> %d (expected %d)", original, bytes, result, expected)
		}
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"stereo 48k", Format{SampleRate: 48000, Channels: 2, BitDepth: 16}, false},
		{"mono no depth", Format{SampleRate: 8000, Channels: 1}, false},
		{"zero rate", Format{SampleRate: 0, Channels: 2, BitDepth: 16}, true},
		{"zero channels", Format{SampleRate: 44100, Channels: 0, BitDepth: 16}, true},
		{"negative rate", Format{SampleRate: -1, Channels: 2}, true},
		{"24 bit", Format{SampleRate: 44100, Channels: 2, BitDepth: 24}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("expected ErrInvalidFormat, got %v", err)
			}
		})
	}
}

func TestFormatDurationUs(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
	if got := f.DurationUs(9600); got != 200000 {
		t.Errorf("expected 200000us, got %d", got)
	}
	if got := f.FrameSize(); got != 4 {
		t.Errorf("expected frame size 4, got %d", got)
	}
	if got := (Format{}).DurationUs(100); got != 0 {
		t.Errorf("expected 0 for empty format, got %d", got)
	}
}

func TestInt16BytePacking(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}
	buf := make([]byte, len(samples)*2)

	n := PutInt16s(buf, samples)
	if n != len(buf) {
		t.Fatalf("expected %d bytes, got %d", len(buf), n)
	}

	decoded := AppendInt16s(nil, append(buf, 0x7f))
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], decoded[i])
		}
	}
}

func TestClampInt16(t *testing.T) {
	tests := []struct {
		in   int32
		want int16
	}{
		{0, 0},
		{40000, 32767},
		{-40000, -32768},
		{-1234, -1234},
	}
	for _, tt := range tests {
		if got := ClampInt16(tt.in); got != tt.want {
			t.Errorf("ClampInt16(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFlagsHas(t *testing.T) {
	f := FlagEndOfStream | FlagDecodeOnly
	if !f.Has(FlagEndOfStream) {
		t.Error("expected end-of-stream flag")
	}
	if Flags(0).Has(FlagEndOfStream) {
		t.Error("expected no flags on zero value")
	}
}
