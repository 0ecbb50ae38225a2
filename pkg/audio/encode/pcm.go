// ABOUTME: PCM audio encoder
// ABOUTME: Encodes rendered 16-bit samples to 16-bit or 24-bit PCM bytes
package encode

import (
	"fmt"

	"github.com/Sendspin/varispeed-go/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.Codec != "pcm" && format.Codec != "wav" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMEncoder{
		bitDepth: format.BitDepth,
	}, nil
}

// BytesPerSample returns the encoded size of one sample
func (e *PCMEncoder) BytesPerSample() int {
	return e.bitDepth / 8
}

// Encode converts samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int16) ([]byte, error) {
	if e.bitDepth == 16 {
		output := make([]byte, len(samples)*2)
		audio.PutInt16s(output, samples)
		return output, nil
	}

	// 24-bit PCM: 3 bytes per sample
	output := make([]byte, len(samples)*3)
	for i, sample := range samples {
		b := audio.SampleTo24Bit(audio.SampleFromInt16(sample))
		copy(output[i*3:], b[:])
	}
	return output, nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
