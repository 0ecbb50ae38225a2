// ABOUTME: Collects decoded or rendered PCM for measurement
// ABOUTME: Capture is a render sink that keeps every sample it receives
package analysis

import (
	"errors"
	"fmt"
	"io"

	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/audio/decode"
	"github.com/Sendspin/varispeed-go/pkg/render"
)

// Capture accumulates rendered samples in memory
type Capture struct {
	samples []int16
	buffers int
}

// Submit keeps out and always consumes it
func (c *Capture) Submit(out render.ProcessedBuffer) (bool, error) {
	c.samples = audio.AppendInt16s(c.samples, out.Data)
	c.buffers++
	return true, nil
}

// Samples returns everything captured so far
func (c *Capture) Samples() []int16 {
	return c.samples
}

// Buffers returns the number of buffers submitted
func (c *Capture) Buffers() int {
	return c.buffers
}

// ReadAll decodes src to the end. maxFrames stops early when positive.
func ReadAll(src decode.Source, maxFrames int) ([]int16, error) {
	channels := src.Format().Channels
	var pcm []int16
	for maxFrames <= 0 || len(pcm)/channels < maxFrames {
		buf, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pcm, fmt.Errorf("decode failed: %w", err)
		}
		pcm = audio.AppendInt16s(pcm, buf.Data)
	}
	if maxFrames > 0 && len(pcm) > maxFrames*channels {
		pcm = pcm[:maxFrames*channels]
	}
	return pcm, nil
}
