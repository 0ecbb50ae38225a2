// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for sinks that play rendered audio
package output

import (
	"github.com/Sendspin/varispeed-go/pkg/audio"
	"github.com/Sendspin/varispeed-go/pkg/render"
)

// Output represents an audio output device fed by a render stage
type Output interface {
	render.Sink

	// Open initializes the output for format
	Open(format audio.Format) error

	// Reset drops queued audio, as after a seek
	Reset()

	// Close releases output resources
	Close() error
}

// partial tracks how much of an offered buffer a sink has taken, so that
// resubmitting the same buffer resumes where the last attempt stopped
type partial struct {
	valid  bool
	index  int
	offset int
}

// take writes the untaken part of out with write and reports whether the
// whole buffer has now been taken
func (p *partial) take(out render.ProcessedBuffer, write func([]byte) int) bool {
	if !p.valid || p.index != out.Index {
		p.valid, p.index, p.offset = true, out.Index, 0
	}
	if p.offset < len(out.Data) {
		p.offset += write(out.Data[p.offset:])
	}
	if p.offset < len(out.Data) {
		return false
	}
	p.valid = false
	return true
}

func (p *partial) reset() {
	p.valid = false
}
