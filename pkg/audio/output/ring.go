// ABOUTME: Thread-safe circular byte buffer between the render loop and the device
// ABOUTME: Reads zero-fill on underrun so the device never stalls
package output

import "sync"

// RingBuffer is a fixed-capacity FIFO of PCM bytes
type RingBuffer struct {
	mu        sync.Mutex
	buffer    []byte
	readPos   int
	writePos  int
	count     int // bytes currently buffered
	underruns uint64
}

// NewRingBuffer creates a ring buffer holding capacity bytes
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buffer: make([]byte, max(capacity, 1))}
}

// Write copies as much of p as fits and returns the number of bytes copied
func (rb *RingBuffer) Write(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(p), len(rb.buffer)-rb.count)
	for written := 0; written < n; {
		c := copy(rb.buffer[rb.writePos:], p[written:n])
		rb.writePos = (rb.writePos + c) % len(rb.buffer)
		written += c
	}
	rb.count += n
	return n
}

// Read fills p from the buffer. Bytes the buffer cannot supply are zeroed,
// so Read always reports len(p) and never blocks.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(p), rb.count)
	for read := 0; read < n; {
		c := copy(p[read:n], rb.buffer[rb.readPos:])
		rb.readPos = (rb.readPos + c) % len(rb.buffer)
		read += c
	}
	rb.count -= n

	// Zero-fill remaining if underrun
	if n < len(p) {
		clear(p[n:])
		rb.underruns++
	}
	return len(p), nil
}

// Available returns the number of bytes buffered
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of bytes that can be written
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.buffer) - rb.count
}

// Underruns returns how many reads were zero-filled
func (rb *RingBuffer) Underruns() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.underruns
}

// Reset discards buffered bytes
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.readPos, rb.writePos, rb.count = 0, 0, 0
}
