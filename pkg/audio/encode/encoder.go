// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for encoders of rendered audio
package encode

// Encoder encodes rendered 16-bit samples to a storage format
type Encoder interface {
	// Encode converts samples to encoded audio data
	Encode(samples []int16) ([]byte, error)

	// Close releases encoder resources
	Close() error
}
