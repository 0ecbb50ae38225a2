// ABOUTME: Version information for the player
// ABOUTME: Reported by --version and in the player header
package version

// Version is set at build time with -ldflags "-X ...version.Version=..."
var Version = "0.1.0"

const (
	// Product is the name shown to users
	Product = "Varispeed"
	// Manufacturer is the project that publishes the player
	Manufacturer = "Sendspin"
)
