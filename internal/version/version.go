package version

import "fmt"

// Version is set by ldflags during build
var Version = "dev"

// GetVersion returns the current client version
func GetVersion() string {
	return Version
}

// UserAgent is sent on every REST and WebSocket request
func UserAgent() string {
	return fmt.Sprintf("eyes-client/%s", Version)
}
