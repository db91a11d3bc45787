// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Configuration
	OpConfigLoad Op = "load configuration"
	OpStoreOpen  Op = "connect to state store"

	// Manifest operations
	OpManifestLoad  Op = "load track list"
	OpManifestBuild Op = "build track list"
	OpArtExtract    Op = "extract album art"

	// Shared state operations
	OpStoreRead      Op = "read playback state"
	OpStoreWrite     Op = "write playback state"
	OpStoreSubscribe Op = "subscribe to playback state"
	OpStoreInit      Op = "initialize playback state"

	// Playback operations
	OpPlaybackStart Op = "start playback"
	OpPlaybackSeek  Op = "seek"
	OpTrackLoad     Op = "load track"
	OpTrackDownload Op = "download track"

	// Relay operations
	OpRelayListen    Op = "start relay server"
	OpRelayAdvertise Op = "advertise relay"
	OpRelayDiscover  Op = "discover relay"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
