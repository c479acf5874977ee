package ir

// Version constants for the action encoding and the library.
const (
	// FormatVersion is the journal/golden encoding version.
	FormatVersion = "1"

	// Version is the normware release version.
	Version = "0.1.0"
)
