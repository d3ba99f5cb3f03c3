package util

import "fmt"

// DefaultLogMaxLen is the default maximum length for truncated log output (1KB).
// Provider payloads (media pages, webhook envelopes) can be large; verbose logs
// keep only a prefix.
const DefaultLogMaxLen = 1024

// TruncateLog truncates long strings for verbose logging.
// This helps control log file growth while maintaining diagnostics capability.
func TruncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBytes is a convenience wrapper for TruncateLog that accepts []byte
// and uses DefaultLogMaxLen. This simplifies common logging patterns.
func TruncateBytes(b []byte) string {
	return TruncateLog(string(b), DefaultLogMaxLen)
}
