package util

import (
	"os"
	"strings"
)

// IsVerbose checks if the SOCIALSYNC_VERBOSE environment variable is set.
// Accepts: "1", "true", "yes" (case-insensitive).
func IsVerbose() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SOCIALSYNC_VERBOSE"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}
