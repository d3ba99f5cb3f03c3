package sync

import (
	"encoding/json"
	"time"
)

// parseGraphTime handles the provider's "+0000" timestamp variant alongside
// strict RFC3339. Unparseable values fall back to receipt time.
func parseGraphTime(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now()
}

func marshalScopes(scopes []string) string {
	if len(scopes) == 0 {
		return ""
	}
	raw, err := json.Marshal(scopes)
	if err != nil {
		return ""
	}
	return string(raw)
}
