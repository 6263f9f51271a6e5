package utils

import (
	"time"
)

// FormatInstant renders t as an ISO-8601 UTC instant, e.g. 2025-01-02T15:04:05.123Z.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
