package feed

import (
	"strings"
	"time"
)

// Layouts seen across source sites and older store schemas. Zoned layouts
// first; zone-less layouts parse as UTC, which is the convention for naive
// timestamps everywhere in this system.
var timeLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a raw timestamp string into a UTC time. It never fails:
// unparseable input yields the current time and fallback=true so the caller
// can log the degradation.
func Normalize(raw string) (t time.Time, fallback bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC(), true
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), false
		}
	}
	return time.Now().UTC(), true
}

// NormalizeTime applies the same contract to an already-typed time: zero
// values degrade to now, everything else is converted to UTC.
func NormalizeTime(t time.Time) (time.Time, bool) {
	if t.IsZero() {
		return time.Now().UTC(), true
	}
	return t.UTC(), false
}
