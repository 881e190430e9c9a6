package timeparser

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// readingLayouts are tried in order before falling back to dateparse.
var readingLayouts = []string{
	"2006-01-02 15:04:05", // YYYY-MM-DD HH:mm:ss
	"2006-01-02T15:04:05", // YYYY-MM-DDTHH:mm:ss
	"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	"02-01-2006 15:04:05", // DD-MM-YYYY HH:mm:ss
	"2006-01-02",          // YYYY-MM-DD
}

// ParseReadingTimestamp attempts to parse a sensor timestamp with the fixed
// layouts first and a general-purpose parser last. Results are in UTC.
func ParseReadingTimestamp(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	if s == "" {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: empty value")
	}

	for _, layout := range readingLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", s, err)
	}
	return t.UTC(), nil
}

// IsWithinTolerance checks if the reading timestamp is within tolerance of received time
func IsWithinTolerance(readingTime, receivedTime time.Time, tolerance time.Duration) bool {
	diff := readingTime.Sub(receivedTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
