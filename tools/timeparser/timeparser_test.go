package timeparser_test

import (
	"testing"
	"time"

	"github.com/septivank/waterlevel-monitor/tools/timeparser"
)

func TestParseReadingTimestamp_FixedLayouts(t *testing.T) {
	expected := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	cases := map[string]string{
		"space separated":  "2024-01-02 03:04:05",
		"iso without zone": "2024-01-02T03:04:05",
		"day first slash":  "02/01/2024 03:04:05",
		"day first dash":   "02-01-2024 03:04:05",
		"padded":           "  2024-01-02 03:04:05 ",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := timeparser.ParseReadingTimestamp(input)
			if err != nil {
				t.Fatalf("Failed to parse timestamp: %v", err)
			}
			if !result.Equal(expected) {
				t.Errorf("Expected %v, got %v", expected, result)
			}
		})
	}
}

func TestParseReadingTimestamp_DateOnly(t *testing.T) {
	result, err := timeparser.ParseReadingTimestamp("2024-01-02")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseReadingTimestamp_FallbackRFC3339(t *testing.T) {
	result, err := timeparser.ParseReadingTimestamp("2024-01-02T03:04:05+02:00")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
	if result.Location() != time.UTC {
		t.Errorf("Expected UTC location, got %v", result.Location())
	}
}

func TestParseReadingTimestamp_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "invalid-date-string"} {
		if _, err := timeparser.ParseReadingTimestamp(input); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestIsWithinTolerance(t *testing.T) {
	readingTime := time.Date(2025, 12, 29, 10, 30, 0, 0, time.UTC)

	if !timeparser.IsWithinTolerance(readingTime, readingTime.Add(3*time.Minute), 5*time.Minute) {
		t.Error("Expected timestamp to be within tolerance")
	}
	if timeparser.IsWithinTolerance(readingTime, readingTime.Add(6*time.Minute), 5*time.Minute) {
		t.Error("Expected timestamp to be outside tolerance")
	}
	if !timeparser.IsWithinTolerance(readingTime, readingTime.Add(-5*time.Minute), 5*time.Minute) {
		t.Error("Expected timestamp at exact boundary to be within tolerance")
	}
}
