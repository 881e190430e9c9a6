package validator

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/tools/timeparser"
)

// ValidationError describes why an input was rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ReadingInput is a reading as submitted by a client or a queue message.
// The value may be sent as water_level or measurement; water_level wins.
type ReadingInput struct {
	Timestamp        string   `json:"timestamp"`
	DeviceID         string   `json:"device_id"`
	Measurement      *float64 `json:"water_level"`
	MeasurementAlias *float64 `json:"measurement,omitempty"`
	Location         *string  `json:"location,omitempty"`
	Notes            *string  `json:"notes,omitempty"`
}

// ValidReading is a reading that passed validation
type ValidReading struct {
	Timestamp   time.Time
	DeviceID    string
	Measurement float64
	Location    string
	Notes       *string
}

// Validator handles reading validation with configurable parameters
type Validator struct {
	maxFutureSkew time.Duration
	now           func() time.Time
}

// NewValidator creates a new validator. Readings stamped further than
// maxFutureSkew ahead of the current time are rejected; zero disables the check.
func NewValidator(maxFutureSkew time.Duration) *Validator {
	return &Validator{
		maxFutureSkew: maxFutureSkew,
		now:           time.Now,
	}
}

// ValidateReading validates a single reading input
func (v *Validator) ValidateReading(input ReadingInput) (ValidReading, error) {
	deviceID := strings.TrimSpace(input.DeviceID)
	if deviceID == "" {
		return ValidReading{}, &ValidationError{Field: "device_id", Reason: "is required"}
	}
	if len(deviceID) > db.MaxTextLength {
		return ValidReading{}, &ValidationError{Field: "device_id", Reason: fmt.Sprintf("must be at most %d characters", db.MaxTextLength)}
	}

	measurement := input.Measurement
	if measurement == nil {
		measurement = input.MeasurementAlias
	}
	if measurement == nil {
		return ValidReading{}, &ValidationError{Field: "water_level", Reason: "is required"}
	}
	value := *measurement
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ValidReading{}, &ValidationError{Field: "water_level", Reason: "must be a finite number"}
	}
	if value < 0 {
		return ValidReading{}, &ValidationError{Field: "water_level", Reason: "negative value detected"}
	}

	if strings.TrimSpace(input.Timestamp) == "" {
		return ValidReading{}, &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	readingTime, err := timeparser.ParseReadingTimestamp(input.Timestamp)
	if err != nil {
		return ValidReading{}, &ValidationError{Field: "timestamp", Reason: "unsupported timestamp format"}
	}

	now := v.now()
	if v.maxFutureSkew > 0 && readingTime.After(now) && !timeparser.IsWithinTolerance(readingTime, now, v.maxFutureSkew) {
		return ValidReading{}, &ValidationError{
			Field:  "timestamp",
			Reason: fmt.Sprintf("more than %s in the future", v.maxFutureSkew),
		}
	}

	valid := ValidReading{
		Timestamp:   readingTime,
		DeviceID:    deviceID,
		Measurement: value,
	}
	if input.Location != nil {
		valid.Location = strings.TrimSpace(*input.Location)
		if len(valid.Location) > db.MaxTextLength {
			return ValidReading{}, &ValidationError{Field: "location", Reason: fmt.Sprintf("must be at most %d characters", db.MaxTextLength)}
		}
	}
	if input.Notes != nil && *input.Notes != "" {
		notes := *input.Notes
		valid.Notes = &notes
	}

	return valid, nil
}
