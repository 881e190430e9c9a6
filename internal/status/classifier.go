package status

import (
	"fmt"
	"math"
)

// Level is the ordinal alert status attached to a reading.
type Level string

const (
	Normal   Level = "normal"
	Warning  Level = "warning"
	Critical Level = "critical"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case Normal, Warning, Critical:
		return true
	}
	return false
}

// Severity orders levels from 0 (normal) to 2 (critical). Unknown levels are -1.
func (l Level) Severity() int {
	switch l {
	case Normal:
		return 0
	case Warning:
		return 1
	case Critical:
		return 2
	}
	return -1
}

// Classifier maps a distance-to-water measurement to an alert level.
// A larger distance means the water surface is further from the sensor.
type Classifier struct {
	warningThreshold  float64
	criticalThreshold float64
}

// NewClassifier creates a classifier. The critical threshold must be strictly
// below the warning threshold.
func NewClassifier(warningThreshold, criticalThreshold float64) (*Classifier, error) {
	if math.IsNaN(warningThreshold) || math.IsNaN(criticalThreshold) {
		return nil, fmt.Errorf("thresholds must be numbers")
	}
	if criticalThreshold >= warningThreshold {
		return nil, fmt.Errorf("critical threshold %.2f must be below warning threshold %.2f",
			criticalThreshold, warningThreshold)
	}
	return &Classifier{
		warningThreshold:  warningThreshold,
		criticalThreshold: criticalThreshold,
	}, nil
}

// Classify returns the alert level for a measurement.
func (c *Classifier) Classify(measurement float64) Level {
	if measurement > c.warningThreshold {
		return Normal
	}
	if measurement > c.criticalThreshold {
		return Warning
	}
	return Critical
}

// Thresholds returns the configured warning and critical thresholds.
func (c *Classifier) Thresholds() (warning, critical float64) {
	return c.warningThreshold, c.criticalThreshold
}
