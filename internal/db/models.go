package db

import (
	"time"

	"github.com/septivank/waterlevel-monitor/internal/status"
)

// DefaultLocation is stored when a reading arrives without a location.
const DefaultLocation = "Default Location"

// MaxTextLength is the width of the device_id and location columns.
const MaxTextLength = 100

// Reading represents a sensor reading in the database.
// (DeviceID, Timestamp) is the natural key.
type Reading struct {
	ID          int64        `json:"id"`
	DeviceID    string       `json:"device_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Measurement float64      `json:"water_level"`
	Location    string       `json:"location"`
	Status      status.Level `json:"status"`
	Notes       *string      `json:"notes"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Statistics aggregates the newest N readings.
type Statistics struct {
	TotalReadings int      `json:"total_readings"`
	Average       float64  `json:"average_water_level"`
	Max           float64  `json:"max_water_level"`
	Min           float64  `json:"min_water_level"`
	Devices       []string `json:"devices"`
}
