package source

import (
	"math"
	"strconv"
	"strings"

	"github.com/septivank/waterlevel-monitor/internal/db"
	"github.com/septivank/waterlevel-monitor/internal/status"
	"github.com/septivank/waterlevel-monitor/tools/timeparser"
)

// Drop reasons reported in DropStats.
const (
	DropMissingColumns = "missing_columns"
	DropBadTimestamp   = "bad_timestamp"
	DropBadMeasurement = "bad_measurement"
	DropMissingDevice  = "missing_device"
	DropFilteredDevice = "filtered_device"
	DropFieldTooLong   = "field_too_long"
)

// measurementColumns are accepted measurement headers, in preference order.
var measurementColumns = []string{"distance_cm", "water_level", "measurement"}

// DropStats counts rows dropped per reason.
type DropStats map[string]int

// Total returns the number of dropped rows.
func (d DropStats) Total() int {
	n := 0
	for _, c := range d {
		n += c
	}
	return n
}

type columnIndex struct {
	timestamp   int
	deviceID    int
	measurement int
	location    int
}

func indexHeader(header []string) (columnIndex, bool) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	idx := columnIndex{measurement: -1, location: -1}
	var ok bool
	if idx.timestamp, ok = positions["timestamp"]; !ok {
		return idx, false
	}
	if idx.deviceID, ok = positions["device_id"]; !ok {
		return idx, false
	}
	for _, name := range measurementColumns {
		if i, found := positions[name]; found {
			idx.measurement = i
			break
		}
	}
	if idx.measurement < 0 {
		return idx, false
	}
	if i, found := positions["location"]; found {
		idx.location = i
	}
	return idx, true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseTable turns raw rows into classified candidates. Rows that cannot be
// used are dropped and counted, never reported as errors. An empty
// allowedDevice disables device filtering.
func ParseTable(table Table, allowedDevice string, classifier *status.Classifier) ([]Candidate, DropStats) {
	dropped := DropStats{}

	idx, ok := indexHeader(table.Header)
	if !ok {
		if len(table.Rows) > 0 {
			dropped[DropMissingColumns] = len(table.Rows)
		}
		return []Candidate{}, dropped
	}

	allowed := strings.TrimSpace(allowedDevice)
	candidates := make([]Candidate, 0, len(table.Rows))
	for _, row := range table.Rows {
		ts, err := timeparser.ParseReadingTimestamp(cell(row, idx.timestamp))
		if err != nil {
			dropped[DropBadTimestamp]++
			continue
		}

		raw := cell(row, idx.measurement)
		if raw == "" {
			dropped[DropBadMeasurement]++
			continue
		}
		measurement, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(measurement) || math.IsInf(measurement, 0) || measurement < 0 {
			dropped[DropBadMeasurement]++
			continue
		}

		device := cell(row, idx.deviceID)
		if device == "" {
			dropped[DropMissingDevice]++
			continue
		}
		if allowed != "" && !strings.EqualFold(device, allowed) {
			dropped[DropFilteredDevice]++
			continue
		}
		location := cell(row, idx.location)
		if len(device) > db.MaxTextLength || len(location) > db.MaxTextLength {
			dropped[DropFieldTooLong]++
			continue
		}

		candidates = append(candidates, Candidate{
			Timestamp:   ts,
			DeviceID:    device,
			Measurement: measurement,
			Location:    location,
			Status:      classifier.Classify(measurement),
		})
	}

	return candidates, dropped
}
