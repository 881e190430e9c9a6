package source

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

var defaultSimulatedDevices = []string{"SENSOR_001", "SENSOR_002", "SENSOR_003"}

var simulatedLocations = []string{
	"Zone A - River Bridge",
	"Zone B - Canal Gate",
	"Zone C - Reservoir Inlet",
}

// SimulatedOptions configures the generated table.
type SimulatedOptions struct {
	Rows int
	Seed int64
	// DeviceID, when set, is used for every row so the rows pass the device
	// filter. Otherwise rows rotate over a fixed sensor set.
	DeviceID string
	// Start is the timestamp of the first row. Zero means Rows half-hours
	// before the moment the source is created.
	Start time.Time
}

// SimulatedSource serves a deterministic generated table. The rows are
// generated once so repeated syncs see identical data.
type SimulatedSource struct {
	table Table
}

func NewSimulatedSource(opts SimulatedOptions) *SimulatedSource {
	const step = 30 * time.Minute

	start := opts.Start
	if start.IsZero() {
		start = time.Now().UTC().Truncate(step).Add(-time.Duration(opts.Rows) * step)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	rows := make([][]string, 0, opts.Rows)
	for i := 0; i < opts.Rows; i++ {
		device := opts.DeviceID
		if device == "" {
			device = defaultSimulatedDevices[i%len(defaultSimulatedDevices)]
		}
		distance := 5 + rng.Float64()*115
		rows = append(rows, []string{
			start.Add(time.Duration(i) * step).Format("2006-01-02 15:04:05"),
			device,
			strconv.FormatFloat(distance, 'f', 1, 64),
			simulatedLocations[i%len(simulatedLocations)],
		})
	}

	return &SimulatedSource{
		table: Table{
			Header: []string{"timestamp", "device_id", "distance_cm", "location"},
			Rows:   rows,
		},
	}
}

func (s *SimulatedSource) Kind() string { return "simulated" }

func (s *SimulatedSource) FetchTable(ctx context.Context, maxRows int) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, fmt.Errorf("simulated fetch cancelled: %w", err)
	}
	rows := limitRows(s.table.Rows, maxRows)
	out := make([][]string, len(rows))
	copy(out, rows)
	return Table{Header: s.table.Header, Rows: out}, nil
}
