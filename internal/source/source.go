// Package source pulls candidate readings from the external spreadsheet-like
// mirror. Every variant yields a raw Table; parsing, device filtering and
// classification are shared and happen in ParseTable.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/septivank/waterlevel-monitor/internal/config"
	"github.com/septivank/waterlevel-monitor/internal/status"
)

// Table is the raw content of a sheet: a header row and body rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Candidate is a parsed, filtered and classified source row.
type Candidate struct {
	Timestamp   time.Time
	DeviceID    string
	Measurement float64
	Location    string
	Status      status.Level
}

// Source is one external reading source variant.
type Source interface {
	// Kind names the variant for logs and metrics.
	Kind() string
	// FetchTable returns the header and at most maxRows body rows.
	// maxRows <= 0 means every row.
	FetchTable(ctx context.Context, maxRows int) (Table, error)
}

// Select builds the source variant named by cfg.Kind. It is called once at
// start-up.
func Select(cfg config.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case config.SourceSheets:
		return NewSheetsSource(cfg.CredentialsFile, cfg.SpreadsheetID, cfg.SheetName), nil
	case config.SourceWorkbook:
		return NewWorkbookSource(cfg.WorkbookPath, cfg.SheetName), nil
	case config.SourceSimulated:
		return NewSimulatedSource(SimulatedOptions{
			Rows:     cfg.SimulatedRows,
			Seed:     cfg.SimulatedSeed,
			DeviceID: cfg.AllowedDevice,
		}), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
}

func limitRows(rows [][]string, maxRows int) [][]string {
	if maxRows > 0 && len(rows) > maxRows {
		return rows[:maxRows]
	}
	return rows
}
