package source

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource reads the mirror spreadsheet through the Sheets API using a
// service-account credential file.
type SheetsSource struct {
	credentialsFile string
	spreadsheetID   string
	sheetName       string
}

// NewSheetsSource creates a Sheets-backed source. The API client is built on
// every fetch so a rotated credential file is picked up without a restart.
func NewSheetsSource(credentialsFile, spreadsheetID, sheetName string) *SheetsSource {
	return &SheetsSource{
		credentialsFile: credentialsFile,
		spreadsheetID:   spreadsheetID,
		sheetName:       sheetName,
	}
}

func (s *SheetsSource) Kind() string { return "sheets" }

func (s *SheetsSource) FetchTable(ctx context.Context, maxRows int) (Table, error) {
	srv, err := sheets.NewService(ctx,
		option.WithCredentialsFile(s.credentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return Table{}, fmt.Errorf("failed to create sheets client: %w", err)
	}

	resp, err := srv.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName).Context(ctx).Do()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read sheet %q: %w", s.sheetName, err)
	}

	return tableFromValues(resp.Values, maxRows), nil
}

// tableFromValues converts the loosely typed API grid into a Table.
func tableFromValues(values [][]interface{}, maxRows int) Table {
	if len(values) == 0 {
		return Table{}
	}

	rows := make([][]string, 0, len(values)-1)
	for _, raw := range values[1:] {
		rows = append(rows, stringifyRow(raw))
	}
	return Table{
		Header: stringifyRow(values[0]),
		Rows:   limitRows(rows, maxRows),
	}
}

func stringifyRow(raw []interface{}) []string {
	row := make([]string, len(raw))
	for i, v := range raw {
		if v == nil {
			continue
		}
		row[i] = fmt.Sprint(v)
	}
	return row
}
