// Package export renders stored readings as downloadable reports.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/septivank/waterlevel-monitor/internal/db"
)

const (
	SummarySheet  = "summary"
	ReadingsSheet = "readings"

	timeLayout = "2006-01-02 15:04:05"
)

var readingColumns = []string{"ID", "Device", "Timestamp (UTC)", "Water Level (cm)", "Location", "Status", "Notes"}

// BuildReadingsXLSX renders a workbook with a summary sheet and one row per
// reading.
func BuildReadingsXLSX(readings []db.Reading, stats *db.Statistics, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ReadingsSheet); err != nil {
		return nil, err
	}

	summary := [][]interface{}{
		{"Water Level Report"},
		{},
		{"Generated", generatedAt.UTC().Format(time.RFC3339)},
		{"Total Readings", stats.TotalReadings},
		{"Average (cm)", stats.Average},
		{"Max (cm)", stats.Max},
		{"Min (cm)", stats.Min},
		{"Devices", strings.Join(stats.Devices, ", ")},
	}
	for i, row := range summary {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	header := make([]interface{}, len(readingColumns))
	for i, c := range readingColumns {
		header[i] = c
	}
	if err := setRow(f, ReadingsSheet, 1, header); err != nil {
		return nil, err
	}
	for i, r := range readings {
		notes := ""
		if r.Notes != nil {
			notes = *r.Notes
		}
		row := []interface{}{
			r.ID,
			r.DeviceID,
			r.Timestamp.UTC().Format(timeLayout),
			r.Measurement,
			r.Location,
			string(r.Status),
			notes,
		}
		if err := setRow(f, ReadingsSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// BuildReadingsPDF renders a one-table PDF report.
func BuildReadingsPDF(readings []db.Reading, stats *db.Statistics, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Water Level Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Readings: %d", stats.TotalReadings))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Average / Max / Min (cm): %.2f / %.2f / %.2f", stats.Average, stats.Max, stats.Min))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Devices: %s", strings.Join(stats.Devices, ", ")))
	pdf.Ln(8)

	widths := []float64{40, 45, 25, 55, 25}
	pdf.SetFont("Arial", "B", 10)
	for i, title := range []string{"Device", "Timestamp (UTC)", "Level (cm)", "Location", "Status"} {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, r := range readings {
		pdf.CellFormat(widths[0], 6, r.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, r.Timestamp.UTC().Format(timeLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 6, fmt.Sprintf("%.1f", r.Measurement), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, r.Location, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[4], 6, string(r.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
