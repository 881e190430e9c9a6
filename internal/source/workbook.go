package source

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WorkbookSource reads an exported copy of the mirror spreadsheet from a
// local .xlsx file.
type WorkbookSource struct {
	path      string
	sheetName string
}

func NewWorkbookSource(path, sheetName string) *WorkbookSource {
	return &WorkbookSource{path: path, sheetName: sheetName}
}

func (w *WorkbookSource) Kind() string { return "workbook" }

func (w *WorkbookSource) FetchTable(ctx context.Context, maxRows int) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := w.sheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 || sheet == "" {
		// Fall back to the first sheet when the configured one is absent.
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return Table{}, nil
	}

	return Table{
		Header: rows[0],
		Rows:   limitRows(rows[1:], maxRows),
	}, nil
}
