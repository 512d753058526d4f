// Package export writes job results to XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// SheetName is the worksheet the rows are written to.
const SheetName = domain.ResultSheetName

// linkColumn is the 1-based column of the resume link.
const linkColumn = 2

var columnWidths = []float64{28, 52, 18, 32, 44, 36}

// WriteXLSX writes the candidates that carry contact data, under the
// result header, as an XLSX workbook.
func WriteXLSX(w io.Writer, candidates []domain.ParsedCandidate) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := writeRow(f, 1, domain.ResultSheetHeader); err != nil {
		return err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(domain.ResultSheetHeader), 1)
		_ = f.SetCellStyle(SheetName, "A1", last, style)
	}

	for i, row := range domain.CandidateRows(candidates) {
		n := i + 2
		if err := writeRow(f, n, row); err != nil {
			return err
		}
		if link := row[linkColumn-1]; link != "" {
			cell, _ := excelize.CoordinatesToCellName(linkColumn, n)
			if err := f.SetCellHyperLink(SheetName, cell, link, "External"); err != nil {
				return fmt.Errorf("link %s: %w", cell, err)
			}
		}
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, col, col, width)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// WriteFile writes the workbook to path with 0600 permissions.
func WriteFile(path string, candidates []domain.ParsedCandidate) (err error) {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return WriteXLSX(out, candidates)
}

func writeRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", n, err)
	}
	return nil
}
