package sheetimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmdatafocus/po_import/fieldschema"
	"github.com/mmdatafocus/po_import/reconcile"
	"github.com/xuri/excelize/v2"
)

type Options struct {
	// Sheet defaults to the first sheet of the workbook.
	Sheet string
	// Strict keeps columns the schema does not know, so reconciliation rejects those rows.
	Strict bool
}

type Result struct {
	Rows           []reconcile.Row
	DroppedColumns []string
}

var ErrNoHeader = errors.New("sheet has no header row")

func ReadXLSX(r io.Reader, schema *fieldschema.Schema, opts Options) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	grid, err := f.GetRows(sheet)
	if err != nil {
		return Result{}, fmt.Errorf("unable to read sheet %q: %w", sheet, err)
	}
	return FromGrid(grid, schema, opts)
}

func ReadCSV(r io.Reader, schema *fieldschema.Schema, opts Options) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	grid, err := cr.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("unable to read csv: %w", err)
	}
	if len(grid) > 0 && len(grid[0]) > 0 {
		grid[0][0] = strings.TrimPrefix(grid[0][0], "\uFEFF")
	}
	return FromGrid(grid, schema, opts)
}

// FromGrid turns a header row plus data rows into Rows. Cells are trimmed, empty cells
// and blank lines are left out, and Row.Number is the 1-based sheet line.
func FromGrid(grid [][]string, schema *fieldschema.Schema, opts Options) (Result, error) {
	if len(grid) == 0 {
		return Result{}, ErrNoHeader
	}

	header := make([]string, len(grid[0]))
	seen := map[string]bool{}
	var res Result
	for i, cell := range grid[0] {
		name := strings.TrimSpace(cell)
		if name == "" {
			continue
		}
		if seen[name] {
			return Result{}, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		if !schema.Has(name) && !opts.Strict {
			res.DroppedColumns = append(res.DroppedColumns, name)
			continue
		}
		header[i] = name
	}
	if len(seen) == 0 {
		return Result{}, ErrNoHeader
	}

	types := schema.TypeMap()
	for idx, line := range grid[1:] {
		row := reconcile.Row{
			Number:  idx + 2,
			Data:    map[string]any{},
			MapType: map[string]fieldschema.FieldType{},
		}
		for i, cell := range line {
			if i >= len(header) || header[i] == "" {
				continue
			}
			value := strings.TrimSpace(cell)
			if value == "" {
				continue
			}
			row.Data[header[i]] = value
			if t, ok := types[header[i]]; ok {
				row.MapType[header[i]] = t
			}
		}
		if len(row.Data) == 0 {
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}
