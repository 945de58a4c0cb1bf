package sheetimport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mmdatafocus/po_import/fieldschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheet string, grid [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for r, line := range grid {
		for c, v := range line {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadXLSX(t *testing.T) {
	buf := workbook(t, "Sheet1", [][]any{
		{"SKU", "Qty", "Rate", "Unit", "Discount.%", "Notes"},
		{" ABC ", 2, "$10.00", "Each", "10%", "call first"},
		{"", "", "", "", "", ""},
		{"XYZ", "", "NC", "Box"},
	})

	res, err := ReadXLSX(buf, fieldschema.PurchaseOrderLines(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes"}, res.DroppedColumns)
	require.Len(t, res.Rows, 2)

	first := res.Rows[0]
	assert.Equal(t, 2, first.Number)
	assert.Equal(t, map[string]any{
		"SKU":        "ABC",
		"Qty":        "2",
		"Rate":       "$10.00",
		"Unit":       "Each",
		"Discount.%": "10%",
	}, first.Data)
	assert.Equal(t, fieldschema.FieldTypeSingleSelect, first.MapType["Unit"])

	second := res.Rows[1]
	assert.Equal(t, 4, second.Number)
	assert.NotContains(t, second.Data, "Qty")
	assert.Equal(t, "NC", second.Data["Rate"])
}

func TestReadXLSX_NamedSheet(t *testing.T) {
	buf := workbook(t, "Lines", [][]any{
		{"SKU", "PO"},
		{"A1", "PO-9"},
	})

	_, err := ReadXLSX(bytes.NewReader(buf.Bytes()), fieldschema.PurchaseOrderLines(), Options{Sheet: "Missing"})
	assert.Error(t, err)

	res, err := ReadXLSX(bytes.NewReader(buf.Bytes()), fieldschema.PurchaseOrderLines(), Options{Sheet: "Lines"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "PO-9", res.Rows[0].Data["PO"])
}

func TestReadCSV_StrictKeepsUnknownColumns(t *testing.T) {
	in := "\uFEFFSKU,Colour,Qty\nABC,red,3\n"

	res, err := ReadCSV(strings.NewReader(in), fieldschema.PurchaseOrderLines(), Options{Strict: true})
	require.NoError(t, err)
	assert.Empty(t, res.DroppedColumns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "red", res.Rows[0].Data["Colour"])
	assert.NotContains(t, res.Rows[0].MapType, "Colour")
	assert.Equal(t, "ABC", res.Rows[0].Data["SKU"])
}

func TestFromGrid_Errors(t *testing.T) {
	schema := fieldschema.PurchaseOrderLines()

	_, err := FromGrid(nil, schema, Options{})
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = FromGrid([][]string{{"", " "}}, schema, Options{})
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = FromGrid([][]string{{"SKU", "SKU"}}, schema, Options{})
	assert.Error(t, err)
}

func TestRead_RejectsUnknownExtension(t *testing.T) {
	_, err := Read("lines.pdf", strings.NewReader(""), fieldschema.PurchaseOrderLines(), Options{})
	assert.Error(t, err)
}
