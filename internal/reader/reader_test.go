package reader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/velocityfibre/fieldsync/internal/model"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadAll_CSV_Semicolon(t *testing.T) {
	csv := "Property ID;Pole Number;Status\n" +
		"P-1;LAW.P.A1;Pole Permission: Approved\n" +
		"P-2;;Home Sign Ups: Approved\n"
	path := writeTempCSV(t, "export.csv", csv)

	records, err := ReadAll(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "P-1", records[0].PropertyID())
	assert.Equal(t, "LAW.P.A1", records[0].PoleNumber())
	assert.Equal(t, "P-2", records[1].PropertyID())
	assert.Empty(t, records[1].PoleNumber())
}

func TestReadAll_CSV_BOMStripped(t *testing.T) {
	csv := "\xEF\xBB\xBFProperty ID;Status\nP-1;Pole Planted\n"
	path := writeTempCSV(t, "bom.csv", csv)

	records, err := ReadAll(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	// The BOM must not leak into the first header name.
	assert.Equal(t, "P-1", records[0].PropertyID())
}

func TestReadAll_CSV_CustomDelimiter(t *testing.T) {
	csv := "Property ID,Status\nP-1,Pole Planted\n"
	path := writeTempCSV(t, "comma.csv", csv)

	records, err := ReadAll(context.Background(), path, Options{Delimiter: ','})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Pole Planted", records[0].Status())
}

func TestReadAll_CSV_SkipsBlankRows(t *testing.T) {
	csv := "Property ID;Status\nP-1;Pole Planted\n;\n\nP-2;Pole Planted\n"
	path := writeTempCSV(t, "blanks.csv", csv)

	records, err := ReadAll(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestReadAll_CSV_ShortRowPadded(t *testing.T) {
	csv := "Property ID;Pole Number;Status\nP-1;LAW.P.A1\n"
	path := writeTempCSV(t, "short.csv", csv)

	records, err := ReadAll(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Status())
}

func TestReadAll_EmptyFile(t *testing.T) {
	path := writeTempCSV(t, "empty.csv", "")

	_, err := ReadAll(context.Background(), path, Options{})
	assert.Error(t, err)
}

func TestReadAll_MissingFile(t *testing.T) {
	_, err := ReadAll(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{})
	assert.Error(t, err)
}

func TestReadAll_UnsupportedExtension(t *testing.T) {
	path := writeTempCSV(t, "export.txt", "Property ID;Status\n")

	_, err := ReadAll(context.Background(), path, Options{})
	assert.Error(t, err)
}

func TestReadAll_Restartable(t *testing.T) {
	csv := "Property ID;Status\nP-1;Pole Planted\n"
	path := writeTempCSV(t, "again.csv", csv)

	first, err := ReadAll(context.Background(), path, Options{})
	require.NoError(t, err)
	second, err := ReadAll(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func writeTempXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadAll_XLSX(t *testing.T) {
	path := writeTempXLSX(t, [][]string{
		{"Property ID", "Pole Number", "Status"},
		{"P-1", "LAW.P.A1", "Pole Planted"},
		{"P-2", "", "Home Sign Ups: Approved"},
	})

	records, err := ReadAll(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "LAW.P.A1", records[0].PoleNumber())
	assert.Equal(t, "Home Sign Ups: Approved", records[1].Status())
}

func TestReadAll_XLSX_NamedSheet(t *testing.T) {
	f := xlsx.NewFile()
	_, err := f.AddSheet("Ignore")
	require.NoError(t, err)
	sheet, err := f.AddSheet("Data")
	require.NoError(t, err)
	for _, r := range [][]string{{"Property ID"}, {"P-9"}} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "sheets.xlsx")
	require.NoError(t, f.Save(path))

	records, err := ReadAll(context.Background(), path, Options{SheetName: "Data"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "P-9", records[0].PropertyID())

	_, err = ReadAll(context.Background(), path, Options{SheetName: "Missing"})
	assert.Error(t, err)
}

func TestZipRow(t *testing.T) {
	header := []string{"A", "", "C"}
	rec := zipRow(header, []string{"1", "2", "3", "4"})
	assert.Equal(t, model.Record{"A": "1", "C": "3"}, rec)
}
