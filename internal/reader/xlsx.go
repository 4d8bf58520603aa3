package reader

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/velocityfibre/fieldsync/internal/model"
)

// streamXLSX reads the first sheet (or the named one) of a spreadsheet
// and sends one record per data row. tealeg loads the workbook eagerly;
// the stream is still useful for a uniform caller interface and
// cancellation.
func streamXLSX(ctx context.Context, path string, opts Options, recCh chan<- model.Record, errCh chan<- error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		errCh <- eris.Wrapf(err, "xlsx: open %s", path)
		return
	}

	sheet, err := getSheet(f, opts.SheetName)
	if err != nil {
		errCh <- err
		return
	}

	var header []string
	for _, row := range sheet.Rows {
		if ctx.Err() != nil {
			errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
			return
		}

		cells := rowToStrings(row)
		if header == nil {
			header = cells
			continue
		}
		if blankRow(cells) {
			continue
		}

		select {
		case recCh <- zipRow(header, cells):
		case <-ctx.Done():
			errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
			return
		}
	}

	if header == nil {
		errCh <- eris.Errorf("xlsx: %s is empty", path)
	}
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: file has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
