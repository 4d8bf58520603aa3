// Package reader turns spreadsheet and CSV field exports into
// sequences of field→value records. Streams are finite and
// restartable: calling Stream again on the same path replays the file
// from the top.
package reader

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/velocityfibre/fieldsync/internal/model"
)

// Options configures parsing.
type Options struct {
	Delimiter rune   // CSV field separator; default ';'
	SheetName string // XLSX sheet name; default first sheet
}

// Stream reads a file and sends one record per data row to a channel.
// The first row is the header; each subsequent row becomes a
// model.Record keyed by header. Caller must consume the returned record
// channel. Errors are sent on the error channel. Both channels are
// closed when processing completes.
func Stream(ctx context.Context, path string, opts Options) (<-chan model.Record, <-chan error) {
	recCh := make(chan model.Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".csv":
			streamCSV(ctx, path, opts, recCh, errCh)
		case ".xlsx", ".xls":
			streamXLSX(ctx, path, opts, recCh, errCh)
		default:
			errCh <- eris.Errorf("reader: unsupported file format %q (use .csv, .xlsx, or .xls)", ext)
		}
	}()

	return recCh, errCh
}

// ReadAll materializes the full record stream. The validator and
// verifier need the whole batch in memory, so this is the entry point
// the pipeline uses.
func ReadAll(ctx context.Context, path string, opts Options) ([]model.Record, error) {
	recCh, errCh := Stream(ctx, path, opts)

	var records []model.Record
	for rec := range recCh {
		records = append(records, rec)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return records, nil
}

// zipRow pairs header columns with row cells, padding short rows.
func zipRow(header, row []string) model.Record {
	rec := make(model.Record, len(header))
	for i, col := range header {
		if col == "" {
			continue
		}
		if i < len(row) {
			rec[col] = row[i]
		} else {
			rec[col] = ""
		}
	}
	return rec
}

// blankRow reports whether every cell is empty or whitespace.
func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
