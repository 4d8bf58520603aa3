package reader

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/velocityfibre/fieldsync/internal/model"
)

// streamCSV reads a delimited export and sends one record per data row.
// Exports arrive UTF-8 with a BOM more often than not, so the reader is
// wrapped in a BOM-stripping decoder.
func streamCSV(ctx context.Context, path string, opts Options, recCh chan<- model.Record, errCh chan<- error) {
	f, err := os.Open(path)
	if err != nil {
		errCh <- eris.Wrapf(err, "csv: open %s", path)
		return
	}
	defer f.Close() //nolint:errcheck

	decoded := transform.NewReader(f, unicode.UTF8BOM.NewDecoder())
	reader := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	} else {
		reader.Comma = ';'
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	var header []string
	for {
		if ctx.Err() != nil {
			errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
			return
		}

		row, err := reader.Read()
		if err == io.EOF {
			if header == nil {
				errCh <- eris.Errorf("csv: %s is empty", path)
			}
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read row")
			return
		}

		for i, field := range row {
			row[i] = strings.TrimSpace(field)
		}

		if header == nil {
			header = row
			continue
		}
		if blankRow(row) {
			continue
		}

		select {
		case recCh <- zipRow(header, row):
		case <-ctx.Done():
			errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
			return
		}
	}
}
