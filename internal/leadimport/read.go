// Package leadimport loads broker lead files (CSV or XLSX) into the lead store.
package leadimport

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = eris.New("leadimport: unsupported file format")

const utf8BOM = "\ufeff"

// Supported reports whether the file name has an importable extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ReadFile returns the header row and the data rows of a CSV or XLSX file.
func ReadFile(ctx context.Context, path string) ([]string, [][]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, openErr := os.Open(path) //nolint:gosec
		if openErr != nil {
			return nil, nil, eris.Wrap(openErr, "leadimport: open csv")
		}
		defer f.Close() //nolint:errcheck
		rows, err = ReadCSV(ctx, f)
	case ".xlsx":
		rows, err = ReadXLSX(ctx, path)
	default:
		return nil, nil, eris.Wrapf(ErrUnsupportedFormat, "%s", filepath.Base(path))
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, eris.New("leadimport: file has no header row")
	}
	return rows[0], rows[1:], nil
}

// ReadCSV reads every record. A leading UTF-8 byte order mark is dropped
// and rows may have any number of fields.
func ReadCSV(ctx context.Context, r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "leadimport: csv: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "leadimport: csv: read row")
		}
		if len(rows) == 0 && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], utf8BOM)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// ReadXLSX reads every row of the first sheet.
func ReadXLSX(ctx context.Context, path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "leadimport: xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("leadimport: xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "leadimport: xlsx: context cancelled")
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
