// Package fetcher reads tabular vote data from XLSX and CSV sources.
package fetcher

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Format identifies a supported tabular file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// FormatFromName picks a format from the file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	default:
		return "", eris.Errorf("fetcher: unsupported file type %q", filepath.Ext(name))
	}
}

// ReadFile reads the first sheet of an XLSX file, or a whole CSV file, at
// path. Blank rows inside the table are kept so row positions match the
// source sheet; trailing blank rows are trimmed.
func ReadFile(ctx context.Context, path string) ([][]string, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatXLSX:
		rows, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return trimTrailingBlank(rows), nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open file")
		}
		defer f.Close() //nolint:errcheck

		rows, err := ReadCSV(ctx, f, CSVOptions{KeepBlankLines: true})
		if err != nil {
			return nil, err
		}
		return trimTrailingBlank(rows), nil
	}
}

// Read parses r as the format implied by name. Used for uploads that never
// touch disk.
func Read(ctx context.Context, name string, r io.Reader) ([][]string, error) {
	format, err := FormatFromName(name)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read upload")
	}

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = ReadXLSXBytes(data, XLSXOptions{})
	default:
		rows, err = ReadCSV(ctx, bytes.NewReader(data), CSVOptions{KeepBlankLines: true})
	}
	if err != nil {
		return nil, err
	}
	return trimTrailingBlank(rows), nil
}

func trimTrailingBlank(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isBlank(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
