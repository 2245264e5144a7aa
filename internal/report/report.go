// Package report renders analysis results as a workbook or JSON.
package report

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/tre1322/best-of-analyzer/internal/analysis"
)

// Sheet names in the result workbook.
const (
	SheetResults = "Results"
	SheetFraud   = "Fraud Report"
	SheetTracker = "Vote Tracker"
)

// Workbook builds the result workbook: the ranked summary, the fraud report
// sorted by row, and the per-row vote tracker.
func Workbook(res *analysis.Result) (*xlsx.File, error) {
	f := xlsx.NewFile()

	results, err := f.AddSheet(SheetResults)
	if err != nil {
		return nil, eris.Wrap(err, "report: add results sheet")
	}
	addRow(results, "Rank", "Business", "Votes")
	for _, e := range res.Summary {
		row := results.AddRow()
		row.AddCell().SetInt(e.Rank)
		row.AddCell().SetString(e.Name)
		row.AddCell().SetInt(e.Votes)
	}

	fraud, err := f.AddSheet(SheetFraud)
	if err != nil {
		return nil, eris.Wrap(err, "report: add fraud sheet")
	}
	addRow(fraud, "Row", "Reason")
	for _, e := range res.Fraud {
		addRow(fraud, e.Ref, e.Reason)
	}

	tracker, err := f.AddSheet(SheetTracker)
	if err != nil {
		return nil, eris.Wrap(err, "report: add tracker sheet")
	}
	addRow(tracker, "Row #", "IP Address", "Original Vote", "Normalized", "Canonical Name", "Counted?")
	for _, tr := range res.Tally.Trace {
		counted := "No"
		if tr.Counted {
			counted = "Yes"
		}
		addRow(tracker, tr.Ref, tr.Address, tr.Raw, tr.Normalized, tr.Canonical, counted)
	}

	return f, nil
}

// WriteWorkbook writes the result workbook to w.
func WriteWorkbook(w io.Writer, res *analysis.Result) error {
	f, err := Workbook(res)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// SaveWorkbook writes the result workbook to path.
func SaveWorkbook(path string, res *analysis.Result) error {
	f, err := Workbook(res)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}

// WriteJSON writes the full result, including the complete ranking and the
// canonical map, as indented JSON.
func WriteJSON(w io.Writer, res *analysis.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}

// SaveJSON writes the JSON result to path.
func SaveJSON(path string, res *analysis.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	if err := WriteJSON(f, res); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "report: close json")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
