// Package ballot turns a raw vote table into VoteRecords.
package ballot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Default column names (after header normalization).
const (
	DefaultAddressColumn   = "ip address"
	DefaultTimestampColumn = "start date"
)

// MissingColumnError reports that the selected category column is absent
// from the vote table. It is the only input error that aborts a run.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column '%s' not found in spreadsheet", e.Column)
}

// VoteRecord is one row of the vote table.
type VoteRecord struct {
	// Index is the zero-based data row position, header excluded.
	Index int `json:"row_index"`
	// RawName is the trimmed vote text in the category column.
	RawName string `json:"raw_name"`
	// RawAddress is the trimmed source address cell as it appeared.
	RawAddress string `json:"raw_address,omitempty"`
	// Address is the parsed source address; empty when absent or unparseable.
	Address string `json:"address,omitempty"`
	// Timestamp is nil when absent or unparseable.
	Timestamp *time.Time `json:"timestamp,omitempty"`
	// FilledFields counts non-empty cells across the whole original row.
	FilledFields int `json:"filled_fields"`
}

// HasVote reports whether the row carries a vote in the category column.
func (r VoteRecord) HasVote() bool {
	return r.RawName != ""
}

// RowRef returns the spreadsheet reference for a data row, assuming a single
// header line: data row 0 is sheet row 2.
func RowRef(index int) string {
	return fmt.Sprintf("A%d", index+2)
}

// Columns selects the columns feeding VoteRecord fields. Names are matched
// against the normalized header.
type Columns struct {
	Category  string
	Address   string
	Timestamp string
}

// Options controls record parsing.
type Options struct {
	// StrictAddress requires source addresses to parse as IP addresses.
	StrictAddress bool
}

// Table is a vote table with a normalized header row.
type Table struct {
	Header []string
	Rows   [][]string
	colIdx map[string]int
}

// NewTable builds a Table from raw rows whose first row is the header. Header
// cells are trimmed and lowercased; for duplicated names the first wins.
func NewTable(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, eris.New("ballot: table has no header row")
	}

	t := &Table{
		Header: make([]string, len(rows[0])),
		Rows:   rows[1:],
		colIdx: make(map[string]int, len(rows[0])),
	}
	for i, col := range rows[0] {
		name := NormalizeHeader(col)
		t.Header[i] = name
		if _, dup := t.colIdx[name]; !dup {
			t.colIdx[name] = i
		}
	}
	return t, nil
}

// NormalizeHeader trims and lowercases a column name.
func NormalizeHeader(col string) string {
	return strings.ToLower(strings.TrimSpace(col))
}

// HasColumn reports whether the normalized header contains name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIdx[NormalizeHeader(name)]
	return ok
}

// Categories lists header columns that can be voted on, in header order,
// skipping blanks and any excluded column.
func (t *Table) Categories(exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[NormalizeHeader(e)] = true
	}

	var out []string
	for _, col := range t.Header {
		if col == "" || skip[col] {
			continue
		}
		out = append(out, col)
	}
	return out
}

// Records parses every data row. It fails only when the category column is
// missing; absent address or timestamp columns leave those fields empty.
func (t *Table) Records(cols Columns, opts Options) ([]VoteRecord, error) {
	category := NormalizeHeader(cols.Category)
	if _, ok := t.colIdx[category]; !ok || category == "" {
		return nil, &MissingColumnError{Column: category}
	}

	records := make([]VoteRecord, len(t.Rows))
	for i, row := range t.Rows {
		rawAddr := t.cell(row, cols.Address)
		addr, _ := ParseAddress(rawAddr, opts.StrictAddress)

		rec := VoteRecord{
			Index:        i,
			RawName:      t.cell(row, category),
			RawAddress:   rawAddr,
			Address:      addr,
			FilledFields: filledFields(row),
		}
		if ts, ok := ParseTimestamp(t.cell(row, cols.Timestamp)); ok {
			rec.Timestamp = &ts
		}
		records[i] = rec
	}
	return records, nil
}

func (t *Table) cell(row []string, col string) string {
	name := NormalizeHeader(col)
	if name == "" {
		return ""
	}
	idx, ok := t.colIdx[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func filledFields(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
