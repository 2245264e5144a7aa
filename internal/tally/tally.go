// Package tally counts unflagged votes per canonical business and keeps a
// per-row trace for audit output.
package tally

import (
	"sort"

	"github.com/tre1322/best-of-analyzer/internal/ballot"
	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/fraud"
)

// Entry is one line of the ranking.
type Entry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}

// TraceRow records how a single vote row was handled.
type TraceRow struct {
	Index      int    `json:"row_index"`
	Ref        string `json:"row"`
	Address    string `json:"address"`
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Canonical  string `json:"canonical"`
	Counted    bool   `json:"counted"`
	Reason     string `json:"reason,omitempty"`
}

// Result is the outcome of Tally.
type Result struct {
	Ranking  []Entry    `json:"ranking"`
	Trace    []TraceRow `json:"trace"`
	Counted  int        `json:"counted"`
	Excluded int        `json:"excluded"`
}

// Top returns at most n leading entries of the ranking.
func (r *Result) Top(n int) []Entry {
	if n < 0 || n >= len(r.Ranking) {
		return r.Ranking
	}
	return r.Ranking[:n]
}

// Tally excludes flagged rows, counts the remaining votes per canonical name
// and ranks them by count descending. Equal counts keep the order in which
// the canonical was first counted. Rows without a vote are not traced.
func Tally(records []ballot.VoteRecord, cmap canon.CanonicalMap, flags fraud.Flags) *Result {
	res := &Result{}
	counts := make(map[string]int)
	var order []string

	for _, rec := range records {
		if !rec.HasVote() {
			continue
		}
		canonical := cmap.Lookup(rec.RawName)
		reason, flagged := flags[rec.Index]
		res.Trace = append(res.Trace, TraceRow{
			Index:      rec.Index,
			Ref:        ballot.RowRef(rec.Index),
			Address:    rec.RawAddress,
			Raw:        rec.RawName,
			Normalized: canon.Normalize(rec.RawName),
			Canonical:  canonical,
			Counted:    !flagged,
			Reason:     reason,
		})
		if flagged {
			res.Excluded++
			continue
		}
		res.Counted++
		if _, seen := counts[canonical]; !seen {
			order = append(order, canonical)
		}
		counts[canonical]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	res.Ranking = make([]Entry, 0, len(order))
	for i, name := range order {
		res.Ranking = append(res.Ranking, Entry{Rank: i + 1, Name: name, Votes: counts[name]})
	}
	return res
}
