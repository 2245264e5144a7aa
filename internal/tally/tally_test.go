package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tre1322/best-of-analyzer/internal/ballot"
	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/fraud"
)

func records(names ...string) []ballot.VoteRecord {
	out := make([]ballot.VoteRecord, len(names))
	for i, n := range names {
		out[i] = ballot.VoteRecord{Index: i, RawName: n, RawAddress: "10.0.0.1", Address: "10.0.0.1"}
	}
	return out
}

func TestTally_ScenarioF(t *testing.T) {
	var names []string
	for i := 0; i < 5; i++ {
		names = append(names, "B")
	}
	for i := 0; i < 10; i++ {
		names = append(names, "A")
	}

	res := Tally(records(names...), canon.CanonicalMap{"A": "A", "B": "B"}, fraud.Flags{})

	require.Len(t, res.Ranking, 2)
	assert.Equal(t, Entry{Rank: 1, Name: "A", Votes: 10}, res.Ranking[0])
	assert.Equal(t, Entry{Rank: 2, Name: "B", Votes: 5}, res.Ranking[1])
	assert.Equal(t, 15, res.Counted)
}

func TestTally_ExcludesFlaggedRows(t *testing.T) {
	recs := records("Joe's Pizza", "Joes Pizza", "", "Acme Bakery", "acme bakery")
	cmap := canon.CanonicalMap{
		"Joe's Pizza": "Joe's Pizza",
		"Joes Pizza":  "Joe's Pizza",
		"Acme Bakery": "Acme Bakery",
		"acme bakery": "Acme Bakery",
	}
	flags := fraud.Flags{2: fraud.ReasonSparseDuplicate, 3: "repeat", 4: "repeat"}

	res := Tally(recs, cmap, flags)

	assert.Equal(t, []Entry{{Rank: 1, Name: "Joe's Pizza", Votes: 2}}, res.Ranking)
	assert.Equal(t, 2, res.Counted)
	assert.Equal(t, 2, res.Excluded)

	require.Len(t, res.Trace, 4)
	assert.Equal(t, TraceRow{
		Index:      1,
		Ref:        "A3",
		Address:    "10.0.0.1",
		Raw:        "Joes Pizza",
		Normalized: "joes pizza",
		Canonical:  "Joe's Pizza",
		Counted:    true,
	}, res.Trace[1])
	assert.False(t, res.Trace[2].Counted)
	assert.Equal(t, "repeat", res.Trace[2].Reason)
}

func TestTally_CountInvariant(t *testing.T) {
	recs := records("A", "", "B", "A", "C", "", "B")
	flags := fraud.Flags{0: "x", 1: "y", 4: "z"}

	res := Tally(recs, canon.CanonicalMap{}, flags)

	withVote, flaggedWithVote := 0, 0
	for _, r := range recs {
		if r.HasVote() {
			withVote++
			if _, ok := flags[r.Index]; ok {
				flaggedWithVote++
			}
		}
	}
	assert.Equal(t, withVote, res.Counted+flaggedWithVote)
	assert.Equal(t, flaggedWithVote, res.Excluded)
}

func TestTally_TiesKeepFirstCountedOrder(t *testing.T) {
	res := Tally(records("C", "A", "B", "A", "C", "B"), nil, nil)

	names := make([]string, 0, len(res.Ranking))
	for _, e := range res.Ranking {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"C", "A", "B"}, names)
}

func TestResult_Top(t *testing.T) {
	res := Tally(records("A", "B", "C", "D", "A"), nil, nil)

	assert.Len(t, res.Top(3), 3)
	assert.Equal(t, "A", res.Top(1)[0].Name)
	assert.Len(t, res.Top(10), 4)
	assert.Len(t, res.Top(-1), 4)
}

func TestTally_Empty(t *testing.T) {
	res := Tally(nil, nil, nil)
	assert.Empty(t, res.Ranking)
	assert.Empty(t, res.Trace)
}
