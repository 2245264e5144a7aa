package fraud

import (
	"fmt"
	"sort"
	"time"
)

// ReasonSparseDuplicate is the reason recorded by SparseDuplicateAddress.
const ReasonSparseDuplicate = "duplicate address with minimal participation"

// SparseDuplicateAddress flags rows from an address seen more than once in
// the whole table when the row itself has at most MaxFilled non-empty fields.
// Rows without a vote in the category count too.
type SparseDuplicateAddress struct {
	MaxFilled int
}

func (SparseDuplicateAddress) Name() string { return "sparse_duplicate_address" }

func (r SparseDuplicateAddress) Apply(in Input, flags Flags) {
	counts := make(map[string]int)
	for _, rec := range in.Records {
		if rec.Address != "" {
			counts[rec.Address]++
		}
	}
	for _, rec := range in.Records {
		if counts[rec.Address] > 1 && rec.FilledFields <= r.MaxFilled {
			flags[rec.Index] = ReasonSparseDuplicate
		}
	}
}

// RepeatVote flags every vote when one address votes for the same canonical
// business more than once.
type RepeatVote struct{}

func (RepeatVote) Name() string { return "repeat_vote" }

func (RepeatVote) Apply(in Input, flags Flags) {
	type key struct{ addr, canonical string }
	groups := make(map[key][]int)
	for _, rec := range in.Records {
		if !rec.HasVote() || rec.Address == "" {
			continue
		}
		k := key{rec.Address, in.Canonical.Lookup(rec.RawName)}
		groups[k] = append(groups[k], rec.Index)
	}
	for k, rows := range groups {
		if len(rows) < 2 {
			continue
		}
		reason := fmt.Sprintf("repeat vote for '%s' from address %s", k.canonical, k.addr)
		for _, idx := range rows {
			flags[idx] = reason
		}
	}
}

// TimeBurst flags clusters of votes for one business that arrive within
// Window of the cluster's first vote. Clusters grow from the earliest
// unconsumed vote; a flagged cluster consumes its rows. Window is anchored to
// the first vote rather than sliding, so a burst straddling two anchors can
// go unflagged.
type TimeBurst struct {
	Window    time.Duration
	Threshold int
}

func (TimeBurst) Name() string { return "time_burst" }

func (r TimeBurst) Apply(in Input, flags Flags) {
	type vote struct {
		idx int
		ts  time.Time
	}
	byCanonical := make(map[string][]vote)
	for _, rec := range in.Records {
		if !rec.HasVote() || rec.Address == "" || rec.Timestamp == nil {
			continue
		}
		c := in.Canonical.Lookup(rec.RawName)
		byCanonical[c] = append(byCanonical[c], vote{rec.Index, *rec.Timestamp})
	}

	minutes := int(r.Window / time.Minute)
	for canonical, votes := range byCanonical {
		sort.SliceStable(votes, func(i, j int) bool {
			if votes[i].ts.Equal(votes[j].ts) {
				return votes[i].idx < votes[j].idx
			}
			return votes[i].ts.Before(votes[j].ts)
		})

		consumed := make(map[int]bool)
		for i := range votes {
			if consumed[votes[i].idx] {
				continue
			}
			end := i + 1
			for end < len(votes) && votes[end].ts.Sub(votes[i].ts) <= r.Window {
				end++
			}
			if end-i < r.Threshold {
				continue
			}
			reason := fmt.Sprintf("%d votes for '%s' within %d minutes", end-i, canonical, minutes)
			for _, v := range votes[i:end] {
				flags[v.idx] = reason
				consumed[v.idx] = true
			}
		}
	}
}
