// Package analysis runs one vote analysis end to end: canonicalize names,
// evaluate fraud rules and tally what remains.
package analysis

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tre1322/best-of-analyzer/internal/ballot"
	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/fraud"
	"github.com/tre1322/best-of-analyzer/internal/tally"
)

// References holds the read-only reference tables for a run. Either may be
// empty.
type References struct {
	Anchors []canon.AnchorRule
	Master  []canon.MasterEntry
}

// Options configures a run.
type Options struct {
	Columns  ballot.Columns
	Ballot   ballot.Options
	Matching canon.BuilderConfig
	Rules    fraud.Config
	TopN     int
}

// DefaultOptions returns the standard column names and thresholds. The
// category column must still be set by the caller.
func DefaultOptions() Options {
	return Options{
		Columns: ballot.Columns{
			Address:   ballot.DefaultAddressColumn,
			Timestamp: ballot.DefaultTimestampColumn,
		},
		Ballot:   ballot.Options{StrictAddress: true},
		Matching: canon.DefaultBuilderConfig(),
		Rules:    fraud.DefaultConfig(),
		TopN:     3,
	}
}

// FraudEntry is one line of the fraud report.
type FraudEntry struct {
	Index  int    `json:"row_index"`
	Ref    string `json:"row"`
	Reason string `json:"reason"`
}

// Result is everything a run produces.
type Result struct {
	RunID     string             `json:"run_id"`
	Category  string             `json:"category"`
	StartedAt time.Time          `json:"started_at"`
	Rows      int                `json:"rows"`
	Votes     int                `json:"votes"`
	Canonical *canon.BuildResult `json:"canonical"`
	Flags     fraud.Flags        `json:"-"`
	Fraud     []FraudEntry       `json:"fraud"`
	Tally     *tally.Result      `json:"tally"`
	Summary   []tally.Entry      `json:"summary"`
}

// Analyzer runs analyses against a fixed set of reference tables.
type Analyzer struct {
	refs    References
	opts    Options
	builder *canon.Builder
	engine  *fraud.Engine
}

// New creates an Analyzer.
func New(refs References, opts Options) *Analyzer {
	return &Analyzer{
		refs:    refs,
		opts:    opts,
		builder: canon.NewBuilder(refs.Anchors, refs.Master, opts.Matching),
		engine:  fraud.NewEngine(opts.Rules),
	}
}

// Run analyzes category in tbl. A missing category column fails with a
// *ballot.MissingColumnError before any processing.
func (a *Analyzer) Run(ctx context.Context, tbl *ballot.Table, category string) (*Result, error) {
	cols := a.opts.Columns
	cols.Category = category

	records, err := tbl.Records(cols, a.opts.Ballot)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: read vote records")
	}

	res := &Result{
		RunID:     uuid.New().String(),
		Category:  ballot.NormalizeHeader(category),
		StartedAt: time.Now().UTC(),
		Rows:      len(records),
	}
	log := zap.L().With(zap.String("run_id", res.RunID), zap.String("category", res.Category))

	names := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.HasVote() {
			names = append(names, rec.RawName)
		}
	}
	res.Votes = len(names)

	res.Canonical, err = a.builder.Build(ctx, names, res.Category)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: build canonical map")
	}

	res.Flags = a.engine.Evaluate(fraud.Input{Records: records, Canonical: res.Canonical.Map})
	res.Fraud = fraudReport(res.Flags)

	res.Tally = tally.Tally(records, res.Canonical.Map, res.Flags)
	res.Summary = res.Tally.Top(a.opts.TopN)

	log.Info("analysis: complete",
		zap.Int("rows", res.Rows),
		zap.Int("votes", res.Votes),
		zap.Int("canonicals", len(res.Canonical.Buckets)),
		zap.Int("flags", len(res.Flags)),
		zap.Int("counted", res.Tally.Counted),
	)
	return res, nil
}

func fraudReport(flags fraud.Flags) []FraudEntry {
	out := make([]FraudEntry, 0, len(flags))
	for idx, reason := range flags {
		out = append(out, FraudEntry{Index: idx, Ref: ballot.RowRef(idx), Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
