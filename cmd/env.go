package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tre1322/best-of-analyzer/internal/analysis"
	"github.com/tre1322/best-of-analyzer/internal/ballot"
	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/config"
	"github.com/tre1322/best-of-analyzer/internal/fraud"
	"github.com/tre1322/best-of-analyzer/internal/reference"
	"github.com/tre1322/best-of-analyzer/internal/store"
)

// analysisOptions maps configuration onto analysis options.
func analysisOptions(c *config.Config) analysis.Options {
	return analysis.Options{
		Columns: ballot.Columns{
			Address:   c.Columns.Address,
			Timestamp: c.Columns.Timestamp,
		},
		Ballot: ballot.Options{StrictAddress: c.Rules.StrictAddress},
		Matching: canon.BuilderConfig{
			AnchorThreshold: c.Matching.AnchorThreshold,
			MasterThreshold: c.Matching.MasterThreshold,
			DedupeThreshold: c.Matching.DedupeThreshold,
			PrefixLength:    c.Matching.PrefixLength,
			Workers:         c.Matching.Workers,
		},
		Rules: fraud.Config{
			MinParticipation: c.Rules.MinParticipation,
			BurstWindow:      time.Duration(c.Rules.BurstWindowMinutes) * time.Minute,
			BurstThreshold:   c.Rules.BurstThreshold,
		},
		TopN: c.Report.TopN,
	}
}

func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{Driver: c.Store.Driver, DatabaseURL: c.Store.DatabaseURL})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// env holds what an analysis command needs. Close releases the store, if
// one was opened.
type env struct {
	Analyzer *analysis.Analyzer
	Store    store.Store
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

// runRecorder returns the store when run recording is enabled.
func (e *env) runRecorder(c *config.Config) store.Store {
	if c.Store.RecordRuns {
		return e.Store
	}
	return nil
}

// initAnalysis loads the reference tables once and builds the analyzer. A
// store is opened when references come from it or runs are recorded.
func initAnalysis(ctx context.Context, c *config.Config) (*env, error) {
	e := &env{}

	var src reference.Source = reference.FileSource{
		AnchorsPath: c.Reference.AnchorsPath,
		MasterPath:  c.Reference.MasterPath,
	}
	if c.Reference.Source == "store" || c.Store.RecordRuns {
		st, err := openStore(ctx, c)
		if err != nil {
			return nil, err
		}
		e.Store = st
		if c.Reference.Source == "store" {
			src = st
		}
	}

	refs := reference.Load(ctx, src)
	e.Analyzer = analysis.New(refs, analysisOptions(c))
	return e, nil
}
