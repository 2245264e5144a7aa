// Package store persists the reference directory and analysis run history.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tre1322/best-of-analyzer/internal/analysis"
	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/reference"
	"github.com/tre1322/best-of-analyzer/internal/tally"
)

// RunSummary is the stored record of one analysis run.
type RunSummary struct {
	ID        string        `json:"id"`
	Category  string        `json:"category"`
	Rows      int           `json:"rows"`
	Votes     int           `json:"votes"`
	Counted   int           `json:"counted"`
	Flagged   int           `json:"flagged"`
	Summary   []tally.Entry `json:"summary"`
	CreatedAt time.Time     `json:"created_at"`
}

// SummaryFromResult extracts the stored fields of a run.
func SummaryFromResult(res *analysis.Result) RunSummary {
	return RunSummary{
		ID:        res.RunID,
		Category:  res.Category,
		Rows:      res.Rows,
		Votes:     res.Votes,
		Counted:   res.Tally.Counted,
		Flagged:   len(res.Flags),
		Summary:   res.Summary,
		CreatedAt: res.StartedAt,
	}
}

// Store defines persistence for reference tables and run history. It
// satisfies reference.Source so analysis can read its tables from a store.
type Store interface {
	// Anchor rules, kept in insertion order.
	ReplaceAnchors(ctx context.Context, rules []canon.AnchorRule) error
	Anchors(ctx context.Context) ([]canon.AnchorRule, error)

	// Master directory, kept in first-insertion order.
	UpsertBusinesses(ctx context.Context, businesses []reference.Business) (int, error)
	Businesses(ctx context.Context) ([]reference.Business, error)

	// Run history
	SaveRun(ctx context.Context, run RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// Open connects to the configured backend and migrates it.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "best-of.db"
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// businessKey identifies a directory row across imports: the place ID when
// known, else the normalized name and city.
func businessKey(b reference.Business) string {
	if b.PlaceID != "" {
		return "place:" + b.PlaceID
	}
	return "name:" + canon.Normalize(b.Name) + "|" + strings.ToLower(strings.TrimSpace(b.City))
}
