// Package reference loads the anchor rules and business master directory
// that canonicalization resolves against.
package reference

import (
	"context"

	"go.uber.org/zap"

	"github.com/tre1322/best-of-analyzer/internal/analysis"
	"github.com/tre1322/best-of-analyzer/internal/canon"
)

// Business is one row of the master directory.
type Business struct {
	Name          string `csv:"Business Name" json:"name" yaml:"name"`
	Address       string `csv:"Address" json:"address,omitempty" yaml:"address,omitempty"`
	PlaceID       string `csv:"Place ID" json:"place_id,omitempty" yaml:"place_id,omitempty"`
	Category      string `csv:"Category,omitempty" json:"category,omitempty" yaml:"category,omitempty"`
	CategoryQuery string `csv:"Category Query" json:"category_query,omitempty" yaml:"category_query,omitempty"`
	City          string `csv:"City" json:"city,omitempty" yaml:"city,omitempty"`
}

// CategoryText is the text matched against a vote category: Category when
// set, else the search query that found the business.
func (b Business) CategoryText() string {
	if b.Category != "" {
		return b.Category
	}
	return b.CategoryQuery
}

// MasterEntries converts directory rows for the matcher.
func MasterEntries(businesses []Business) []canon.MasterEntry {
	out := make([]canon.MasterEntry, 0, len(businesses))
	for _, b := range businesses {
		if b.Name == "" {
			continue
		}
		out = append(out, canon.NewMasterEntry(b.Name, b.CategoryText()))
	}
	return out
}

// Source supplies reference tables.
type Source interface {
	Anchors(ctx context.Context) ([]canon.AnchorRule, error)
	Businesses(ctx context.Context) ([]Business, error)
}

// Load reads both tables from src. A table that cannot be read is replaced
// by an empty one and a warning is logged; analysis then falls back to
// prefix grouping.
func Load(ctx context.Context, src Source) analysis.References {
	var refs analysis.References

	anchors, err := src.Anchors(ctx)
	if err != nil {
		zap.L().Warn("reference: anchor rules unavailable, continuing without", zap.Error(err))
	} else {
		refs.Anchors = anchors
	}

	businesses, err := src.Businesses(ctx)
	if err != nil {
		zap.L().Warn("reference: master directory unavailable, continuing without", zap.Error(err))
	} else {
		refs.Master = MasterEntries(businesses)
	}

	zap.L().Info("reference: tables loaded",
		zap.Int("anchors", len(refs.Anchors)),
		zap.Int("businesses", len(refs.Master)),
	)
	return refs
}
