// Package fraud flags suspicious vote rows before they are counted.
package fraud

import (
	"time"

	"go.uber.org/zap"

	"github.com/tre1322/best-of-analyzer/internal/ballot"
	"github.com/tre1322/best-of-analyzer/internal/canon"
)

// Flags maps a row index to the reason it was excluded. Each row holds one
// reason: when several rules flag a row, the rule evaluated last wins.
type Flags map[int]string

// Config tunes the rule thresholds.
type Config struct {
	// MinParticipation is the largest filled-field count treated as minimal.
	MinParticipation int
	// BurstWindow is measured from the first vote of a cluster.
	BurstWindow time.Duration
	// BurstThreshold is the cluster size at which a burst is flagged.
	BurstThreshold int
}

// DefaultConfig returns the standard rule thresholds.
func DefaultConfig() Config {
	return Config{
		MinParticipation: 2,
		BurstWindow:      10 * time.Minute,
		BurstThreshold:   8,
	}
}

// Input is the fully canonicalized vote table a rule inspects.
type Input struct {
	Records   []ballot.VoteRecord
	Canonical canon.CanonicalMap
}

// Rule inspects the table and writes reasons into flags.
type Rule interface {
	Name() string
	Apply(in Input, flags Flags)
}

// Engine evaluates rules in a fixed order against a shared flag table.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine with the standard rules in evaluation order:
// sparse duplicate address, repeat vote, time burst.
func NewEngine(cfg Config) *Engine {
	return NewEngineWithRules(
		SparseDuplicateAddress{MaxFilled: cfg.MinParticipation},
		RepeatVote{},
		TimeBurst{Window: cfg.BurstWindow, Threshold: cfg.BurstThreshold},
	)
}

// NewEngineWithRules returns an engine evaluating rules in the given order.
func NewEngineWithRules(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// Evaluate runs every rule and returns the combined flag table. Rules never
// fail: missing data simply yields no flags.
func (e *Engine) Evaluate(in Input) Flags {
	flags := make(Flags)
	for _, r := range e.rules {
		before := len(flags)
		scratch := make(Flags)
		r.Apply(in, scratch)
		for idx, reason := range scratch {
			flags[idx] = reason
		}
		zap.L().Debug("fraud: rule evaluated",
			zap.String("rule", r.Name()),
			zap.Int("flagged", len(scratch)),
			zap.Int("new_rows", len(flags)-before),
		)
	}
	return flags
}
