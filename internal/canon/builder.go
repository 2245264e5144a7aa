package canon

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source records which strategy produced a name's pre-dedupe canonical.
type Source string

const (
	SourceAnchor Source = "anchor"
	SourceMaster Source = "master"
	SourcePrefix Source = "prefix"
	SourceNew    Source = "new"
)

// CanonicalMap maps each raw vote name to its final canonical name.
type CanonicalMap map[string]string

// Lookup returns the canonical for raw, falling back to raw itself for names
// that were not part of the run.
func (m CanonicalMap) Lookup(raw string) string {
	if c, ok := m[raw]; ok {
		return c
	}
	return raw
}

// Resolution traces how one raw name was resolved.
type Resolution struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Assigned   string `json:"assigned"`
	Canonical  string `json:"canonical"`
	Source     Source `json:"source"`
}

// BuildResult is the output of Builder.Build.
type BuildResult struct {
	Map         CanonicalMap `json:"canonical_map"`
	Resolutions []Resolution `json:"resolutions"`
	Buckets     []Bucket     `json:"buckets"`
}

// BuilderConfig tunes the resolution thresholds.
type BuilderConfig struct {
	AnchorThreshold float64
	MasterThreshold float64
	DedupeThreshold float64
	PrefixLength    int
	Workers         int
}

// DefaultBuilderConfig returns the standard thresholds.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		AnchorThreshold: DefaultAnchorThreshold,
		MasterThreshold: DefaultMasterThreshold,
		DedupeThreshold: DefaultDedupeThreshold,
		PrefixLength:    DefaultPrefixLength,
		Workers:         4,
	}
}

// Builder produces a CanonicalMap for one analysis run.
type Builder struct {
	anchors []AnchorRule
	master  []MasterEntry
	cfg     BuilderConfig
}

// NewBuilder creates a Builder over the reference tables. Either table may be
// empty; resolution then falls through to prefix grouping.
func NewBuilder(anchors []AnchorRule, master []MasterEntry, cfg BuilderConfig) *Builder {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Builder{anchors: anchors, master: master, cfg: cfg}
}

// candidate is the order-independent part of a name's resolution.
type candidate struct {
	normalized string
	canonical  string
	source     Source
}

// accumulator carries canonicals assigned so far, in first-assignment order.
type accumulator struct {
	assigned   []string
	normalized []string
	seen       map[string]bool
}

func (a *accumulator) add(canon string) {
	if a.seen[canon] {
		return
	}
	a.seen[canon] = true
	a.assigned = append(a.assigned, canon)
	a.normalized = append(a.normalized, Normalize(canon))
}

// Build resolves names, which must be in first-appearance order. Anchor and
// directory lookups run concurrently; prefix grouping and deduplication then
// run sequentially in input order so the result does not depend on
// scheduling.
func (b *Builder) Build(ctx context.Context, names []string, category string) (*BuildResult, error) {
	names = distinct(names)
	anchors := NewAnchorResolver(b.anchors, b.cfg.AnchorThreshold)
	master := NewMasterMatcher(b.master, b.cfg.MasterThreshold).ForCategory(category)

	zap.L().Debug("canon: resolving names",
		zap.Int("names", len(names)),
		zap.Int("anchors", anchors.Len()),
		zap.Int("directory", master.Len()),
	)

	candidates := make([]candidate, len(names))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)
	for i, raw := range names {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			candidates[i] = resolveCandidate(raw, anchors, master)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "canon: resolve candidates")
	}

	acc := &accumulator{seen: make(map[string]bool)}
	grouper := PrefixGrouper{Length: b.cfg.PrefixLength}
	resolutions := make([]Resolution, len(names))
	for i, raw := range names {
		c := candidates[i]
		if c.source == "" {
			c.canonical = grouper.Group(raw, acc.assigned, acc.normalized)
			c.source = SourcePrefix
			if c.canonical == raw {
				c.source = SourceNew
			}
		}
		acc.add(c.canonical)
		resolutions[i] = Resolution{
			Raw:        raw,
			Normalized: c.normalized,
			Assigned:   c.canonical,
			Source:     c.source,
		}
	}

	dedupe, buckets := Deduplicator{Threshold: b.cfg.DedupeThreshold}.Dedupe(acc.assigned)

	out := make(CanonicalMap, len(names))
	for i := range resolutions {
		resolutions[i].Canonical = dedupe[resolutions[i].Assigned]
		out[resolutions[i].Raw] = resolutions[i].Canonical
	}

	zap.L().Debug("canon: resolved names",
		zap.Int("assigned", len(acc.assigned)),
		zap.Int("buckets", len(buckets)),
	)

	return &BuildResult{Map: out, Resolutions: resolutions, Buckets: buckets}, nil
}

func resolveCandidate(raw string, anchors *AnchorResolver, master *MasterMatcher) candidate {
	c := candidate{normalized: Normalize(raw)}
	if canon, ok := anchors.Resolve(c.normalized); ok {
		c.canonical, c.source = canon, SourceAnchor
		return c
	}
	if canon, ok := master.Resolve(raw); ok {
		c.canonical, c.source = canon, SourceMaster
	}
	return c
}

func distinct(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
