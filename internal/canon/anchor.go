package canon

import (
	"strings"

	"github.com/tre1322/best-of-analyzer/internal/similarity"
)

// DefaultAnchorThreshold is the minimum partial-ratio score for a fuzzy anchor hit.
const DefaultAnchorThreshold = 80

// AnchorRule maps a lowercase name fragment to a canonical business name.
type AnchorRule struct {
	Fragment  string `json:"anchor" yaml:"anchor"`
	Canonical string `json:"canonical" yaml:"canonical"`
}

// AnchorResolver looks names up against a short curated list of fragments.
// Rule order is significant: the first substring hit wins.
type AnchorResolver struct {
	rules     []AnchorRule
	fragments []string
	threshold float64
}

// NewAnchorResolver creates a resolver over rules in the given order. Rules
// with an empty fragment are ignored since they would match every name.
func NewAnchorResolver(rules []AnchorRule, threshold float64) *AnchorResolver {
	r := &AnchorResolver{threshold: threshold}
	for _, rule := range rules {
		if rule.Fragment == "" {
			continue
		}
		r.rules = append(r.rules, rule)
		r.fragments = append(r.fragments, rule.Fragment)
	}
	return r
}

// Len returns the number of usable rules.
func (r *AnchorResolver) Len() int {
	return len(r.rules)
}

// Resolve returns the canonical name for an already normalized name. A
// fragment contained in the name always beats fuzzy scoring; otherwise the
// best partial-ratio fragment is used when it reaches the threshold.
func (r *AnchorResolver) Resolve(normalized string) (string, bool) {
	for _, rule := range r.rules {
		if strings.Contains(normalized, rule.Fragment) {
			return rule.Canonical, true
		}
	}

	idx, score, ok := similarity.ExtractOne(normalized, r.fragments, similarity.PartialRatio)
	if ok && score >= r.threshold {
		return r.rules[idx].Canonical, true
	}
	return "", false
}
