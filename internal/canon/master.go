package canon

import (
	"strings"

	"github.com/tre1322/best-of-analyzer/internal/similarity"
)

// DefaultMasterThreshold is the minimum token-sort score for a directory match.
const DefaultMasterThreshold = 85

// MasterEntry is one business from the reference directory.
type MasterEntry struct {
	Name       string `json:"name"`
	Normalized string `json:"normalized"`
	Category   string `json:"category,omitempty"`
}

// NewMasterEntry builds an entry, deriving the normalized name.
func NewMasterEntry(name, category string) MasterEntry {
	return MasterEntry{
		Name:       name,
		Normalized: Normalize(name),
		Category:   category,
	}
}

// MasterMatcher fuzzy-matches names against the reference directory.
type MasterMatcher struct {
	entries    []MasterEntry
	normalized []string
	threshold  float64
}

// NewMasterMatcher creates a matcher over entries.
func NewMasterMatcher(entries []MasterEntry, threshold float64) *MasterMatcher {
	m := &MasterMatcher{
		entries:    entries,
		normalized: make([]string, len(entries)),
		threshold:  threshold,
	}
	for i, e := range entries {
		m.normalized[i] = e.Normalized
	}
	return m
}

// Len returns the number of directory entries.
func (m *MasterMatcher) Len() int {
	return len(m.entries)
}

// ForCategory narrows the matcher to entries whose category contains
// category, case-insensitively. The full directory is kept when category is
// empty or no entry carries category data.
func (m *MasterMatcher) ForCategory(category string) *MasterMatcher {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" || !m.hasCategories() {
		return m
	}

	var filtered []MasterEntry
	for _, e := range m.entries {
		if strings.Contains(strings.ToLower(e.Category), category) {
			filtered = append(filtered, e)
		}
	}
	return NewMasterMatcher(filtered, m.threshold)
}

func (m *MasterMatcher) hasCategories() bool {
	for _, e := range m.entries {
		if e.Category != "" {
			return true
		}
	}
	return false
}

// Resolve returns the directory name (original casing) closest to raw when
// it scores at least the threshold. Otherwise raw is returned unchanged with
// matched set to false.
func (m *MasterMatcher) Resolve(raw string) (canonical string, matched bool) {
	idx, score, ok := similarity.ExtractOne(Normalize(raw), m.normalized, similarity.TokenSortRatio)
	if ok && score >= m.threshold {
		return m.entries[idx].Name, true
	}
	return raw, false
}
