package canon

import "strings"

// DefaultPrefixLength is the number of normalized characters compared by PrefixGrouper.
const DefaultPrefixLength = 4

// PrefixGrouper clusters names that no reference table recognised onto a
// canonical already assigned earlier in the same run.
type PrefixGrouper struct {
	Length int
}

// Group returns the first assigned canonical whose normalized form starts
// with the same prefix as raw, or raw itself when none does. assigned must be
// in first-assignment order; normalizedAssigned holds their normalized forms
// at the same positions. A name that normalizes to nothing never groups.
func (g PrefixGrouper) Group(raw string, assigned, normalizedAssigned []string) string {
	prefix := Normalize(raw)
	if prefix == "" {
		return raw
	}
	if n := g.length(); len(prefix) > n {
		prefix = prefix[:n]
	}

	for i, canon := range assigned {
		if strings.HasPrefix(normalizedAssigned[i], prefix) {
			return canon
		}
	}
	return raw
}

func (g PrefixGrouper) length() int {
	if g.Length <= 0 {
		return DefaultPrefixLength
	}
	return g.Length
}
