// Package canon resolves free-text business names to canonical identities.
package canon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// apostrophes removes apostrophe-like characters, including the mis-encoded
// right single quote that survives a UTF-8 → cp1252 → UTF-8 round trip.
var apostrophes = strings.NewReplacer(
	"â€™", "",
	"’", "",
	"‘", "",
	"ʼ", "",
	"´", "",
	"'", "",
	"`", "",
	"€", "",
	"™", "",
)

var punctuation = strings.NewReplacer(
	".", " ",
	"-", " ",
	"&", "and",
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var disallowedRe = regexp.MustCompile(`[^a-z0-9 ]`)

// Normalize standardizes a business name for matching by:
//  1. Converting to lowercase
//  2. Removing apostrophes (Joe's → joes)
//  3. Turning periods and hyphens into spaces and & into "and"
//  4. Folding accented letters to ASCII (café → cafe)
//  5. Turning tabs and line breaks into spaces, then dropping everything
//     except a-z, 0-9 and spaces
//  6. Collapsing runs of whitespace and trimming
//
// Normalize is idempotent.
func Normalize(name string) string {
	name = strings.ToLower(name)
	name = apostrophes.Replace(name)
	name = punctuation.Replace(name)

	if folded, _, err := transform.String(stripAccents, name); err == nil {
		name = folded
	}

	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, name)
	name = disallowedRe.ReplaceAllString(name, "")

	return strings.Join(strings.Fields(name), " ")
}
