package geocode

import (
	"regexp"
	"strings"
)

var (
	nonLetters = regexp.MustCompile(`[^a-z\s]`)
	multiSpace = regexp.MustCompile(`\s+`)
)

// CleanAddress lowercases and folds the ñ variants that show up in
// mis-encoded Philippine place names, matching how the gazetteer entries are
// cleaned on load.
func CleanAddress(text string) string {
	text = strings.ReplaceAll(text, "ñ", "n")
	text = strings.ReplaceAll(text, "Ñ", "n")
	text = strings.ReplaceAll(text, "ã±", "n")
	return strings.ToLower(text)
}

// NormalizeLocation canonicalizes a free-text location for whole-string
// fuzzy matching: letters only, common designators dropped, abbreviations
// expanded, whitespace collapsed.
func NormalizeLocation(text string) string {
	text = strings.ToLower(text)
	text = nonLetters.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "city of", "")
	text = strings.ReplaceAll(text, "municipality of", "")
	text = strings.ReplaceAll(text, "gen", "general")
	text = strings.ReplaceAll(text, "sto", "santo")
	return strings.TrimSpace(multiSpace.ReplaceAllString(text, " "))
}
