package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics and collapses inner whitespace so that
// "Friche  Reconvertie" and "friche reconvertie" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// FrenchCollator returns a collator for French names. Collators are not safe
// for concurrent use; take a fresh one per sort.
func FrenchCollator() *collate.Collator {
	return collate.New(language.French, collate.Loose)
}

// SortFrench sorts names the way a French reader expects ("Écouviez" next to
// "Eteignières", not after "Z").
func SortFrench(list []string) {
	FrenchCollator().SortStrings(list)
}
