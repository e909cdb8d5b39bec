package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanUTF8 removes or replaces invalid UTF8 characters from a string
// Returns the cleaned string and a boolean indicating if cleaning was needed
func CleanUTF8(input string) (string, bool) {
	needsCleaning := strings.Contains(input, "\x00") || !utf8.ValidString(input)

	if !needsCleaning {
		return input, false
	}

	cleaned := strings.ToValidUTF8(input, "")
	cleaned = strings.ReplaceAll(cleaned, "\x00", "")

	return cleaned, true
}

// CollapseSpaces trims a string and collapses interior whitespace runs to a
// single space, so "Income   Certificate " and "Income Certificate" compare
// equal. Invalid UTF-8 is scrubbed first; form input arrives from copy-paste
// of all provenances.
func CollapseSpaces(input string) string {
	cleaned, _ := CleanUTF8(input)
	return strings.Join(strings.Fields(cleaned), " ")
}

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold returns the matching form of a service name: whitespace collapsed,
// lowercased, diacritics stripped. Bilingual input means accented Latin and
// Indic combining marks both show up in typed queries.
func Fold(input string) string {
	collapsed := strings.ToLower(CollapseSpaces(input))

	folded, _, err := transform.String(diacriticStripper, collapsed)
	if err != nil {
		return collapsed
	}
	return folded
}
