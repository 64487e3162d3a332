// Package normalize folds free text into the canonical form used for keyword indexing, exact-match
// comparison and embedding input.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// LargeInput is the input size in bytes above which the engine and indexer log a warning.
const LargeInput = 1_000_000

// Text lowercases s, applies NFKC, removes punctuation and symbols except hyphens, turns hyphens
// into spaces and collapses whitespace runs into single spaces. Empty input returns "".
func Text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = norm.NFKC.String(s)
	s = cases.Lower(language.Und).String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case isHyphen(r), unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			// dropped
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Equal reports whether a and b normalize to the same text.
func Equal(a, b string) bool {
	return Text(a) == Text(b)
}

func isHyphen(r rune) bool {
	return r == '-' || unicode.Is(unicode.Dash, r)
}
