package indexer

import (
	"strings"
	"unicode"
)

// Preprocess cleans display text before storage: it trims, collapses whitespace runs to one
// space, and drops control characters. Case and punctuation are kept; matching uses the
// separately normalized form.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
