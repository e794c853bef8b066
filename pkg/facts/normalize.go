package facts

import (
	"strings"
	"unicode"
)

// stripped is the punctuation removed by Normalize.
var stripped = map[rune]struct{}{
	'?': {}, '!': {}, '.': {}, ',': {}, ';': {}, ':': {},
	'(': {}, ')': {},
	'"': {}, '\'': {},
	'“': {}, '”': {}, '‘': {}, '’': {},
	'«': {}, '»': {},
	'¿': {}, '¡': {},
}

// Normalize canonicalizes question text: lower-cased, listed punctuation
// removed, hyphens read as spaces, whitespace runs collapsed to a single space
// and trimmed.
//
// The same function backs Upsert, Lookup and Forget, so questions that differ
// only by case, whitespace or that punctuation share a fact.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		if _, ok := stripped[r]; ok {
			continue
		}
		if unicode.IsSpace(r) || r == '-' {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
