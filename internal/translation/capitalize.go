package translation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Capitalize lower-cases every space separated word and upper-cases its
// first letter. Runs of spaces survive as empty words.
func Capitalize(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		w = strings.ToLower(w)
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
