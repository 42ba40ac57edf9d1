// Package spell reapplies a backend spelling collation to the original search phrase.
package spell

import (
	"strings"

	"github.com/hyperjump/kensaku/internal/query"
)

// Apply rewrites the unquoted parts of original with words from corrected.
// Each plain token takes as many words from corrected as it had; quoted tokens are kept
// verbatim and their words are skipped in corrected. When corrected runs out of words
// the original words are kept; words it has beyond the original are appended.
func Apply(original, corrected string) string {
	words := strings.Fields(corrected)
	tokens := query.Parse(original)
	if len(tokens) == 0 {
		return ""
	}
	out := make([]string, 0, len(tokens))
	next := 0
	for _, tok := range tokens {
		own := strings.Fields(tok.Text)
		if tok.Type != query.Plain {
			out = append(out, tok.Text)
			next += len(own)
			continue
		}
		replaced := make([]string, len(own))
		for i, w := range own {
			if next+i < len(words) {
				replaced[i] = words[next+i]
			} else {
				replaced[i] = w
			}
		}
		next += len(own)
		out = append(out, strings.Join(replaced, " "))
	}
	if next < len(words) {
		out = append(out, words[next:]...)
	}
	return strings.Join(out, " ")
}
