package query

import "strings"

// reserved lists the characters with meaning in the Lucene/Solr query syntax.
const reserved = `\+-!():^[]"{}~*?|&/`

// Escape backslash-escapes every reserved character in term. Existing escape sequences are
// kept as they are. With keepWildcards, '*' and '?' pass through unescaped.
func Escape(term string, keepWildcards bool) string {
	runes := []rune(term)
	var b strings.Builder
	b.Grow(len(term) + 8)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) {
			b.WriteRune(r)
			b.WriteRune(runes[i+1])
			i++
			continue
		}
		if keepWildcards && (r == '*' || r == '?') {
			b.WriteRune(r)
			continue
		}
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Quote wraps value in double quotes so it is matched as a single literal term.
func Quote(value string) string {
	return `"` + quoteReplacer.Replace(value) + `"`
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
