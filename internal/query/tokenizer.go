package query

import "strings"

// Tokenize splits phrase at double quotes. An unescaped quote toggles phrase mode and is kept
// in the token it opens or closes. Unquoted runs are trimmed and may hold several words.
// A phrase left open at the end of the input is appended to the previous token.
// Tokenize never fails; malformed quoting degrades to a best-effort split.
func Tokenize(phrase string) []string {
	var (
		tokens  []string
		current strings.Builder
		inQuote bool
		escaped bool
	)

	flushPlain := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			tokens = append(tokens, s)
		}
		current.Reset()
	}

	for _, r := range phrase {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}
		switch {
		case r == '\\':
			current.WriteRune(r)
			escaped = true
		case r == '"' && inQuote:
			current.WriteRune(r)
			if quoted := current.String(); strings.TrimSpace(quoted[1:len(quoted)-1]) != "" {
				tokens = append(tokens, quoted)
			}
			current.Reset()
			inQuote = false
		case r == '"':
			flushPlain()
			current.WriteRune(r)
			inQuote = true
		default:
			current.WriteRune(r)
		}
	}

	if !inQuote {
		flushPlain()
		return tokens
	}

	broken := strings.TrimSpace(current.String())
	if n := len(tokens); n > 0 {
		tokens[n-1] = tokens[n-1] + " " + broken
	} else if broken != "" {
		tokens = append(tokens, broken)
	}
	return tokens
}
