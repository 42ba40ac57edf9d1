// Package query turns a raw search phrase into typed tokens and compiles them
// into a single Solr query string.
package query

import "strings"

// TokenType classifies one token of a search phrase.
type TokenType int

const (
	// Plain is an unquoted run of words.
	Plain TokenType = iota
	// Exact is a quoted phrase without wildcards.
	Exact
	// Complex is a quoted phrase containing at least one unescaped wildcard.
	Complex
)

func (t TokenType) String() string {
	switch t {
	case Exact:
		return "exact"
	case Complex:
		return "complex"
	default:
		return "plain"
	}
}

// Token is a classified substring of a search phrase.
type Token struct {
	Text string
	Type TokenType
}

// IsQuoted reports whether term is longer than two characters and both starts and ends with a double quote.
func IsQuoted(term string) bool {
	return len(term) > 2 && strings.HasPrefix(term, `"`) && strings.HasSuffix(term, `"`)
}

// ContainsWildcards reports whether term holds a '*' or '?' that is not preceded by a backslash.
func ContainsWildcards(term string) bool {
	escaped := false
	for _, r := range term {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*', '?':
			return true
		}
	}
	return false
}

// Classify assigns a TokenType to a single token.
func Classify(token string) TokenType {
	if !IsQuoted(token) {
		return Plain
	}
	if ContainsWildcards(token) {
		return Complex
	}
	return Exact
}

// Parse tokenizes phrase and classifies every token.
func Parse(phrase string) []Token {
	raw := Tokenize(phrase)
	tokens := make([]Token, len(raw))
	for i, text := range raw {
		tokens[i] = Token{Text: text, Type: Classify(text)}
	}
	return tokens
}
