package query

import "strings"

// DefaultComplexPhraseParser is the Solr query parser used for quoted phrases.
const DefaultComplexPhraseParser = "complexphrase"

// Operator joins the words of an unquoted token.
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

// ParseOperator returns the operator named by s (case-insensitive), defaulting to And.
func ParseOperator(s string) (Operator, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AND":
		return And, true
	case "OR":
		return Or, true
	default:
		return And, false
	}
}

// QueryType is the overall classification of a compiled query.
type QueryType int

const (
	PlainQuery QueryType = iota
	ExactQuery
	MixedQuery
)

func (q QueryType) String() string {
	switch q {
	case ExactQuery:
		return "exact"
	case MixedQuery:
		return "mixed"
	default:
		return "plain"
	}
}

// typeOf returns the query type of a single-token query.
func typeOf(t TokenType) QueryType {
	if t == Plain {
		return PlainQuery
	}
	return ExactQuery
}

// With folds one more token type into q. Once mixed, a query stays mixed.
func (q QueryType) With(t TokenType) QueryType {
	switch q {
	case PlainQuery:
		if t == Plain {
			return PlainQuery
		}
		return MixedQuery
	case ExactQuery:
		if t == Plain {
			return MixedQuery
		}
		return ExactQuery
	default:
		return MixedQuery
	}
}

// CompiledQuery is a backend query string plus its classification.
type CompiledQuery struct {
	Query string
	Type  QueryType
}

// FieldResolver supplies the field name variants the compiler needs.
type FieldResolver interface {
	ExactNames(names []string) []string
	ExactNoPunctuationNames(names []string) []string
	Boosting(name string) string
}

// CompileOptions controls how a phrase is rendered.
type CompileOptions struct {
	// Fields are the search fields. Quoted tokens are resolved to their exact variants.
	Fields []string
	// Negated prefixes every clause with '-'.
	Negated bool
	// IncludeFieldNames spreads unquoted words across Fields instead of leaving
	// field selection to the query parser (qf).
	IncludeFieldNames bool
	// Operator joins the words of an unquoted token. Empty means And.
	Operator Operator
}

// Compiler renders search phrases as Solr queries. It holds no per-call state
// and is safe for concurrent use.
type Compiler struct {
	resolver FieldResolver
	parser   string
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithComplexPhraseParser sets the local-params parser name used for quoted phrases.
func WithComplexPhraseParser(name string) CompilerOption {
	return func(c *Compiler) {
		if name != "" {
			c.parser = name
		}
	}
}

// NewCompiler creates a compiler resolving exact field variants through resolver.
func NewCompiler(resolver FieldResolver, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		resolver: resolver,
		parser:   DefaultComplexPhraseParser,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile tokenizes term and joins one clause per token with AND.
// An empty term compiles to an empty plain query.
func (c *Compiler) Compile(term string, opts CompileOptions) CompiledQuery {
	tokens := Parse(term)
	if len(tokens) == 0 {
		return CompiledQuery{Type: PlainQuery}
	}

	clauses := make([]string, 0, len(tokens))
	qt := typeOf(tokens[0].Type)
	for i, tok := range tokens {
		if i > 0 {
			qt = qt.With(tok.Type)
		}
		var clause string
		if tok.Type == Plain {
			clause = c.plainClause(tok.Text, opts)
		} else {
			clause = c.phraseClause(tok.Text, opts)
		}
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}
	return CompiledQuery{Query: strings.Join(clauses, " AND "), Type: qt}
}

func (c *Compiler) plainClause(text string, opts CompileOptions) string {
	words := strings.Fields(text)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		term := w
		if w != "*" {
			term = Escape(w, false)
		}
		switch {
		case opts.IncludeFieldNames && len(opts.Fields) > 0:
			term = c.spread(term, opts)
		case opts.Negated:
			term = "-" + term
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return terms[0]
	}
	op := opts.Operator
	if op == "" {
		op = And
	}
	return strings.Join(terms, " "+string(op)+" ")
}

// spread renders term once per field, joining the field clauses with the query operator.
func (c *Compiler) spread(term string, opts CompileOptions) string {
	op := opts.Operator
	if op == "" {
		op = And
	}
	sep, prefix := " "+string(op)+" ", ""
	if opts.Negated {
		prefix = "-"
	}
	parts := make([]string, 0, len(opts.Fields))
	for _, f := range opts.Fields {
		name, boost := SplitBoost(f)
		if boost == "" && c.resolver != nil {
			boost = c.resolver.Boosting(name)
		}
		parts = append(parts, prefix+name+":"+term+boost)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (c *Compiler) phraseClause(text string, opts CompileOptions) string {
	if text == `"*"` {
		return "*"
	}
	phrase := `\"` + Escape(text[1:len(text)-1], true) + `\"`

	fields := c.exactFields(opts.Fields)
	var sub string
	switch len(fields) {
	case 0:
		sub = phrase
	case 1:
		sub = fields[0] + ":" + phrase
	default:
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = f + ":" + phrase
		}
		sub = "(" + strings.Join(parts, " OR ") + ")"
	}

	clause := `_query_:"{!` + c.parser + `}` + sub + `"`
	if opts.Negated {
		clause = "-" + clause
	}
	return clause
}

// exactFields resolves the exact and exact-no-punctuation variants of fields, boosts stripped.
// Without any variant the plain field names are used.
func (c *Compiler) exactFields(fields []string) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		name, _ := SplitBoost(f)
		names = append(names, name)
	}
	if c.resolver == nil {
		return names
	}
	resolved := appendUnique(nil, c.resolver.ExactNames(names)...)
	resolved = appendUnique(resolved, c.resolver.ExactNoPunctuationNames(names)...)
	if len(resolved) == 0 {
		return names
	}
	return resolved
}

// SplitBoost separates a trailing "^N" boost from a field name.
func SplitBoost(field string) (name, boost string) {
	i := strings.LastIndexByte(field, '^')
	if i <= 0 || i == len(field)-1 {
		return field, ""
	}
	for _, r := range field[i+1:] {
		if (r < '0' || r > '9') && r != '.' {
			return field, ""
		}
	}
	return field[:i], field[i:]
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
