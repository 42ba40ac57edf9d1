package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/kensaku/internal/query"
)

// DefaultRows is the page size used when a request does not set one.
const DefaultRows = 10

// ErrInvalidRequest is wrapped by every validation failure of a search request.
var ErrInvalidRequest = errors.New("invalid search request")

// QueryKind tells how the text of a Query is interpreted.
type QueryKind int

const (
	// MatchAll matches every document.
	MatchAll QueryKind = iota
	// PhraseQuery is a user phrase compiled by the query compiler.
	PhraseQuery
	// RawQuery is a backend query string used verbatim.
	RawQuery
)

// Query is either a user phrase or a raw backend query. The zero value matches all.
type Query struct {
	Kind QueryKind
	Text string
}

// Phrase returns a phrase-driven query. A blank phrase matches all.
func Phrase(text string) Query {
	if strings.TrimSpace(text) == "" {
		return Query{}
	}
	return Query{Kind: PhraseQuery, Text: text}
}

// Raw returns a query passed to the backend unchanged. A blank query matches all.
func Raw(text string) Query {
	if strings.TrimSpace(text) == "" {
		return Query{}
	}
	return Query{Kind: RawQuery, Text: text}
}

// IsPhrase reports whether q is phrase-driven.
func (q Query) IsPhrase() bool { return q.Kind == PhraseQuery }

// SearchRequest holds the user-level parameters of one search.
// Build it with NewSearchRequest; treat it as read-only afterwards.
type SearchRequest struct {
	Query Query
	// Fields are the search fields. Empty means the fields of FieldGroup.
	Fields     []string
	FieldGroup string
	// ReturnFields is the stored field list (fl). Empty means every field.
	ReturnFields []string
	// Filters maps a filter expression to the tag of the facet it belongs to (may be empty).
	Filters map[string]string
	// Facets and Stats fall back to the configured lists when nil.
	Facets []string
	Stats  []string
	Sort   string
	Start  int
	Rows   int

	Highlight         bool
	HighlightPhrase   string
	HighlightFields   []string
	HighlightSnippets int

	Grouping bool
	// GroupLimit overrides the configured number of members per group.
	GroupLimit int
	Collapse   bool

	Operator        query.Operator
	SpellCorrection bool

	err error
}

// RequestOption configures a SearchRequest.
type RequestOption func(*SearchRequest)

// setQuery records q. A match-all q never replaces a query that is already set.
func (r *SearchRequest) setQuery(q Query) {
	if q.Kind == MatchAll {
		return
	}
	if r.Query.Kind != MatchAll && q.Kind != MatchAll && r.Query.Kind != q.Kind {
		r.err = fmt.Errorf("%w: phrase and query are mutually exclusive", ErrInvalidRequest)
		return
	}
	r.Query = q
}

// WithPhrase sets a user phrase.
func WithPhrase(phrase string) RequestOption {
	return func(r *SearchRequest) { r.setQuery(Phrase(phrase)) }
}

// WithRawQuery sets a backend query used verbatim.
func WithRawQuery(q string) RequestOption {
	return func(r *SearchRequest) { r.setQuery(Raw(q)) }
}

// WithFields sets the search fields.
func WithFields(fields ...string) RequestOption {
	return func(r *SearchRequest) { r.Fields = fields }
}

// WithFieldGroup selects a named field group as the search fields.
func WithFieldGroup(group string) RequestOption {
	return func(r *SearchRequest) { r.FieldGroup = group }
}

// WithReturnFields sets the stored fields to return.
func WithReturnFields(fields ...string) RequestOption {
	return func(r *SearchRequest) { r.ReturnFields = fields }
}

// WithFilter adds a filter expression tagged with the facet it restricts.
func WithFilter(expression, tag string) RequestOption {
	return func(r *SearchRequest) {
		if r.Filters == nil {
			r.Filters = make(map[string]string)
		}
		r.Filters[expression] = tag
	}
}

// WithFacets sets the facet fields. An empty call disables facets.
func WithFacets(fields ...string) RequestOption {
	return func(r *SearchRequest) { r.Facets = append([]string{}, fields...) }
}

// WithStats sets the stats fields. An empty call disables stats.
func WithStats(fields ...string) RequestOption {
	return func(r *SearchRequest) { r.Stats = append([]string{}, fields...) }
}

// WithSort sets the sort identifier.
func WithSort(id string) RequestOption {
	return func(r *SearchRequest) { r.Sort = id }
}

// WithPaging sets the offset and page size.
func WithPaging(start, rows int) RequestOption {
	return func(r *SearchRequest) {
		r.Start = start
		r.Rows = rows
	}
}

// WithStart sets the offset.
func WithStart(start int) RequestOption {
	return func(r *SearchRequest) { r.Start = start }
}

// WithRows sets the page size.
func WithRows(rows int) RequestOption {
	return func(r *SearchRequest) { r.Rows = rows }
}

// WithHighlight enables highlighting. phrase and fields default to the search phrase and fields.
func WithHighlight(phrase string, fields []string, snippets int) RequestOption {
	return func(r *SearchRequest) {
		r.Highlight = true
		r.HighlightPhrase = phrase
		r.HighlightFields = fields
		r.HighlightSnippets = snippets
	}
}

// WithGrouping enables grouping by the configured group key.
func WithGrouping() RequestOption {
	return func(r *SearchRequest) { r.Grouping = true }
}

// WithGroupLimit sets the number of members returned per group.
func WithGroupLimit(n int) RequestOption {
	return func(r *SearchRequest) { r.GroupLimit = n }
}

// WithCollapse collapses results to one document per group key.
func WithCollapse() RequestOption {
	return func(r *SearchRequest) { r.Collapse = true }
}

// WithOperator sets the operator joining unquoted words.
func WithOperator(op query.Operator) RequestOption {
	return func(r *SearchRequest) { r.Operator = op }
}

// WithSpellCorrection toggles the spell-corrected retry.
func WithSpellCorrection(enabled bool) RequestOption {
	return func(r *SearchRequest) { r.SpellCorrection = enabled }
}

// NewSearchRequest builds and validates a request. Defaults: match all, DefaultRows rows,
// AND operator, spell correction on.
func NewSearchRequest(opts ...RequestOption) (*SearchRequest, error) {
	r := &SearchRequest{
		Rows:            DefaultRows,
		Operator:        query.And,
		SpellCorrection: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the request for inconsistent values.
func (r *SearchRequest) Validate() error {
	if r.err != nil {
		return r.err
	}
	if r.Start < 0 {
		return fmt.Errorf("%w: start must not be negative", ErrInvalidRequest)
	}
	if r.Rows < 0 {
		return fmt.Errorf("%w: rows must not be negative", ErrInvalidRequest)
	}
	if r.HighlightSnippets < 0 {
		return fmt.Errorf("%w: highlight snippets must not be negative", ErrInvalidRequest)
	}
	if r.GroupLimit < 0 {
		return fmt.Errorf("%w: group limit must not be negative", ErrInvalidRequest)
	}
	if r.Operator != query.And && r.Operator != query.Or {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidRequest, r.Operator)
	}
	return nil
}

// Clone returns a copy sharing no slices or maps with r.
func (r *SearchRequest) Clone() *SearchRequest {
	c := *r
	c.Fields = cloneStrings(r.Fields)
	c.ReturnFields = cloneStrings(r.ReturnFields)
	c.Facets = cloneStrings(r.Facets)
	c.Stats = cloneStrings(r.Stats)
	c.HighlightFields = cloneStrings(r.HighlightFields)
	if r.Filters != nil {
		c.Filters = make(map[string]string, len(r.Filters))
		for k, v := range r.Filters {
			c.Filters[k] = v
		}
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// SearchInput is the JSON body accepted by the REST layer.
type SearchInput struct {
	Phrase            string            `json:"phrase,omitempty"`
	Query             string            `json:"query,omitempty"`
	Fields            []string          `json:"fields,omitempty"`
	FieldGroup        string            `json:"field_group,omitempty"`
	ReturnFields      []string          `json:"return_fields,omitempty"`
	Filters           map[string]string `json:"filters,omitempty"`
	Facets            []string          `json:"facets,omitempty"`
	Stats             []string          `json:"stats,omitempty"`
	Sort              string            `json:"sort,omitempty"`
	Start             int               `json:"start,omitempty"`
	Rows              *int              `json:"rows,omitempty"`
	Highlight         bool              `json:"highlight,omitempty"`
	HighlightPhrase   string            `json:"highlight_phrase,omitempty"`
	HighlightFields   []string          `json:"highlight_fields,omitempty"`
	HighlightSnippets int               `json:"highlight_snippets,omitempty"`
	Grouping          bool              `json:"grouping,omitempty"`
	GroupLimit        int               `json:"group_limit,omitempty"`
	Collapse          bool              `json:"collapse,omitempty"`
	Operator          string            `json:"operator,omitempty"`
	SpellCorrection   *bool             `json:"spell_correction,omitempty"`
}

// Request converts the input into a validated SearchRequest. defaults are applied
// first, so only values present in the input override them.
func (in *SearchInput) Request(defaults ...RequestOption) (*SearchRequest, error) {
	if in.Phrase != "" && in.Query != "" {
		return nil, fmt.Errorf("%w: phrase and query are mutually exclusive", ErrInvalidRequest)
	}
	opts := append([]RequestOption{}, defaults...)
	opts = append(opts,
		WithPhrase(in.Phrase),
		WithRawQuery(in.Query),
		WithFields(in.Fields...),
		WithFieldGroup(in.FieldGroup),
		WithReturnFields(in.ReturnFields...),
		WithSort(in.Sort),
		WithStart(in.Start),
	)
	if in.Operator != "" {
		op, ok := query.ParseOperator(in.Operator)
		if !ok {
			return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidRequest, in.Operator)
		}
		opts = append(opts, WithOperator(op))
	}
	if in.Rows != nil {
		opts = append(opts, WithRows(*in.Rows))
	}
	for expr, tag := range in.Filters {
		opts = append(opts, WithFilter(expr, tag))
	}
	if in.Facets != nil {
		opts = append(opts, WithFacets(in.Facets...))
	}
	if in.Stats != nil {
		opts = append(opts, WithStats(in.Stats...))
	}
	if in.Highlight {
		opts = append(opts, WithHighlight(in.HighlightPhrase, in.HighlightFields, in.HighlightSnippets))
	}
	if in.Grouping {
		opts = append(opts, WithGrouping())
	}
	if in.GroupLimit > 0 {
		opts = append(opts, WithGroupLimit(in.GroupLimit))
	}
	if in.Collapse {
		opts = append(opts, WithCollapse())
	}
	if in.SpellCorrection != nil {
		opts = append(opts, WithSpellCorrection(*in.SpellCorrection))
	}
	return NewSearchRequest(opts...)
}
