// Package solr assembles Solr request parameters, talks to the Solr select handler
// and turns its replies into client-facing search responses.
package solr

import (
	"net/url"
	"strings"
)

// Solr request parameter names.
const (
	ParamQuery            = "q"
	ParamOperator         = "q.op"
	ParamQueryFields      = "qf"
	ParamDefType          = "defType"
	ParamUserFields       = "uf"
	ParamFieldList        = "fl"
	ParamSort             = "sort"
	ParamStart            = "start"
	ParamRows             = "rows"
	ParamFilterQuery      = "fq"
	ParamFacet            = "facet"
	ParamFacetField       = "facet.field"
	ParamFacetMinCount    = "facet.mincount"
	ParamFacetMissing     = "facet.missing"
	ParamFacetLimit       = "facet.limit"
	ParamFacetExclude     = "facet.excludeTerms"
	ParamStats            = "stats"
	ParamStatsField       = "stats.field"
	ParamHighlight        = "hl"
	ParamHighlightQuery   = "hl.q"
	ParamHighlightFields  = "hl.fl"
	ParamHighlightParser  = "hl.qparser"
	ParamHighlightMulti   = "hl.highlightMultiTerm"
	ParamHighlightSnips   = "hl.snippets"
	ParamHighlightMaxChar = "hl.maxAnalyzedChars"
	ParamHighlightMerge   = "hl.mergeContiguous"
	ParamGroup            = "group"
	ParamGroupField       = "group.field"
	ParamGroupLimit       = "group.limit"
	ParamGroupNGroups     = "group.ngroups"
	ParamSpellcheck       = "spellcheck"
	ParamSpellcheckQuery  = "spellcheck.q"
	ParamSpellcheckColl   = "spellcheck.collate"
	ParamWriterType       = "wt"
)

// Param is one name/value pair.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Params is an ordered, multi-valued parameter list. Order is preserved on the wire
// so equal requests encode to identical bytes.
type Params struct {
	list []Param
}

// NewParams returns an empty parameter list.
func NewParams() *Params {
	return &Params{}
}

// Add appends a value for name.
func (p *Params) Add(name, value string) {
	p.list = append(p.list, Param{Name: name, Value: value})
}

// Set replaces all values of name with value, keeping the position of the first one.
func (p *Params) Set(name, value string) {
	out := p.list[:0]
	replaced := false
	for _, kv := range p.list {
		if kv.Name != name {
			out = append(out, kv)
			continue
		}
		if !replaced {
			out = append(out, Param{Name: name, Value: value})
			replaced = true
		}
	}
	p.list = out
	if !replaced {
		p.Add(name, value)
	}
}

// Get returns the first value of name, or "".
func (p *Params) Get(name string) string {
	for _, kv := range p.list {
		if kv.Name == name {
			return kv.Value
		}
	}
	return ""
}

// Has reports whether name is present.
func (p *Params) Has(name string) bool {
	for _, kv := range p.list {
		if kv.Name == name {
			return true
		}
	}
	return false
}

// Values returns all values of name in order.
func (p *Params) Values(name string) []string {
	var out []string
	for _, kv := range p.list {
		if kv.Name == name {
			out = append(out, kv.Value)
		}
	}
	return out
}

// List returns a copy of all pairs in order.
func (p *Params) List() []Param {
	return append([]Param(nil), p.list...)
}

// Len returns the number of pairs.
func (p *Params) Len() int {
	return len(p.list)
}

// Clone returns an independent copy.
func (p *Params) Clone() *Params {
	return &Params{list: p.List()}
}

// Encode renders the pairs as an application/x-www-form-urlencoded string in order.
func (p *Params) Encode() string {
	var b strings.Builder
	for i, kv := range p.list {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}

// String is Encode, unescaped, for logging.
func (p *Params) String() string {
	parts := make([]string, len(p.list))
	for i, kv := range p.list {
		parts[i] = kv.Name + "=" + kv.Value
	}
	return strings.Join(parts, "&")
}
