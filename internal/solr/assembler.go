package solr

import (
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/query"
	"github.com/hyperjump/kensaku/internal/schema"
)

const (
	matchAll            = "*:*"
	defaultQueryParser  = "edismax"
	rawQueryParser      = "lucene"
	userFields          = "* _query_"
	highlightParser     = "lucene"
	defaultSnippets     = 3
	defaultMaxAnalyzed  = 1000000
	defaultGroupLimit   = 10
	defaultGroupField   = "group-id"
	unboundedFacetLimit = "-1"
)

// AssemblerConfig holds the configured lists and limits the assembler applies.
type AssemblerConfig struct {
	// DefaultGroup names the field group searched when a request has no fields.
	DefaultGroup      string
	Facets            []string
	Stats             []string
	FacetMissing      bool
	FacetExcludeTerms []string

	HighlightSnippets         int
	HighlightMaxAnalyzedChars int
	// HighlightBlacklist lists fields never highlighted. The group field is always added.
	HighlightBlacklist []string

	GroupField string
	GroupLimit int

	ComplexPhraseParser string
}

// Assembler turns search requests into Solr parameters. It is a pure function of the
// request and its immutable configuration and is safe for concurrent use.
type Assembler struct {
	resolver  *schema.Resolver
	catalog   *schema.Catalog
	compiler  *query.Compiler
	cfg       AssemblerConfig
	blacklist map[string]struct{}
}

// NewAssembler creates an assembler over the given resolver and catalog.
func NewAssembler(resolver *schema.Resolver, catalog *schema.Catalog, cfg AssemblerConfig) *Assembler {
	if cfg.GroupField == "" {
		cfg.GroupField = defaultGroupField
	}
	if cfg.GroupLimit <= 0 {
		cfg.GroupLimit = defaultGroupLimit
	}
	if cfg.HighlightSnippets <= 0 {
		cfg.HighlightSnippets = defaultSnippets
	}
	if cfg.HighlightMaxAnalyzedChars <= 0 {
		cfg.HighlightMaxAnalyzedChars = defaultMaxAnalyzed
	}
	blacklist := map[string]struct{}{cfg.GroupField: {}}
	for _, f := range cfg.HighlightBlacklist {
		blacklist[f] = struct{}{}
	}
	return &Assembler{
		resolver:  resolver,
		catalog:   catalog,
		compiler:  query.NewCompiler(resolver, query.WithComplexPhraseParser(cfg.ComplexPhraseParser)),
		cfg:       cfg,
		blacklist: blacklist,
	}
}

// Compiler returns the query compiler the assembler uses.
func (a *Assembler) Compiler() *query.Compiler {
	return a.compiler
}

// GroupField returns the grouping key field.
func (a *Assembler) GroupField() string {
	return a.cfg.GroupField
}

// TagFor returns the exclusion tag of a facet or stats field.
func TagFor(field string) string {
	return field
}

// Assemble builds the full parameter list for req.
func (a *Assembler) Assemble(req *models.SearchRequest) *Params {
	p := NewParams()
	fields := a.searchFields(req)
	op := req.Operator
	if op == "" {
		op = query.And
	}

	switch req.Query.Kind {
	case models.RawQuery:
		p.Add(ParamQuery, req.Query.Text)
		p.Add(ParamDefType, rawQueryParser)
	case models.PhraseQuery:
		compiled := a.compiler.Compile(req.Query.Text, query.CompileOptions{Fields: fields, Operator: op})
		q := compiled.Query
		if q == "" {
			q = matchAll
		}
		p.Add(ParamQuery, q)
		p.Add(ParamDefType, defaultQueryParser)
		// edismax ignores _query_ sub-queries unless uf allows them.
		p.Add(ParamUserFields, userFields)
		if qf := a.queryFields(fields, compiled.Type); len(qf) > 0 {
			p.Add(ParamQueryFields, strings.Join(qf, " "))
		}
	default:
		p.Add(ParamQuery, matchAll)
	}
	p.Add(ParamOperator, string(op))

	fl := "*"
	if len(req.ReturnFields) > 0 {
		fl = strings.Join(req.ReturnFields, ",")
	}
	p.Add(ParamFieldList, fl)
	p.Add(ParamStart, strconv.Itoa(req.Start))
	p.Add(ParamRows, strconv.Itoa(req.Rows))
	if clause, ok := a.catalog.Sort(req.Sort); ok {
		p.Add(ParamSort, clause)
	}

	a.addFilters(p, req)
	a.addFacets(p, req)
	a.addStats(p, req)
	if req.Highlight {
		a.addHighlight(p, req, fields, op)
	}
	if req.Grouping {
		limit := req.GroupLimit
		if limit <= 0 {
			limit = a.cfg.GroupLimit
		}
		p.Add(ParamGroup, "true")
		p.Add(ParamGroupField, a.cfg.GroupField)
		p.Add(ParamGroupLimit, strconv.Itoa(limit))
		p.Add(ParamGroupNGroups, "true")
	}
	if req.Collapse {
		p.Add(ParamFilterQuery, "{!collapse field="+a.cfg.GroupField+"}")
	}
	if req.SpellCorrection && req.Query.IsPhrase() && req.Rows > 0 {
		p.Add(ParamSpellcheck, "true")
		p.Add(ParamSpellcheckQuery, req.Query.Text)
		p.Add(ParamSpellcheckColl, "true")
	}
	return p
}

// searchFields returns the request's fields, or those of its (or the default) field group.
func (a *Assembler) searchFields(req *models.SearchRequest) []string {
	if len(req.Fields) > 0 {
		return req.Fields
	}
	group := req.FieldGroup
	if group == "" {
		group = a.cfg.DefaultGroup
	}
	return a.resolver.FieldNamesForGroup(group)
}

// queryFields lists the qf entries: exact variants for an exact search, otherwise the
// fields themselves plus their stemmed variants. Every entry carries its boost.
func (a *Assembler) queryFields(fields []string, qt query.QueryType) []string {
	names := stripBoosts(fields)
	if qt == query.ExactQuery {
		exact := a.resolver.ExactNames(names)
		exact = appendMissing(exact, a.resolver.ExactNoPunctuationNames(names)...)
		if len(exact) > 0 {
			return a.resolver.Boosted(exact)
		}
	}
	qf := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		qf = appendMissing(qf, a.boosted(f))
	}
	if qt != query.ExactQuery {
		qf = appendMissing(qf, a.resolver.Boosted(a.resolver.StemmedNames(names))...)
	}
	return qf
}

func (a *Assembler) boosted(field string) string {
	if _, boost := query.SplitBoost(field); boost != "" {
		return field
	}
	return field + a.resolver.Boosting(field)
}

func (a *Assembler) addFilters(p *Params, req *models.SearchRequest) {
	exprs := make([]string, 0, len(req.Filters))
	for expr := range req.Filters {
		exprs = append(exprs, expr)
	}
	sort.Strings(exprs)
	for _, expr := range exprs {
		if tag := req.Filters[expr]; tag != "" {
			p.Add(ParamFilterQuery, "{!tag="+tag+"}"+expr)
			continue
		}
		p.Add(ParamFilterQuery, expr)
	}
}

func (a *Assembler) addFacets(p *Params, req *models.SearchRequest) {
	facets := req.Facets
	if facets == nil {
		facets = a.cfg.Facets
	}
	if len(facets) == 0 {
		return
	}
	p.Add(ParamFacet, "true")
	for _, f := range facets {
		p.Add(ParamFacetField, "{!ex="+TagFor(f)+"}"+f)
	}
	p.Add(ParamFacetMinCount, "1")
	p.Add(ParamFacetLimit, unboundedFacetLimit)
	p.Add(ParamFacetMissing, strconv.FormatBool(a.cfg.FacetMissing))
	if len(a.cfg.FacetExcludeTerms) > 0 {
		p.Add(ParamFacetExclude, strings.Join(a.cfg.FacetExcludeTerms, ","))
	}
}

func (a *Assembler) addStats(p *Params, req *models.SearchRequest) {
	stats := req.Stats
	if stats == nil {
		stats = a.cfg.Stats
	}
	if len(stats) == 0 {
		return
	}
	p.Add(ParamStats, "true")
	for _, f := range stats {
		p.Add(ParamStatsField, "{!ex="+TagFor(f)+" min=true max=true count=true missing=true}"+f)
	}
}

func (a *Assembler) addHighlight(p *Params, req *models.SearchRequest, fields []string, op query.Operator) {
	phrase := req.HighlightPhrase
	if phrase == "" && req.Query.IsPhrase() {
		phrase = req.Query.Text
	}
	if phrase == "" && req.Query.Kind != models.RawQuery {
		return
	}

	hlFields := req.HighlightFields
	if len(hlFields) == 0 {
		hlFields = fields
	}
	names := make([]string, 0, len(hlFields))
	for _, f := range stripBoosts(hlFields) {
		if _, skip := a.blacklist[f]; !skip {
			names = append(names, f)
		}
	}
	if len(names) == 0 {
		return
	}

	searchable := appendMissing(append([]string(nil), names...), a.resolver.StemmedNames(names)...)
	all := appendMissing(append([]string(nil), searchable...), a.resolver.ExactNames(names)...)
	all = appendMissing(all, a.resolver.ExactNoPunctuationNames(names)...)

	snippets := req.HighlightSnippets
	if snippets <= 0 {
		snippets = a.cfg.HighlightSnippets
	}

	p.Add(ParamHighlight, "true")
	if phrase != "" {
		compiled := a.compiler.Compile(phrase, query.CompileOptions{
			Fields:            searchable,
			IncludeFieldNames: true,
			Operator:          op,
		})
		if compiled.Query != "" {
			p.Add(ParamHighlightQuery, compiled.Query)
			p.Add(ParamHighlightParser, highlightParser)
		}
	}
	p.Add(ParamHighlightFields, strings.Join(all, ","))
	p.Add(ParamHighlightMulti, "true")
	p.Add(ParamHighlightSnips, strconv.Itoa(snippets))
	p.Add(ParamHighlightMaxChar, strconv.Itoa(a.cfg.HighlightMaxAnalyzedChars))
	p.Add(ParamHighlightMerge, "true")
}

func stripBoosts(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i], _ = query.SplitBoost(f)
	}
	return out
}

func appendMissing(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
