package solr

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hyperjump/kensaku/internal/highlight"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/schema"
)

const (
	// DefaultMissingLabel names the facet bucket of documents without a value.
	DefaultMissingLabel = "__missing__"
	// DefaultHighlightTag is the tag Solr wraps highlighted terms in.
	DefaultHighlightTag = "em"
	// DefaultIDField is the unique key field of a document.
	DefaultIDField = "id"
)

// ExtractorConfig configures reply extraction.
type ExtractorConfig struct {
	Convention   schema.Convention
	IDField      string
	GroupField   string
	TypeField    string
	PrimaryType  string
	MissingLabel string
	HighlightTag string
}

// Extractor turns Solr replies into search responses. It never mutates the reply.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor creates an extractor, filling empty config values with defaults.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	if cfg.IDField == "" {
		cfg.IDField = DefaultIDField
	}
	if cfg.GroupField == "" {
		cfg.GroupField = defaultGroupField
	}
	if cfg.MissingLabel == "" {
		cfg.MissingLabel = DefaultMissingLabel
	}
	if cfg.HighlightTag == "" {
		cfg.HighlightTag = DefaultHighlightTag
	}
	if cfg.Convention == (schema.Convention{}) {
		cfg.Convention = schema.DefaultConvention()
	}
	return &Extractor{cfg: cfg}
}

// HighlightTag returns the configured highlight tag.
func (e *Extractor) HighlightTag() string {
	return e.cfg.HighlightTag
}

// Extract builds a response from reply. Missing sections leave the matching fields empty.
func (e *Extractor) Extract(reply *Reply) *models.SearchResponse {
	resp := &models.SearchResponse{Payload: []*models.ResultItem{}}
	if reply == nil {
		return resp
	}
	resp.Metadata = e.metadata(reply)

	if grouped := reply.Grouped[e.cfg.GroupField]; grouped != nil {
		for _, g := range grouped.Groups {
			resp.Payload = append(resp.Payload, e.groupItem(g))
		}
		return resp
	}
	if reply.Response != nil {
		for _, doc := range reply.Response.Docs {
			resp.Payload = append(resp.Payload, &models.ResultItem{ID: doc.String(e.cfg.IDField), Document: doc})
		}
	}
	return resp
}

func (e *Extractor) metadata(reply *Reply) models.Metadata {
	md := models.Metadata{
		QueryTime:       reply.ResponseHeader.QTime,
		Facets:          e.facets(reply.FacetCounts),
		Stats:           stats(reply.Stats),
		Highlights:      e.Highlights(reply.Highlighting),
		SpellCorrection: reply.Spellcheck.FirstCollation(),
	}

	grouped := reply.Grouped[e.cfg.GroupField]
	switch {
	case grouped != nil && grouped.NGroups != nil:
		md.Found = *grouped.NGroups
	case grouped != nil:
		md.Found = grouped.Matches
	case reply.Response != nil:
		md.Found = reply.Response.NumFound
		md.Start = reply.Response.Start
	}
	md.Grouped = grouped != nil || reply.ResponseHeader.Param(ParamGroup) == "true"

	if start, ok := reply.ResponseHeader.IntParam(ParamStart); ok {
		md.Start = start
	}
	if rows, ok := reply.ResponseHeader.IntParam(ParamRows); ok {
		md.Rows = rows
	}
	return md
}

// groupItem turns one group into a result item: the document whose type field equals the
// primary type becomes the item's document, the others become satellites keyed by type.
func (e *Extractor) groupItem(g Group) *models.ResultItem {
	item := &models.ResultItem{}
	if g.GroupValue != nil {
		item.ID = fmt.Sprint(g.GroupValue)
	}
	for _, doc := range g.DocList.Docs {
		kind := doc.String(e.cfg.TypeField)
		if item.Document == nil && (e.cfg.PrimaryType == "" || kind == e.cfg.PrimaryType) {
			item.Document = doc
			continue
		}
		if item.Satellites == nil {
			item.Satellites = make(map[string][]models.Document)
		}
		item.Satellites[kind] = append(item.Satellites[kind], doc)
	}
	return item
}

func (e *Extractor) facets(fc *FacetCounts) map[string]map[string]int64 {
	if fc == nil || len(fc.FacetFields) == 0 {
		return nil
	}
	out := make(map[string]map[string]int64, len(fc.FacetFields))
	for field, flat := range fc.FacetFields {
		counts := make(map[string]int64, len(flat)/2)
		for i := 0; i+1 < len(flat); i += 2 {
			count := toInt64(flat[i+1])
			if flat[i] == nil {
				if count == 0 {
					continue
				}
				counts[e.cfg.MissingLabel] += count
				continue
			}
			value, ok := flat[i].(string)
			if !ok {
				value = fmt.Sprint(flat[i])
			}
			counts[value] += count
		}
		out[field] = counts
	}
	return out
}

func stats(s *StatsSection) map[string]models.StatValues {
	if s == nil || len(s.StatsFields) == 0 {
		return nil
	}
	out := make(map[string]models.StatValues, len(s.StatsFields))
	for field, sf := range s.StatsFields {
		if sf == nil {
			continue
		}
		out[field] = models.StatValues{
			Min:     toFloatPtr(sf.Min),
			Max:     toFloatPtr(sf.Max),
			Count:   sf.Count,
			Missing: sf.Missing,
		}
	}
	return out
}

// Highlights normalizes the highlighting section: exact suffixes are stripped, a stemmed
// entry replaces the unstemmed entry of the same field, then stemmed suffixes are stripped.
// Fragments that end up under the same key are merged.
func (e *Extractor) Highlights(raw map[string]map[string][]string) map[string]map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	conv := e.cfg.Convention
	tag := e.cfg.HighlightTag
	out := make(map[string]map[string][]string, len(raw))
	for id, fields := range raw {
		unexact := make(map[string][]string, len(fields))
		for _, key := range sortedKeys(fields) {
			k := conv.TrimExact(key)
			unexact[k] = highlight.MergeList(unexact[k], fields[key], tag)
		}
		for key := range unexact {
			if conv.IsStemmed(key) {
				delete(unexact, conv.TrimStemmed(key))
			}
		}
		final := make(map[string][]string, len(unexact))
		for _, key := range sortedKeys(unexact) {
			if len(unexact[key]) == 0 {
				continue
			}
			k := conv.TrimStemmed(key)
			final[k] = highlight.MergeList(final[k], unexact[key], tag)
		}
		if len(final) > 0 {
			out[id] = final
		}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func toFloatPtr(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return &f
		}
	}
	return nil
}
