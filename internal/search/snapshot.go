package search

import (
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/query"
	"github.com/hyperjump/kensaku/internal/schema"
	"github.com/hyperjump/kensaku/internal/solr"
)

// Snapshot is the immutable schema-dependent state of an engine. Reloading the
// configuration swaps the whole snapshot; it is never modified in place.
type Snapshot struct {
	Resolver  *schema.Resolver
	Catalog   *schema.Catalog
	Assembler *solr.Assembler
	Extractor *solr.Extractor

	DefaultRows      int
	MaxRows          int
	DefaultOperator  query.Operator
	SpellCorrection  bool
	CompletionLimit  int
	BatchConcurrency int
}

// NewSnapshot builds a snapshot from cfg. Defaults must already be applied.
func NewSnapshot(cfg *config.Config) *Snapshot {
	conv := schema.Convention{
		SearchSuffix:             cfg.Schema.SearchSuffix,
		ExactSuffix:              cfg.Schema.ExactSuffix,
		ExactNoPunctuationSuffix: cfg.Schema.ExactNoPunctuationSuffix,
		StemmedSuffix:            cfg.Schema.StemmedSuffix,
	}
	resolver := schema.NewResolver(cfg.Schema.Fields, cfg.Schema.FieldGroups, conv)
	catalog := schema.NewCatalog(cfg.Search.Sorts)
	grouping := cfg.Search.Grouping
	hl := cfg.Search.Highlight

	op, ok := query.ParseOperator(cfg.Solr.DefaultOperator)
	if !ok {
		op = query.And
	}
	rows := cfg.Search.DefaultRows
	if rows <= 0 {
		rows = models.DefaultRows
	}

	return &Snapshot{
		Resolver: resolver,
		Catalog:  catalog,
		Assembler: solr.NewAssembler(resolver, catalog, solr.AssemblerConfig{
			DefaultGroup:              cfg.Schema.DefaultGroup,
			Facets:                    cfg.Search.Facets,
			Stats:                     cfg.Search.Stats,
			FacetMissing:              cfg.Search.FacetMissing,
			FacetExcludeTerms:         cfg.Search.FacetExcludeTerms,
			HighlightSnippets:         hl.Snippets,
			HighlightMaxAnalyzedChars: hl.MaxAnalyzedChars,
			HighlightBlacklist:        hl.Blacklist,
			GroupField:                grouping.Field,
			GroupLimit:                grouping.Limit,
			ComplexPhraseParser:       cfg.Solr.ComplexPhraseParser,
		}),
		Extractor: solr.NewExtractor(solr.ExtractorConfig{
			Convention:   conv,
			GroupField:   grouping.Field,
			TypeField:    grouping.TypeField,
			PrimaryType:  grouping.PrimaryType,
			MissingLabel: cfg.Search.MissingLabel,
			HighlightTag: hl.Tag,
		}),
		DefaultRows:      rows,
		MaxRows:          cfg.Search.MaxRows,
		DefaultOperator:  op,
		SpellCorrection:  cfg.Search.SpellCorrectionOrDefault(),
		CompletionLimit:  grouping.CompletionLimit,
		BatchConcurrency: cfg.Search.BatchConcurrency,
	}
}

// RequestDefaults returns the request options that apply the configured defaults.
// Options given after them override.
func (s *Snapshot) RequestDefaults() []models.RequestOption {
	return []models.RequestOption{
		models.WithPaging(0, s.DefaultRows),
		models.WithOperator(s.DefaultOperator),
		models.WithSpellCorrection(s.SpellCorrection),
	}
}
