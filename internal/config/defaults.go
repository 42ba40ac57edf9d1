package config

import (
	"time"

	"github.com/hyperjump/kensaku/internal/schema"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Solr.URL == "" {
		cfg.Solr.URL = "http://localhost:8983/solr"
	}
	if cfg.Solr.Core == "" {
		cfg.Solr.Core = "manuscripts"
	}
	if cfg.Solr.Timeout == 0 {
		cfg.Solr.Timeout = 10 * time.Second
	}
	if cfg.Solr.ComplexPhraseParser == "" {
		cfg.Solr.ComplexPhraseParser = "complexphrase"
	}
	if cfg.Solr.DefaultOperator == "" {
		cfg.Solr.DefaultOperator = "AND"
	}
	if cfg.Cache.Size > 0 && cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Minute
	}
	if cfg.Schema.SearchSuffix == "" {
		cfg.Schema.SearchSuffix = "-search"
	}
	if cfg.Schema.ExactSuffix == "" {
		cfg.Schema.ExactSuffix = "-exact"
	}
	if cfg.Schema.ExactNoPunctuationSuffix == "" {
		cfg.Schema.ExactNoPunctuationSuffix = "-exact-nopunct"
	}
	if cfg.Schema.StemmedSuffix == "" {
		cfg.Schema.StemmedSuffix = "-stemmed"
	}
	if cfg.Search.DefaultRows == 0 {
		cfg.Search.DefaultRows = 10
	}
	if cfg.Search.MaxRows == 0 {
		cfg.Search.MaxRows = 1000
	}
	if cfg.Search.MissingLabel == "" {
		cfg.Search.MissingLabel = "__missing__"
	}
	if cfg.Search.Sorts == nil {
		cfg.Search.Sorts = schema.DefaultSorts()
	}
	if cfg.Search.BatchConcurrency == 0 {
		cfg.Search.BatchConcurrency = 4
	}
	if cfg.Search.Highlight.Snippets == 0 {
		cfg.Search.Highlight.Snippets = 3
	}
	if cfg.Search.Highlight.MaxAnalyzedChars == 0 {
		cfg.Search.Highlight.MaxAnalyzedChars = 1000000
	}
	if cfg.Search.Highlight.Tag == "" {
		cfg.Search.Highlight.Tag = "em"
	}
	if cfg.Search.Grouping.Field == "" {
		cfg.Search.Grouping.Field = "group-id"
	}
	if cfg.Search.Grouping.Limit == 0 {
		cfg.Search.Grouping.Limit = 10
	}
	if cfg.Search.Grouping.CompletionLimit == 0 {
		cfg.Search.Grouping.CompletionLimit = 100
	}
	if cfg.Search.Grouping.TypeField == "" {
		cfg.Search.Grouping.TypeField = "type"
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
