// Package config provides configuration loading and structs for the Kensaku server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug  bool         `yaml:"debug"`
	Server ServerConfig `yaml:"server"`
	Solr   SolrConfig   `yaml:"solr"`
	Cache  CacheConfig  `yaml:"cache"`
	Schema SchemaConfig `yaml:"schema"`
	Search SearchConfig `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SolrConfig holds the backend connection and query parser settings.
type SolrConfig struct {
	URL                 string        `yaml:"url"`
	Core                string        `yaml:"core"`
	Timeout             time.Duration `yaml:"timeout"`
	ComplexPhraseParser string        `yaml:"complex_phrase_parser"`
	DefaultOperator     string        `yaml:"default_operator"`
}

// CacheConfig holds the reply cache settings. A size of zero disables the cache.
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// SchemaConfig describes the Solr fields searches may use.
type SchemaConfig struct {
	// Fields lists every searchable Solr field, optionally boosted ("title-search^2").
	Fields                   []string            `yaml:"fields"`
	SearchSuffix             string              `yaml:"search_suffix"`
	ExactSuffix              string              `yaml:"exact_suffix"`
	ExactNoPunctuationSuffix string              `yaml:"exact_no_punctuation_suffix"`
	StemmedSuffix            string              `yaml:"stemmed_suffix"`
	FieldGroups              map[string][]string `yaml:"field_groups"`
	DefaultGroup             string              `yaml:"default_group"`
}

// SearchConfig holds request defaults and limits.
type SearchConfig struct {
	DefaultRows       int               `yaml:"default_rows"`
	MaxRows           int               `yaml:"max_rows"`
	Facets            []string          `yaml:"facets"`
	Stats             []string          `yaml:"stats"`
	FacetMissing      bool              `yaml:"facet_missing"`
	FacetExcludeTerms []string          `yaml:"facet_exclude_terms"`
	MissingLabel      string            `yaml:"missing_label"`
	Sorts             map[string]string `yaml:"sorts"`
	SpellCorrection   *bool             `yaml:"spell_correction"`
	BatchConcurrency  int               `yaml:"batch_concurrency"`
	Highlight         HighlightConfig   `yaml:"highlight"`
	Grouping          GroupingConfig    `yaml:"grouping"`
}

// SpellCorrectionOrDefault returns whether spell correction is on; defaults to true when unset.
func (s *SearchConfig) SpellCorrectionOrDefault() bool {
	if s.SpellCorrection != nil {
		return *s.SpellCorrection
	}
	return true
}

// HighlightConfig holds highlighting settings.
type HighlightConfig struct {
	Snippets         int      `yaml:"snippets"`
	MaxAnalyzedChars int      `yaml:"max_analyzed_chars"`
	Tag              string   `yaml:"tag"`
	Blacklist        []string `yaml:"blacklist"`
}

// GroupingConfig describes how documents are grouped into objects.
type GroupingConfig struct {
	Field string `yaml:"field"`
	// Limit caps the members per group in the first pass; CompletionLimit in the second.
	Limit           int    `yaml:"limit"`
	CompletionLimit int    `yaml:"completion_limit"`
	TypeField       string `yaml:"type_field"`
	PrimaryType     string `yaml:"primary_type"`
}

// Load reads and parses the config file at path and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks cfg for values the server cannot run with.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.Solr.URL == "" {
		errs = append(errs, errors.New("solr.url is required"))
	} else if !strings.HasPrefix(cfg.Solr.URL, "http://") && !strings.HasPrefix(cfg.Solr.URL, "https://") {
		errs = append(errs, fmt.Errorf("solr.url %q must be http or https", cfg.Solr.URL))
	}
	switch strings.ToUpper(cfg.Solr.DefaultOperator) {
	case "", "AND", "OR":
	default:
		errs = append(errs, fmt.Errorf("solr.default_operator %q must be AND or OR", cfg.Solr.DefaultOperator))
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Cache.Size < 0 {
		errs = append(errs, errors.New("cache.size must not be negative"))
	}
	if cfg.Schema.SearchSuffix == "" {
		errs = append(errs, errors.New("schema.search_suffix must not be empty"))
	}
	if cfg.Search.MaxRows > 0 && cfg.Search.DefaultRows > cfg.Search.MaxRows {
		errs = append(errs, fmt.Errorf("search.default_rows %d exceeds search.max_rows %d", cfg.Search.DefaultRows, cfg.Search.MaxRows))
	}
	if g := cfg.Schema.DefaultGroup; g != "" {
		if _, ok := cfg.Schema.FieldGroups[g]; !ok {
			errs = append(errs, fmt.Errorf("schema.default_group %q is not a field group", g))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
