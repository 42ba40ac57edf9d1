// Package schema maps canonical search field identifiers to the concrete Solr
// field names that back them.
package schema

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hyperjump/kensaku/internal/query"
)

// Convention names the suffixes that distinguish field variants in the Solr schema.
type Convention struct {
	SearchSuffix             string
	ExactSuffix              string
	ExactNoPunctuationSuffix string
	StemmedSuffix            string
}

// DefaultConvention returns the "-search" / "-exact" / "-exact-nopunct" / "-stemmed" convention.
func DefaultConvention() Convention {
	return Convention{
		SearchSuffix:             "-search",
		ExactSuffix:              "-exact",
		ExactNoPunctuationSuffix: "-exact-nopunct",
		StemmedSuffix:            "-stemmed",
	}
}

// TrimExact removes an exact or exact-no-punctuation suffix from name.
func (c Convention) TrimExact(name string) string {
	if c.ExactNoPunctuationSuffix != "" && strings.HasSuffix(name, c.ExactNoPunctuationSuffix) {
		return strings.TrimSuffix(name, c.ExactNoPunctuationSuffix)
	}
	if c.ExactSuffix != "" && strings.HasSuffix(name, c.ExactSuffix) {
		return strings.TrimSuffix(name, c.ExactSuffix)
	}
	return name
}

// IsStemmed reports whether name carries the stemmed suffix.
func (c Convention) IsStemmed(name string) bool {
	return c.StemmedSuffix != "" && strings.HasSuffix(name, c.StemmedSuffix)
}

// TrimStemmed removes the stemmed suffix from name.
func (c Convention) TrimStemmed(name string) string {
	return strings.TrimSuffix(name, c.StemmedSuffix)
}

// pattern matches "<base><search suffix>" optionally followed by one variant suffix.
// Alternatives are ordered longest first.
func (c Convention) pattern() *regexp.Regexp {
	suffixes := make([]string, 0, 3)
	for _, s := range []string{c.ExactSuffix, c.ExactNoPunctuationSuffix, c.StemmedSuffix} {
		if s != "" {
			suffixes = append(suffixes, s)
		}
	}
	sort.SliceStable(suffixes, func(i, j int) bool { return len(suffixes[i]) > len(suffixes[j]) })
	alts := make([]string, len(suffixes))
	for i, s := range suffixes {
		alts[i] = regexp.QuoteMeta(s)
	}
	expr := `^(.+?` + regexp.QuoteMeta(c.SearchSuffix) + `)`
	if len(alts) > 0 {
		expr += `(` + strings.Join(alts, "|") + `)?`
	}
	return regexp.MustCompile(expr + `$`)
}

// FieldVariant holds the concrete Solr names of one search field. Empty means absent.
type FieldVariant struct {
	Basic              string `json:"basic,omitempty"`
	Exact              string `json:"exact,omitempty"`
	ExactNoPunctuation string `json:"exact_no_punctuation,omitempty"`
	Stemmed            string `json:"stemmed,omitempty"`
}

// Resolver resolves field variants from the configured flat field list.
// It is built once and never mutated, so it can be shared between goroutines.
type Resolver struct {
	convention Convention
	pattern    *regexp.Regexp
	known      map[string]struct{}
	boosts     map[string]string
	variants   map[string]FieldVariant
	groups     map[string][]string
}

// NewResolver indexes fields (entries may carry a "^N" boost) and the named field groups.
func NewResolver(fields []string, groups map[string][]string, conv Convention) *Resolver {
	r := &Resolver{
		convention: conv,
		pattern:    conv.pattern(),
		known:      make(map[string]struct{}, len(fields)),
		boosts:     make(map[string]string),
		variants:   make(map[string]FieldVariant),
		groups:     make(map[string][]string, len(groups)),
	}
	for _, entry := range fields {
		name, boost := query.SplitBoost(strings.TrimSpace(entry))
		if name == "" {
			continue
		}
		r.known[name] = struct{}{}
		if boost != "" {
			r.boosts[name] = boost
		}
		m := r.pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		base := m[1]
		v := r.variants[base]
		switch m[2] {
		case "":
			v.Basic = name
		case conv.ExactSuffix:
			v.Exact = name
		case conv.ExactNoPunctuationSuffix:
			v.ExactNoPunctuation = name
		case conv.StemmedSuffix:
			v.Stemmed = name
		}
		r.variants[base] = v
	}
	for name, members := range groups {
		r.groups[name] = append([]string(nil), members...)
	}
	return r
}

// Convention returns the naming convention the resolver was built with.
func (r *Resolver) Convention() Convention {
	return r.convention
}

// IsValid reports whether name (boost ignored) is a configured field.
func (r *Resolver) IsValid(name string) bool {
	n, _ := query.SplitBoost(name)
	_, ok := r.known[n]
	return ok
}

// Variant returns the variants of the search field that name belongs to.
func (r *Resolver) Variant(name string) (FieldVariant, bool) {
	n, _ := query.SplitBoost(name)
	m := r.pattern.FindStringSubmatch(n)
	if m == nil {
		return FieldVariant{}, false
	}
	v, ok := r.variants[m[1]]
	return v, ok
}

// BasicNames returns the unsuffixed variant of each name; names without one are dropped.
func (r *Resolver) BasicNames(names []string) []string {
	return r.collect(names, func(v FieldVariant) string { return v.Basic })
}

// ExactNames returns the exact variant of each name; names without one are dropped.
func (r *Resolver) ExactNames(names []string) []string {
	return r.collect(names, func(v FieldVariant) string { return v.Exact })
}

// ExactNoPunctuationNames returns the exact-no-punctuation variant of each name.
func (r *Resolver) ExactNoPunctuationNames(names []string) []string {
	return r.collect(names, func(v FieldVariant) string { return v.ExactNoPunctuation })
}

// StemmedNames returns the stemmed variant of each name; names without one are dropped.
func (r *Resolver) StemmedNames(names []string) []string {
	return r.collect(names, func(v FieldVariant) string { return v.Stemmed })
}

func (r *Resolver) collect(names []string, pick func(FieldVariant) string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		v, ok := r.Variant(name)
		if !ok {
			continue
		}
		n := pick(v)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Boosting returns the configured boost suffix ("^N") of name, or "".
func (r *Resolver) Boosting(name string) string {
	n, _ := query.SplitBoost(name)
	return r.boosts[n]
}

// Boosted appends each name's configured boost.
func (r *Resolver) Boosted(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + r.Boosting(n)
	}
	return out
}

// FieldNamesForGroup returns a copy of the named field group, or nil.
func (r *Resolver) FieldNamesForGroup(group string) []string {
	members, ok := r.groups[group]
	if !ok {
		return nil
	}
	return append([]string(nil), members...)
}

// Groups returns the sorted names of all field groups.
func (r *Resolver) Groups() []string {
	names := make([]string, 0, len(r.groups))
	for n := range r.groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
