// Package cli renders search results and compiled parameters for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/solr"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	maxDocumentFields = 8
	maxValueLen       = 120
)

// ParseOutputFormat parses a --format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteSearchResponse writes a search response to w in the given format.
func WriteSearchResponse(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	writeResponseText(w, response)
	return nil
}

// WriteParams writes compiled backend parameters, one name=value per line in text format.
func WriteParams(w io.Writer, params *solr.Params, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"params": params.List()})
	}
	for _, p := range params.List() {
		fmt.Fprintf(w, "%s=%s\n", p.Name, p.Value)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResponseText(w io.Writer, response *models.SearchResponse) {
	md := response.Metadata
	unit := "results"
	if md.Grouped {
		unit = "objects"
	}
	fmt.Fprintf(w, "\nFound %d %s in %dms (showing %d from %d)\n", md.Found, unit, md.QueryTime, len(response.Payload), md.Start)
	if md.CorrectedPhrase != "" {
		fmt.Fprintf(w, "Showing results for %q\n", md.CorrectedPhrase)
	} else if md.SpellCorrection != "" {
		fmt.Fprintf(w, "Did you mean %q?\n", md.SpellCorrection)
	}
	fmt.Fprintln(w)

	for i, item := range response.Payload {
		writeItem(w, md.Start+i+1, item, md.Highlights)
	}
	writeFacets(w, md.Facets)
	writeStats(w, md.Stats)
}

func writeItem(w io.Writer, rank int, item *models.ResultItem, highlights map[string]map[string][]string) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%d] ID: %s\n", rank, item.ID)
	keys := sortedKeys(item.Document)
	for i, k := range keys {
		if i == maxDocumentFields {
			fmt.Fprintf(w, "  ... %d more fields\n", len(keys)-maxDocumentFields)
			break
		}
		fmt.Fprintf(w, "  %s: %s\n", k, utils.Truncate(utils.CollapseSpace(item.Document.String(k)), maxValueLen))
	}
	if len(item.Satellites) > 0 {
		types := sortedKeys(item.Satellites)
		parts := make([]string, len(types))
		for i, t := range types {
			parts[i] = fmt.Sprintf("%s (%d)", t, len(item.Satellites[t]))
		}
		fmt.Fprintf(w, "  satellites: %s\n", strings.Join(parts, ", "))
	}
	if hl := highlights[item.ID]; len(hl) > 0 {
		for _, field := range sortedKeys(hl) {
			fmt.Fprintf(w, "  » %s: %s\n", field, strings.Join(hl[field], " … "))
		}
	}
	fmt.Fprintln(w)
}

func writeFacets(w io.Writer, facets map[string]map[string]int64) {
	if len(facets) == 0 {
		return
	}
	fmt.Fprintln(w, "--- Facets ---")
	for _, field := range sortedKeys(facets) {
		counts := facets[field]
		values := sortedKeys(counts)
		sort.SliceStable(values, func(i, j int) bool { return counts[values[i]] > counts[values[j]] })
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("%s (%d)", v, counts[v])
		}
		fmt.Fprintf(w, "%s: %s\n", field, strings.Join(parts, ", "))
	}
}

func writeStats(w io.Writer, stats map[string]models.StatValues) {
	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(w, "--- Stats ---")
	for _, field := range sortedKeys(stats) {
		s := stats[field]
		fmt.Fprintf(w, "%s: min=%s max=%s count=%d missing=%d\n", field, formatFloat(s.Min), formatFloat(s.Max), s.Count, s.Missing)
	}
}

func formatFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *f)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
