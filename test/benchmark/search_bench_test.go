package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/highlight"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/solr"
)

func benchSnapshot() *search.Snapshot {
	cfg := config.Default()
	cfg.Schema.Fields = []string{
		"title-search^2", "title-search-stemmed", "title-search-exact",
		"repository-search", "repository-search-stemmed",
	}
	cfg.Schema.FieldGroups = map[string][]string{"default": {"title-search", "repository-search"}}
	cfg.Schema.DefaultGroup = "default"
	cfg.Search.Facets = []string{"settlement-facet", "repository-facet"}
	cfg.Search.Stats = []string{"orig-date-from"}
	return search.NewSnapshot(cfg)
}

func BenchmarkAssemble(b *testing.B) {
	snap := benchSnapshot()
	req, err := models.NewSearchRequest(append(snap.RequestDefaults(),
		models.WithPhrase(`Herzog August "Cod. Guelf." "Psalt*" Bibliothek`),
		models.WithFilter(`settlement-facet:"Wolfenbüttel"`, "settlement-facet"),
		models.WithHighlight("", nil, 0),
		models.WithGrouping(),
	)...)
	require.NoError(b, err)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = snap.Assembler.Assemble(req)
	}
}

func BenchmarkExtractGrouped(b *testing.B) {
	var groups []string
	for i := 0; i < 50; i++ {
		groups = append(groups, fmt.Sprintf(
			`{"groupValue":"g%d","doclist":{"numFound":2,"docs":[{"id":"m%d","type":"manuscript"},{"id":"d%d","type":"description"}]}}`, i, i, i))
	}
	body := `{"responseHeader":{"status":0,"params":{"group":"true","rows":"50"}},"grouped":{"group-id":{"matches":100,"ngroups":50,"groups":[` +
		strings.Join(groups, ",") + `]}},"facet_counts":{"facet_fields":{"settlement-facet":["Wolfenbüttel",30,"Berlin",20]}}}`
	reply, err := solr.DecodeReply(strings.NewReader(body))
	require.NoError(b, err)
	snap := benchSnapshot()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = snap.Extractor.Extract(reply)
	}
}

func BenchmarkMergeList(b *testing.B) {
	fragments := []string{
		"Die <em>Herzog</em> <em>August</em> Bibliothek in Wolfenbüttel",
		"<em>Herzog</em> <em>August</em> der Jüngere",
		"Die <em>Herzog</em> August <em>Bibliothek</em> in Wolfenbüttel",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = highlight.MergeList(fragments[:2], fragments[1:], "em")
	}
}
