package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/query"
	"github.com/hyperjump/kensaku/internal/solr"
)

type fakeBackend struct {
	mu      sync.Mutex
	calls   []*solr.Params
	replies func(p *solr.Params) (string, error)
}

func (b *fakeBackend) Select(ctx context.Context, params *solr.Params) (*solr.Reply, error) {
	b.mu.Lock()
	b.calls = append(b.calls, params.Clone())
	b.mu.Unlock()
	body, err := b.replies(params)
	if err != nil {
		return nil, err
	}
	return solr.DecodeReply(strings.NewReader(body))
}

func (b *fakeBackend) Calls() []*solr.Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*solr.Params(nil), b.calls...)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Schema.Fields = []string{
		"repository-search",
		"repository-search-exact",
		"repository-search-stemmed",
		"title-search^2",
		"title-search-stemmed",
	}
	cfg.Schema.FieldGroups = map[string][]string{"default": {"title-search", "repository-search"}}
	cfg.Schema.DefaultGroup = "default"
	cfg.Search.Grouping.TypeField = "object-type"
	cfg.Search.Grouping.PrimaryType = "manuscript"
	cfg.Search.MaxRows = 100
	return cfg
}

func newTestEngine(t *testing.T, replies func(p *solr.Params) (string, error)) (*Engine, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{replies: replies}
	return NewEngine(b, NewSnapshot(testConfig())), b
}

func mustRequest(t *testing.T, e *Engine, opts ...models.RequestOption) *models.SearchRequest {
	t.Helper()
	req, err := e.NewRequest(opts...)
	require.NoError(t, err)
	return req
}

const emptyGroupedWithCollation = `{"responseHeader":{"status":0,"params":{"start":"0","rows":"10","group":"true"}},
	"grouped":{"group-id":{"matches":0,"ngroups":0,"groups":[]}},
	"facet_counts":{"facet_fields":{"settlement-facet":[]}},
	"spellcheck":{"collations":["collation","Herzog August Bibliothek Wolfenbüttel"]}}`

const firstPassHAB = `{"responseHeader":{"status":0,"params":{"start":"0","rows":"10","group":"true"}},
	"grouped":{"group-id":{"matches":2,"ngroups":1,"groups":[
		{"groupValue":"g1","doclist":{"numFound":2,"docs":[{"id":"d1","group-id":"g1"}]}}]}},
	"facet_counts":{"facet_fields":{"settlement-facet":["Wolfenbüttel",1]}}}`

const completionHAB = `{"responseHeader":{"status":0},
	"grouped":{"group-id":{"matches":2,"ngroups":1,"groups":[
		{"groupValue":"g1","doclist":{"numFound":2,"docs":[
			{"id":"d2","group-id":"g1","object-type":"description"},
			{"id":"d1","group-id":"g1","object-type":"manuscript","title":"Cod. Guelf. 1"}]}}]}}}`

func TestEngine_SearchSpellCorrectedGroupedSearch(t *testing.T) {
	e, b := newTestEngine(t, func(p *solr.Params) (string, error) {
		switch q := p.Get(solr.ParamQuery); q {
		case "Herzog AND August AND Bibliothek":
			return emptyGroupedWithCollation, nil
		case "Herzog AND August AND Bibliothek AND Wolfenbüttel":
			return firstPassHAB, nil
		case `group-id:("g1")`:
			return completionHAB, nil
		default:
			return "", fmt.Errorf("unexpected query %q", q)
		}
	})

	req := mustRequest(t, e,
		models.WithPhrase("Herzog August Bibliothek"),
		models.WithFields("repository-search"),
		models.WithGrouping(),
		models.WithFacets("settlement-facet"),
	)
	resp, err := e.Search(context.Background(), req)
	require.NoError(t, err)

	calls := b.Calls()
	require.Len(t, calls, 3)
	first, retry, completion := calls[0], calls[1], calls[2]

	assert.Equal(t, "repository-search repository-search-stemmed", first.Get(solr.ParamQueryFields))
	assert.Equal(t, "true", first.Get(solr.ParamSpellcheck), "first attempt should ask for spelling suggestions")
	assert.False(t, retry.Has(solr.ParamSpellcheck), "retry must have spell correction disabled")
	assert.Equal(t, []string{"{!ex=settlement-facet}settlement-facet"}, retry.Values(solr.ParamFacetField))
	assert.Equal(t, "id,group-id", first.Get(solr.ParamFieldList))

	assert.Equal(t, "lucene", completion.Get(solr.ParamDefType))
	assert.Equal(t, "100", completion.Get(solr.ParamGroupLimit))
	assert.False(t, completion.Has(solr.ParamFacet), "completion should not facet")
	assert.False(t, completion.Has(solr.ParamSpellcheck), "completion should not spellcheck")
	assert.False(t, completion.Has(solr.ParamFilterQuery), "completion should not filter")
	assert.Equal(t, "*", completion.Get(solr.ParamFieldList))
	assert.Equal(t, "1", completion.Get(solr.ParamRows))

	md := resp.Metadata
	assert.Equal(t, "Herzog August Bibliothek Wolfenbüttel", md.CorrectedPhrase)
	assert.Equal(t, int64(1), md.Found)
	assert.True(t, md.Grouped)
	assert.Equal(t, int64(1), md.Facets["settlement-facet"]["Wolfenbüttel"])
	assert.NotEmpty(t, md.RequestID)
	require.Len(t, resp.Payload, 1)
	item := resp.Payload[0]
	assert.Equal(t, "g1", item.ID)
	assert.Equal(t, "Cod. Guelf. 1", item.Document.String("title"))
	assert.Len(t, item.Satellites["description"], 1)
}

func TestEngine_SearchFlat(t *testing.T) {
	e, b := newTestEngine(t, func(p *solr.Params) (string, error) {
		return `{"response":{"numFound":2,"start":0,"docs":[{"id":"a"},{"id":"b"}]}}`, nil
	})
	resp, err := e.Search(context.Background(), mustRequest(t, e, models.WithPhrase("codex")))
	require.NoError(t, err)
	assert.Len(t, b.Calls(), 1)
	assert.Equal(t, []string{"a", "b"}, resp.IDs())
	assert.Empty(t, resp.Metadata.CorrectedPhrase, "no correction expected")
}

func TestEngine_SpellRetryConditions(t *testing.T) {
	empty := `{"response":{"numFound":0,"start":0,"docs":[]},"spellcheck":{"collations":["collation","codex"]}}`
	noCollation := `{"response":{"numFound":0,"start":0,"docs":[]}}`

	tests := []struct {
		name      string
		reply     string
		opts      []models.RequestOption
		wantCalls int
	}{
		{"retried once", empty, []models.RequestOption{models.WithPhrase("codx")}, 2},
		{"spell correction disabled", empty, []models.RequestOption{models.WithPhrase("codx"), models.WithSpellCorrection(false)}, 1},
		{"raw query", empty, []models.RequestOption{models.WithRawQuery("title:codx")}, 1},
		{"no rows", empty, []models.RequestOption{models.WithPhrase("codx"), models.WithPaging(0, 0)}, 1},
		{"no collation", noCollation, []models.RequestOption{models.WithPhrase("codx")}, 1},
		{"collation equals phrase", empty, []models.RequestOption{models.WithPhrase("codex")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, b := newTestEngine(t, func(*solr.Params) (string, error) { return tt.reply, nil })
			resp, err := e.Search(context.Background(), mustRequest(t, e, tt.opts...))
			require.NoError(t, err)
			assert.Len(t, b.Calls(), tt.wantCalls)
			assert.NotNil(t, resp.Payload, "empty results must still carry a payload")
		})
	}
}

func TestEngine_BackendErrorsPropagate(t *testing.T) {
	boom := &solr.BackendError{Status: 500, Message: "boom"}

	e, _ := newTestEngine(t, func(*solr.Params) (string, error) { return "", boom })
	_, err := e.Search(context.Background(), mustRequest(t, e, models.WithPhrase("x")))
	assert.ErrorIs(t, err, solr.ErrBackend)

	e, _ = newTestEngine(t, func(p *solr.Params) (string, error) {
		if p.Has(solr.ParamSpellcheck) {
			return `{"response":{"numFound":0,"docs":[]},"spellcheck":{"collations":["collation","y"]}}`, nil
		}
		return "", boom
	})
	_, err = e.Search(context.Background(), mustRequest(t, e, models.WithPhrase("x")))
	assert.ErrorIs(t, err, solr.ErrBackend, "retry error")
}

func TestEngine_GroupCompletionOrderAndHighlights(t *testing.T) {
	first := `{"grouped":{"group-id":{"matches":3,"ngroups":3,"groups":[
		{"groupValue":"g2","doclist":{"docs":[{"id":"d2"}]}},
		{"groupValue":"g1","doclist":{"docs":[{"id":"d1"}]}},
		{"groupValue":"g3","doclist":{"docs":[{"id":"d3"}]}}]}},
		"highlighting":{"d1":{"title-search":["<em>A</em> B"]}}}`
	second := `{"grouped":{"group-id":{"matches":2,"ngroups":2,"groups":[
		{"groupValue":"g1","doclist":{"docs":[{"id":"d1","object-type":"manuscript"}]}},
		{"groupValue":"g2","doclist":{"docs":[{"id":"d2","object-type":"manuscript"}]}}]}},
		"highlighting":{"d1":{"title-search-stemmed":["A <em>B</em>"]},"d2":{"repository-search":["<em>x</em>"]}}}`

	e, b := newTestEngine(t, func(p *solr.Params) (string, error) {
		if p.Get(solr.ParamDefType) == "lucene" {
			return second, nil
		}
		return first, nil
	})
	req := mustRequest(t, e,
		models.WithPhrase("A B"),
		models.WithGrouping(),
		models.WithHighlight("", nil, 0),
		models.WithFilter("type:codex", "type"),
	)
	resp, err := e.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"g2", "g1"}, resp.IDs())
	assert.Equal(t, int64(3), resp.Metadata.Found, "found should keep the first-pass count")
	assert.Equal(t, map[string]map[string][]string{
		"d1": {"title-search": {"<em>A B</em>"}},
		"d2": {"repository-search": {"<em>x</em>"}},
	}, resp.Metadata.Highlights)

	completion := b.Calls()[1]
	assert.Equal(t, `group-id:("g2" OR "g1" OR "g3")`, completion.Get(solr.ParamQuery))
	assert.True(t, completion.Has(solr.ParamHighlightQuery), "completion should highlight with the original phrase")
}

func TestCompletionRequest_QuotesEachIDOnce(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	req := mustRequest(t, e, models.WithPhrase("Herzog"), models.WithGrouping())
	tests := []struct {
		ids  []string
		want string
	}{
		{[]string{"hab-1", "hab-2"}, `group-id:("hab-1" OR "hab-2")`},
		{[]string{`a"b`}, `group-id:("a\"b")`},
	}
	for _, tt := range tests {
		got := completionRequest(e.Snapshot(), req, tt.ids)
		assert.Equal(t, models.Raw(tt.want), got.Query, "ids %v", tt.ids)
	}
}

func TestEngine_GroupedWithoutGroupsSkipsCompletion(t *testing.T) {
	e, b := newTestEngine(t, func(*solr.Params) (string, error) {
		return `{"grouped":{"group-id":{"matches":0,"ngroups":0,"groups":[]}}}`, nil
	})
	resp, err := e.Search(context.Background(), mustRequest(t, e, models.WithRawQuery("x:1"), models.WithGrouping()))
	require.NoError(t, err)
	assert.Len(t, b.Calls(), 1)
	assert.Empty(t, resp.Payload)
}

func TestEngine_FindOne(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr error
	}{
		{"one", `{"response":{"numFound":1,"docs":[{"id":"a"}]}}`, nil},
		{"none", `{"response":{"numFound":0,"docs":[]}}`, ErrNotFound},
		{"many", `{"response":{"numFound":2,"docs":[{"id":"a"},{"id":"b"}]}}`, ErrNotUnique},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, func(*solr.Params) (string, error) { return tt.reply, nil })
			item, err := e.FindOne(context.Background(), mustRequest(t, e, models.WithRawQuery("id:a")))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", item.ID)
		})
	}
}

func TestEngine_Object(t *testing.T) {
	e, b := newTestEngine(t, func(p *solr.Params) (string, error) {
		return completionHAB, nil
	})
	item, err := e.Object(context.Background(), `g1`)
	require.NoError(t, err)
	assert.Equal(t, "g1", item.ID)
	assert.Equal(t, "d1", item.Document.String("id"))
	assert.Equal(t, `group-id:"g1"`, b.Calls()[0].Get(solr.ParamQuery))

	_, err = e.Object(context.Background(), " ")
	assert.ErrorIs(t, err, models.ErrInvalidRequest, "blank id")
}

func TestEngine_SearchBatch(t *testing.T) {
	e, _ := newTestEngine(t, func(p *solr.Params) (string, error) {
		q := p.Get(solr.ParamQuery)
		if q == "fail" {
			return "", &solr.BackendError{Status: 500, Message: "boom"}
		}
		return fmt.Sprintf(`{"response":{"numFound":1,"docs":[{"id":%q}]}}`, q), nil
	})

	var reqs []*models.SearchRequest
	for i := 0; i < 7; i++ {
		reqs = append(reqs, mustRequest(t, e, models.WithPhrase(fmt.Sprintf("q%d", i))))
	}
	resps, err := e.SearchBatch(context.Background(), reqs)
	require.NoError(t, err)
	for i, resp := range resps {
		assert.Equal(t, []string{fmt.Sprintf("q%d", i)}, resp.IDs(), "response %d", i)
	}

	reqs = append(reqs, mustRequest(t, e, models.WithPhrase("fail")))
	_, err = e.SearchBatch(context.Background(), reqs)
	assert.ErrorIs(t, err, solr.ErrBackend)
}

func TestEngine_Compile(t *testing.T) {
	e, b := newTestEngine(t, nil)
	req := mustRequest(t, e,
		models.WithPhrase(`Herzog "August" Bibliothek`),
		models.WithFilter("b:1", "b"),
		models.WithFilter("a:1", "a"),
		models.WithGrouping(),
	)
	p1, err := e.Compile(req)
	require.NoError(t, err)
	p2, err := e.Compile(req)
	require.NoError(t, err)
	assert.Equal(t, p1.Encode(), p2.Encode(), "compile is not idempotent")
	assert.Empty(t, b.Calls(), "compile must not call the backend")
}

func TestEngine_Validation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	tests := []struct {
		name string
		req  *models.SearchRequest
	}{
		{"nil", nil},
		{"unknown field", mustRequest(t, e, models.WithFields("nope-search"))},
		{"unknown group", mustRequest(t, e, models.WithFieldGroup("nope"))},
		{"too many rows", mustRequest(t, e, models.WithPaging(0, 101))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, models.ErrInvalidRequest)
		})
	}
}

func TestEngine_Reload(t *testing.T) {
	e, b := newTestEngine(t, func(*solr.Params) (string, error) {
		return `{"grouped":{}}`, nil
	})
	cfg := testConfig()
	cfg.Search.Grouping.Field = "object-id"
	e.Reload(NewSnapshot(cfg))

	_, err := e.Search(context.Background(), mustRequest(t, e, models.WithGrouping()))
	require.NoError(t, err)
	assert.Equal(t, "object-id", b.Calls()[0].Get(solr.ParamGroupField))

	e.Reload(nil)
	assert.NotNil(t, e.Snapshot(), "nil snapshot must be ignored")
}

func TestEngine_NewRequestDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Search.DefaultRows = 25
	cfg.Solr.DefaultOperator = "or"
	f := false
	cfg.Search.SpellCorrection = &f
	e := NewEngine(&fakeBackend{}, NewSnapshot(cfg))

	req, err := e.NewRequest(models.WithPhrase("x"))
	require.NoError(t, err)
	assert.Equal(t, 25, req.Rows)
	assert.Equal(t, query.Or, req.Operator)
	assert.False(t, req.SpellCorrection)
}
