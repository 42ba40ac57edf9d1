package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/solr"
)

type stubBackend struct {
	mu    sync.Mutex
	calls []*solr.Params
	reply string
	err   error
}

func (b *stubBackend) Select(ctx context.Context, params *solr.Params) (*solr.Reply, error) {
	b.mu.Lock()
	b.calls = append(b.calls, params.Clone())
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return solr.DecodeReply(strings.NewReader(b.reply))
}

func (b *stubBackend) last() *solr.Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		return nil
	}
	return b.calls[len(b.calls)-1]
}

const flatReply = `{"responseHeader":{"status":0,"params":{"start":"0","rows":"10"}},
	"response":{"numFound":2,"start":0,"docs":[{"id":"d1","title":"Cod. Guelf. 1"},{"id":"d2"}]}}`

func groupedReply(groups ...string) string {
	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"groupValue":"` + g + `","doclist":{"numFound":1,"docs":[{"id":"` + g + `-m","group-id":"` + g + `","object-type":"manuscript"}]}}`)
	}
	n := len(groups)
	return `{"responseHeader":{"status":0,"params":{"group":"true"}},"grouped":{"group-id":{"matches":` +
		strconv.Itoa(n) + `,"ngroups":` + strconv.Itoa(n) + `,"groups":[` + b.String() + `]}}}`
}

func newTestServer(t *testing.T, backend *stubBackend) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Schema.Fields = []string{"title-search", "title-search-stemmed", "repository-search"}
	cfg.Schema.FieldGroups = map[string][]string{"default": {"title-search", "repository-search"}}
	cfg.Schema.DefaultGroup = "default"
	cfg.Search.Grouping.TypeField = "object-type"
	cfg.Search.Grouping.PrimaryType = "manuscript"
	cfg.Search.MaxRows = 100
	engine := search.NewEngine(backend, search.NewSnapshot(cfg))
	return NewServer(engine, &cfg.Server, zap.NewNop())
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), "decode response")
}

func TestHandleSearch(t *testing.T) {
	backend := &stubBackend{reply: flatReply}
	srv := newTestServer(t, backend)

	w := do(t, srv, http.MethodPost, "/api/v1/search", `{"phrase":"Guelf","fields":["title-search"],"rows":5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.SearchResponse
	decode(t, w, &resp)
	assert.Equal(t, []string{"d1", "d2"}, resp.IDs())
	assert.Equal(t, int64(2), resp.Metadata.Found)
	assert.NotEmpty(t, resp.Metadata.RequestID)

	p := backend.last()
	require.NotNil(t, p)
	assert.Equal(t, "Guelf", p.Get(solr.ParamQuery), "a phrase-only body must reach the backend as the phrase")
	assert.Equal(t, "5", p.Get(solr.ParamRows))
}

func TestHandleSearchQuery(t *testing.T) {
	backend := &stubBackend{reply: flatReply}
	srv := newTestServer(t, backend)

	w := do(t, srv, http.MethodGet, "/api/v1/search?q=Herzog+August&rows=3&start=6", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := backend.last()
	require.NotNil(t, p)
	assert.Equal(t, "Herzog AND August", p.Get(solr.ParamQuery))
	assert.Equal(t, "3", p.Get(solr.ParamRows))
	assert.Equal(t, "6", p.Get(solr.ParamStart))
}

func TestHandleSearch_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"malformed body", http.MethodPost, "/api/v1/search", `{"phrase":`},
		{"unknown json field", http.MethodPost, "/api/v1/search", `{"phrasee":"x"}`},
		{"phrase and query", http.MethodPost, "/api/v1/search", `{"phrase":"a","query":"b:c"}`},
		{"unknown search field", http.MethodPost, "/api/v1/search", `{"phrase":"a","fields":["nope"]}`},
		{"unknown operator", http.MethodPost, "/api/v1/search", `{"phrase":"a","operator":"XOR"}`},
		{"too many rows", http.MethodPost, "/api/v1/search", `{"phrase":"a","rows":1000}`},
		{"non-numeric rows", http.MethodGet, "/api/v1/search?q=a&rows=ten", ""},
		{"unknown field group", http.MethodGet, "/api/v1/search?q=a&field_group=missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{reply: flatReply}
			srv := newTestServer(t, backend)
			w := do(t, srv, tt.method, tt.target, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			var out map[string]string
			decode(t, w, &out)
			assert.NotEmpty(t, out["error"])
			assert.Nil(t, backend.last(), "backend must not be called for invalid requests")
		})
	}
}

func TestHandleSearch_BackendError(t *testing.T) {
	backend := &stubBackend{err: &solr.BackendError{Status: 500, Message: "undefined field"}}
	srv := newTestServer(t, backend)

	w := do(t, srv, http.MethodPost, "/api/v1/search", `{"phrase":"a"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	var out map[string]string
	decode(t, w, &out)
	assert.Contains(t, out["error"], "undefined field")
}

func TestHandleSearchBatch(t *testing.T) {
	backend := &stubBackend{reply: flatReply}
	srv := newTestServer(t, backend)

	w := do(t, srv, http.MethodPost, "/api/v1/search/batch", `[{"phrase":"a"},{"query":"id:d1"}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Responses []models.SearchResponse `json:"responses"`
	}
	decode(t, w, &out)
	assert.Len(t, out.Responses, 2)

	for _, body := range []string{`[]`, `[{"phrase":"a","rows":-1}]`} {
		w := do(t, srv, http.MethodPost, "/api/v1/search/batch", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestHandleCompile(t *testing.T) {
	backend := &stubBackend{reply: flatReply}
	srv := newTestServer(t, backend)

	w := do(t, srv, http.MethodPost, "/api/v1/compile", `{"phrase":"Herzog","fields":["title-search"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Params []solr.Param `json:"params"`
	}
	decode(t, w, &out)
	require.NotEmpty(t, out.Params)
	assert.Equal(t, solr.Param{Name: solr.ParamQuery, Value: "Herzog"}, out.Params[0])
	assert.Nil(t, backend.last(), "compile must not call the backend")
}

func TestHandleGetObject(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		status int
	}{
		{"found", groupedReply("g1"), http.StatusOK},
		{"not found", groupedReply(), http.StatusNotFound},
		{"ambiguous", groupedReply("g1", "g2"), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{reply: tt.reply}
			srv := newTestServer(t, backend)
			w := do(t, srv, http.MethodGet, "/api/v1/objects/g1", "")
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, `group-id:"g1"`, backend.last().Get(solr.ParamQuery))
			if tt.status != http.StatusOK {
				return
			}
			var item models.ResultItem
			decode(t, w, &item)
			assert.Equal(t, "g1", item.ID)
			assert.Equal(t, "g1-m", item.Document.String("id"))
		})
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &stubBackend{})
	w := do(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Status      string   `json:"status"`
		FieldGroups []string `json:"field_groups"`
		Sorts       []string `json:"sorts"`
	}
	decode(t, w, &out)
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, []string{"default"}, out.FieldGroups)
	assert.Equal(t, []string{"id-asc", "id-desc", "relevance"}, out.Sorts)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidRequest, http.StatusBadRequest},
		{search.ErrNotFound, http.StatusNotFound},
		{search.ErrNotUnique, http.StatusConflict},
		{&solr.BackendError{Status: 503}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "statusFor(%v)", tt.err)
	}
}
