package search

import (
	"context"
	"strings"

	"github.com/hyperjump/kensaku/internal/highlight"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/query"
	"github.com/hyperjump/kensaku/internal/solr"
)

// GroupPage is the result of the first pass of a grouped search: the keys of the
// groups on the requested page, in rank order, and the page's metadata.
type GroupPage struct {
	GroupIDs []string
	Metadata models.Metadata
}

// fetchGroups runs the first pass: the full request, reduced to the group keys and
// document ids, yielding facets, stats, counts and highlights.
func (e *Engine) fetchGroups(ctx context.Context, snap *Snapshot, req *models.SearchRequest) (*GroupPage, error) {
	first := req.Clone()
	first.ReturnFields = []string{solr.DefaultIDField, snap.Assembler.GroupField()}

	resp, err := e.execute(ctx, snap, first)
	if err != nil {
		return nil, err
	}
	page := &GroupPage{Metadata: resp.Metadata}
	for _, item := range resp.Payload {
		if item.ID != "" {
			page.GroupIDs = append(page.GroupIDs, item.ID)
		}
	}
	return page, nil
}

// completeGroups runs the second pass: every member of the page's groups, with all
// stored fields. Groups keep their first-pass order; groups the second pass no longer
// returns are dropped.
func (e *Engine) completeGroups(ctx context.Context, snap *Snapshot, req *models.SearchRequest, page *GroupPage) (*models.SearchResponse, error) {
	resp := &models.SearchResponse{Payload: []*models.ResultItem{}, Metadata: page.Metadata}
	if len(page.GroupIDs) == 0 {
		return resp, nil
	}

	reply, err := e.backend.Select(ctx, snap.Assembler.Assemble(completionRequest(snap, req, page.GroupIDs)))
	if err != nil {
		return nil, err
	}
	completed := snap.Extractor.Extract(reply)

	byID := make(map[string]*models.ResultItem, len(completed.Payload))
	for _, item := range completed.Payload {
		byID[item.ID] = item
	}
	for _, id := range page.GroupIDs {
		if item, ok := byID[id]; ok {
			resp.Payload = append(resp.Payload, item)
		}
	}
	resp.Metadata.Highlights = mergeHighlights(page.Metadata.Highlights, completed.Metadata.Highlights, snap.Extractor.HighlightTag())
	return resp, nil
}

// completionRequest selects the groups ids by key. Facets, stats, filters and spell
// checking are left out; highlighting uses the original phrase.
func completionRequest(snap *Snapshot, req *models.SearchRequest, ids []string) *models.SearchRequest {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = query.Quote(id)
	}

	second := req.Clone()
	second.Query = models.Raw(snap.Assembler.GroupField() + ":(" + strings.Join(quoted, " OR ") + ")")
	second.Filters = nil
	second.Facets = []string{}
	second.Stats = []string{}
	second.Sort = ""
	second.Start = 0
	second.Rows = len(ids)
	second.GroupLimit = snap.CompletionLimit
	second.Collapse = false
	second.SpellCorrection = false
	if req.Highlight && second.HighlightPhrase == "" && req.Query.IsPhrase() {
		second.HighlightPhrase = req.Query.Text
	}
	return second
}

// mergeHighlights merges two document -> field -> fragments maps. Fragment lists of the
// same document and field are merged by plain text.
func mergeHighlights(a, b map[string]map[string][]string, tag string) map[string]map[string][]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]map[string][]string, len(a)+len(b))
	for _, src := range []map[string]map[string][]string{a, b} {
		for id, fields := range src {
			dst, ok := out[id]
			if !ok {
				dst = make(map[string][]string, len(fields))
				out[id] = dst
			}
			for field, frags := range fields {
				dst[field] = highlight.MergeList(dst[field], frags, tag)
			}
		}
	}
	return out
}
