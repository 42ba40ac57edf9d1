package models

// StatValues is the backend summary of one stats field.
type StatValues struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Count   int64    `json:"count"`
	Missing int64    `json:"missing_count"`
}

// Metadata describes a payload: counts, paging, facets, stats, highlights and spelling.
type Metadata struct {
	RequestID string `json:"request_id,omitempty"`
	Found     int64  `json:"found"`
	Start     int    `json:"start"`
	Rows      int    `json:"rows"`
	Grouped   bool   `json:"grouped,omitempty"`
	// Facets maps field -> value -> count.
	Facets map[string]map[string]int64 `json:"facets,omitempty"`
	// Stats maps field -> summary.
	Stats map[string]StatValues `json:"stats,omitempty"`
	// Highlights maps document id -> field -> fragments.
	Highlights map[string]map[string][]string `json:"highlights,omitempty"`
	// SpellCorrection is the first collation the backend suggested.
	SpellCorrection string `json:"spell_correction,omitempty"`
	// CorrectedPhrase is set when the payload comes from a spell-corrected retry.
	CorrectedPhrase string `json:"corrected_phrase,omitempty"`
	QueryTime       int64  `json:"query_time_ms"`
}

// SearchResponse is the client-facing result of a search.
type SearchResponse struct {
	Payload  []*ResultItem `json:"payload"`
	Metadata Metadata      `json:"metadata"`
}

// IDs returns the ids of the payload items in order.
func (r *SearchResponse) IDs() []string {
	ids := make([]string, len(r.Payload))
	for i, item := range r.Payload {
		ids[i] = item.ID
	}
	return ids
}
