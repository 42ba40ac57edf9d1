package solr

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/hyperjump/kensaku/internal/models"
)

// Reply is the JSON reply of the Solr select handler. Every section is optional.
type Reply struct {
	ResponseHeader ResponseHeader                 `json:"responseHeader"`
	Response       *DocList                       `json:"response,omitempty"`
	Grouped        map[string]*GroupedField       `json:"grouped,omitempty"`
	FacetCounts    *FacetCounts                   `json:"facet_counts,omitempty"`
	Stats          *StatsSection                  `json:"stats,omitempty"`
	Highlighting   map[string]map[string][]string `json:"highlighting,omitempty"`
	Spellcheck     *Spellcheck                    `json:"spellcheck,omitempty"`
	Error          *ReplyError                    `json:"error,omitempty"`
}

// ResponseHeader echoes the request parameters.
type ResponseHeader struct {
	Status int                        `json:"status"`
	QTime  int64                      `json:"QTime"`
	Params map[string]json.RawMessage `json:"params,omitempty"`
}

// Param returns the echoed value of name. Repeated parameters yield their first value.
func (h ResponseHeader) Param(name string) string {
	raw, ok := h.Params[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// IntParam returns the echoed value of name as an int.
func (h ResponseHeader) IntParam(name string) (int, bool) {
	n, err := strconv.Atoi(h.Param(name))
	return n, err == nil
}

// DocList is a flat list of documents.
type DocList struct {
	NumFound int64             `json:"numFound"`
	Start    int               `json:"start"`
	Docs     []models.Document `json:"docs"`
}

// GroupedField is the grouped section for one group field.
type GroupedField struct {
	Matches int64   `json:"matches"`
	NGroups *int64  `json:"ngroups,omitempty"`
	Groups  []Group `json:"groups"`
}

// Group is one group with its member documents.
type Group struct {
	GroupValue any     `json:"groupValue"`
	DocList    DocList `json:"doclist"`
}

// FacetCounts holds field facets as flat [value, count, value, count, ...] lists.
type FacetCounts struct {
	FacetFields map[string][]any `json:"facet_fields"`
}

// StatsSection holds per-field statistics.
type StatsSection struct {
	StatsFields map[string]*StatsField `json:"stats_fields"`
}

// StatsField is the summary of one stats field. Min and max are null when no document has a value.
type StatsField struct {
	Min     any   `json:"min"`
	Max     any   `json:"max"`
	Count   int64 `json:"count"`
	Missing int64 `json:"missing"`
}

// Spellcheck is the spellcheck section.
type Spellcheck struct {
	CorrectlySpelled bool            `json:"correctlySpelled"`
	Collations       json.RawMessage `json:"collations,omitempty"`
}

// FirstCollation returns the first collated suggestion. Solr renders named lists either as
// flat ["collation", value, ...] arrays or as objects; values are strings or, with extended
// results, objects carrying collationQuery.
func (s *Spellcheck) FirstCollation() string {
	if s == nil || len(s.Collations) == 0 {
		return ""
	}
	var flat []any
	if err := json.Unmarshal(s.Collations, &flat); err == nil {
		for i := 0; i+1 < len(flat); i += 2 {
			if name, _ := flat[i].(string); name == "collation" {
				if c := collationText(flat[i+1]); c != "" {
					return c
				}
			}
		}
		return ""
	}
	var named map[string]any
	if err := json.Unmarshal(s.Collations, &named); err == nil {
		return collationText(named["collation"])
	}
	return ""
}

func collationText(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case map[string]any:
		s, _ := c["collationQuery"].(string)
		return s
	case []any:
		if len(c) > 0 {
			return collationText(c[0])
		}
	}
	return ""
}

// ReplyError is the error section Solr adds to failed replies.
type ReplyError struct {
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

// DecodeReply decodes a JSON select reply.
func DecodeReply(r io.Reader) (*Reply, error) {
	var reply Reply
	if err := json.NewDecoder(r).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode solr reply: %w", err)
	}
	return &reply, nil
}
