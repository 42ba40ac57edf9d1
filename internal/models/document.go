// Package models defines the search request, response and document types.
package models

import "fmt"

// Document is a stored Solr document as returned by the backend.
type Document map[string]any

// String returns field as a string. Multi-valued fields yield their first value.
func (d Document) String(field string) string {
	switch v := d[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}
		return fmt.Sprint(v[0])
	default:
		return fmt.Sprint(v)
	}
}

// ResultItem is one entry of a response payload. For flat searches Document is the hit.
// For grouped searches ID is the group key, Document the primary object of the group
// and Satellites the remaining members keyed by their type.
type ResultItem struct {
	ID         string                `json:"id"`
	Document   Document              `json:"document,omitempty"`
	Satellites map[string][]Document `json:"satellites,omitempty"`
}
