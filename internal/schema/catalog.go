package schema

import "sort"

// DefaultSorts are the sort identifiers recognised when the configuration adds none.
func DefaultSorts() map[string]string {
	return map[string]string{
		"relevance": "score desc",
		"id-asc":    "id asc",
		"id-desc":   "id desc",
	}
}

// Catalog is the immutable table of recognised sort identifiers.
type Catalog struct {
	sorts map[string]string
}

// NewCatalog copies sorts (identifier -> Solr sort clause). Empty identifiers or clauses are skipped.
func NewCatalog(sorts map[string]string) *Catalog {
	c := &Catalog{sorts: make(map[string]string, len(sorts))}
	for id, clause := range sorts {
		if id == "" || clause == "" {
			continue
		}
		c.sorts[id] = clause
	}
	return c
}

// Sort returns the Solr sort clause for id.
func (c *Catalog) Sort(id string) (string, bool) {
	clause, ok := c.sorts[id]
	return clause, ok
}

// SortIDs returns all recognised sort identifiers in lexical order.
func (c *Catalog) SortIDs() []string {
	ids := make([]string, 0, len(c.sorts))
	for id := range c.sorts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
