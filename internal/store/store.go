// Package store provides the document stores that hold observatory events.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"path"

	"github.com/grip-observatory/observatory-api/internal/query"
)

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = errors.New("document not found")

// DocumentStore is a searchable document collection addressed by index name
// and document id. Implementations are safe for concurrent use.
type DocumentStore interface {
	Get(ctx context.Context, index, id string) (Hit, error)
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
	Ping(ctx context.Context) error
	Close()
}

// SortField orders search results by a document field.
type SortField struct {
	Field string
	Desc  bool
}

// SearchRequest describes one paginated search. Index may contain "*"
// wildcards. SourceIncludes, when set, restricts the returned top-level
// fields to those matching any of the glob patterns.
type SearchRequest struct {
	Index          string
	Query          query.Query
	From           int
	Size           int
	Sort           []SortField
	SourceIncludes []string
}

// Hit is one stored document.
type Hit struct {
	Index  string
	ID     string
	Source json.RawMessage
}

// SearchResult holds one page of hits and the total match count.
type SearchResult struct {
	Total int64
	Hits  []Hit
}

// filterSource keeps only the top-level fields of src matching patterns.
func filterSource(src json.RawMessage, patterns []string) (json.RawMessage, error) {
	if len(patterns) == 0 {
		return src, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(src, &fields); err != nil {
		return nil, err
	}
	for k := range fields {
		if !matchAny(patterns, k) {
			delete(fields, k)
		}
	}
	return json.Marshal(fields)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}
