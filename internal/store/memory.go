package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/grip-observatory/observatory-api/internal/query"
)

// MemoryStore keeps documents in process. It evaluates queries with
// query.Eval and is used for local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	indices map[string]map[string]json.RawMessage
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indices: map[string]map[string]json.RawMessage{}}
}

// seedDoc is one entry of a seed file.
type seedDoc struct {
	Index  string          `json:"index"`
	ID     string          `json:"id"`
	Source json.RawMessage `json:"source"`
}

// LoadSeedFile reads a JSON array of {index, id, source} objects into s.
func (s *MemoryStore) LoadSeedFile(p string) error {
	b, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("memory store: read seed %q: %w", p, err)
	}
	var docs []seedDoc
	if err := json.Unmarshal(b, &docs); err != nil {
		return fmt.Errorf("memory store: parse seed %q: %w", p, err)
	}
	for _, d := range docs {
		if err := s.Put(d.Index, d.ID, d.Source); err != nil {
			return err
		}
	}
	return nil
}

// Put stores doc under index and id, replacing any previous version.
func (s *MemoryStore) Put(index, id string, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("memory store: document %s/%s is not valid JSON", index, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indices[index] == nil {
		s.indices[index] = map[string]json.RawMessage{}
	}
	s.indices[index][id] = doc
	return nil
}

func (s *MemoryStore) Get(_ context.Context, index, id string) (Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.indices[index][id]
	if !ok {
		return Hit{}, ErrNotFound
	}
	return Hit{Index: index, ID: id, Source: doc}, nil
}

func (s *MemoryStore) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	type match struct {
		hit Hit
		doc map[string]any
	}

	root := req.Query.Root()
	var matches []match

	s.mu.RLock()
	for index, docs := range s.indices {
		if ok, _ := path.Match(req.Index, index); !ok {
			continue
		}
		for id, raw := range docs {
			var doc map[string]any
			if err := json.Unmarshal(raw, &doc); err != nil {
				s.mu.RUnlock()
				return SearchResult{}, fmt.Errorf("memory store: decode %s/%s: %w", index, id, err)
			}
			if query.Eval(root, doc) {
				matches = append(matches, match{hit: Hit{Index: index, ID: id, Source: raw}, doc: doc})
			}
		}
	}
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return SearchResult{}, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		for _, f := range req.Sort {
			a, b := sortKey(matches[i].doc, f.Field), sortKey(matches[j].doc, f.Field)
			if a == b {
				continue
			}
			if f.Desc {
				return a > b
			}
			return a < b
		}
		return matches[i].hit.ID < matches[j].hit.ID
	})

	res := SearchResult{Total: int64(len(matches))}
	from := max(req.From, 0)
	end := len(matches)
	if from > end {
		from = end
	}
	if req.Size < end-from {
		end = from + max(req.Size, 0)
	}
	for i := from; i < end; i++ {
		h := matches[i].hit
		src, err := filterSource(h.Source, req.SourceIncludes)
		if err != nil {
			return SearchResult{}, err
		}
		h.Source = src
		res.Hits = append(res.Hits, h)
	}
	return res, nil
}

// sortKey supports the string-valued timestamp fields events are sorted by.
func sortKey(doc map[string]any, field string) string {
	v, _ := doc[field].(string)
	return strings.TrimSpace(v)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}
