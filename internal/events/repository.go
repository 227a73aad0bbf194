// Package events resolves observatory events from the document store and
// shapes them for the JSON API.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/grip-observatory/observatory-api/internal/models"
	"github.com/grip-observatory/observatory-api/internal/query"
	"github.com/grip-observatory/observatory-api/internal/store"
)

// Paging defaults for Search.
const (
	DefaultStart  = 0
	DefaultLength = 100
)

// briefSource is the field set returned when a search asks for brief results.
var briefSource = []string{"*_ts", "id", "summary", "event_type"}

// SearchParams is a decoded /json/events request.
type SearchParams struct {
	Filter    query.Params
	Start     int
	Length    int
	EventType string
	Brief     bool
	Debug     bool
	Full      bool
}

// ParseSearchParams decodes paging, partition and projection options plus
// the query filter. brief, debug and full are flags: presence enables them.
func ParseSearchParams(v url.Values) (SearchParams, error) {
	filter, err := query.ParseParams(v)
	if err != nil {
		return SearchParams{}, err
	}

	p := SearchParams{
		Filter:    filter,
		Start:     DefaultStart,
		Length:    DefaultLength,
		EventType: v.Get("event_type"),
		Brief:     v.Has("brief"),
		Debug:     v.Has("debug"),
		Full:      v.Has("full"),
	}

	if n, err := query.OptInt(v, "start"); err != nil {
		return SearchParams{}, err
	} else if n != nil {
		p.Start = *n
	}
	if n, err := query.OptInt(v, "length"); err != nil {
		return SearchParams{}, err
	} else if n != nil {
		p.Length = *n
	}
	if p.Start < 0 || p.Length < 0 {
		return SearchParams{}, fmt.Errorf("%w: start and length must not be negative", query.ErrInvalidParam)
	}
	return p, nil
}

// Repository reads events from a DocumentStore.
type Repository struct {
	store store.DocumentStore
	log   *slog.Logger
	now   func() time.Time
}

// NewRepository returns a Repository over st.
func NewRepository(st store.DocumentStore, log *slog.Logger) *Repository {
	if log == nil {
		log = slog.Default()
	}
	return &Repository{store: st, log: log, now: time.Now}
}

// GetByID fetches one event from its monthly partition with the pfx_event
// prefix fields promoted. Malformed ids fail with ErrInvalidFormat or
// ErrInvalidTimestamp before the store is contacted.
func (r *Repository) GetByID(ctx context.Context, eventID string) (models.Document, error) {
	id, err := ParseID(eventID)
	if err != nil {
		return nil, err
	}

	index := id.Partition()
	hit, err := r.store.Get(ctx, index, eventID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Error("event lookup failed", "index", index, "id", eventID, "err", err)
		}
		return nil, err
	}

	doc, err := decode(hit.Source)
	if err != nil {
		return nil, fmt.Errorf("decode event %s: %w", eventID, err)
	}
	PromotePfxFields(doc)
	return doc, nil
}

// Search runs a filtered, paginated search newest first.
func (r *Repository) Search(ctx context.Context, p SearchParams) (*models.SearchResponse, error) {
	q, err := query.Build(p.Filter, r.now())
	if err != nil {
		return nil, err
	}

	req := store.SearchRequest{
		Index: SearchIndex(p.EventType, p.Debug),
		Query: q,
		From:  p.Start,
		Size:  p.Length,
		Sort:  []store.SortField{{Field: query.FieldViewTS, Desc: true}},
	}
	if p.Brief {
		req.SourceIncludes = briefSource
	}

	res, err := r.store.Search(ctx, req)
	if err != nil {
		r.log.Error("event search failed", "index", req.Index, "err", err)
		return nil, err
	}

	out := &models.SearchResponse{Data: make([]any, 0, len(res.Hits)), RecordsTotal: res.Total}
	for _, h := range res.Hits {
		var (
			d   any
			err error
		)
		if p.Full {
			d, err = Full(h.Source, h.Index)
		} else {
			d, err = Reduce(h.Source)
		}
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", h.ID, err)
		}
		out.Data = append(out.Data, d)
	}

	r.log.Debug("event search", "index", req.Index, "total", res.Total, "returned", len(out.Data))
	return out, nil
}

// Ping checks the underlying store.
func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
