package store

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticConfig configures the Elasticsearch client.
type ElasticConfig struct {
	Nodes        []string
	APIKeyID     string
	APIKeySecret string
	Timeout      time.Duration
	MaxRetries   int
	VerifyCerts  bool
}

// ElasticStore reads events from the observatory Elasticsearch cluster.
type ElasticStore struct {
	client  *elasticsearch.Client
	timeout time.Duration
}

// NewElasticStore builds a client and pings the cluster. A failed ping is
// returned as an error; the client is not retried here beyond its own
// bounded retry policy.
func NewElasticStore(ctx context.Context, cfg ElasticConfig) (*ElasticStore, error) {
	if len(cfg.Nodes) == 0 {
		return nil, errors.New("elasticsearch: no nodes configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	esCfg := elasticsearch.Config{
		Addresses:     cfg.Nodes,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests},
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: cfg.Timeout}).DialContext,
			ResponseHeaderTimeout: cfg.Timeout,
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: !cfg.VerifyCerts}, //nolint:gosec // cluster uses self-signed certs
		},
	}
	if cfg.APIKeyID != "" {
		esCfg.APIKey = base64.StdEncoding.EncodeToString([]byte(cfg.APIKeyID + ":" + cfg.APIKeySecret))
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}

	s := &ElasticStore{client: client, timeout: cfg.Timeout}
	if err := s.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	return s, nil
}

func (s *ElasticStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping: %s", res.Status())
	}
	return nil
}

func (s *ElasticStore) Close() {}

func (s *ElasticStore) Get(ctx context.Context, index, id string) (Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.client.Get(index, id, s.client.Get.WithContext(ctx))
	if err != nil {
		return Hit{}, fmt.Errorf("get %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return Hit{}, ErrNotFound
	}
	if res.IsError() {
		return Hit{}, responseError(res)
	}

	var body struct {
		Index  string          `json:"_index"`
		ID     string          `json:"_id"`
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Hit{}, fmt.Errorf("decode get response: %w", err)
	}
	if !body.Found {
		return Hit{}, ErrNotFound
	}
	return Hit{Index: body.Index, ID: body.ID, Source: body.Source}, nil
}

func (s *ElasticStore) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(req.Query.Elastic())
	if err != nil {
		return SearchResult{}, fmt.Errorf("encode query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(req.Index),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithFrom(req.From),
		s.client.Search.WithSize(req.Size),
		s.client.Search.WithTrackTotalHits(true),
		s.client.Search.WithIgnoreUnavailable(true),
	}
	if len(req.Sort) > 0 {
		opts = append(opts, s.client.Search.WithSort(sortParams(req.Sort)...))
	}
	if len(req.SourceIncludes) > 0 {
		opts = append(opts, s.client.Search.WithSourceIncludes(req.SourceIncludes...))
	}

	res, err := s.client.Search(opts...)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search %s: %w", req.Index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return SearchResult{}, responseError(res)
	}

	var out struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Index  string          `json:"_index"`
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return SearchResult{}, fmt.Errorf("decode search response: %w", err)
	}

	result := SearchResult{Total: out.Hits.Total.Value, Hits: make([]Hit, 0, len(out.Hits.Hits))}
	for _, h := range out.Hits.Hits {
		result.Hits = append(result.Hits, Hit{Index: h.Index, ID: h.ID, Source: h.Source})
	}
	return result, nil
}

func sortParams(fields []SortField) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		dir := "asc"
		if f.Desc {
			dir = "desc"
		}
		out = append(out, f.Field+":"+dir)
	}
	return out
}

func responseError(res *esapi.Response) error {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("elasticsearch: %s: %s", res.Status(), strings.TrimSpace(string(b)))
}
