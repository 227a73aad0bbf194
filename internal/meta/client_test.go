package meta

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, b []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = b
	return nil
}

func upstream(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/tags":
			w.Write([]byte(`{"tags":{"moas":{"definition":"multiple origins"}}}`)) //nolint:errcheck
		case "/blacklist":
			w.Write([]byte(`{"blacklist":[65000,65001]}`)) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Tags(t *testing.T) {
	var hits atomic.Int32
	c, err := NewClient(Config{BaseURL: upstream(t, &hits).URL + "/"}, nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	data, err := c.Tags(context.Background())
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if _, ok := data["tags"]; !ok {
		t.Errorf("got %v", data)
	}
}

func TestClient_BlocklistRenamesKey(t *testing.T) {
	var hits atomic.Int32
	c, _ := NewClient(Config{BaseURL: upstream(t, &hits).URL}, nil, nil)

	data, err := c.Blocklist(context.Background())
	if err != nil {
		t.Fatalf("Blocklist: %v", err)
	}
	if _, ok := data["blacklist"]; ok {
		t.Error("blacklist key should be renamed")
	}
	if l, ok := data["blocklist"].([]any); !ok || len(l) != 2 {
		t.Errorf("blocklist: got %v", data["blocklist"])
	}

	raw, err := c.Blacklist(context.Background())
	if err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
	if _, ok := raw["blacklist"]; !ok {
		t.Errorf("blacklist passthrough: got %v", raw)
	}
}

func TestClient_CachesResponses(t *testing.T) {
	var hits atomic.Int32
	cache := &mapCache{m: map[string][]byte{}}
	c, _ := NewClient(Config{BaseURL: upstream(t, &hits).URL, CacheTTL: time.Minute}, cache, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.Tags(context.Background()); err != nil {
			t.Fatalf("Tags: %v", err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hits: got %d, want 1", n)
	}
}

func TestClient_UpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	if _, err := c.Tags(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Errorf("got %v, want ErrUpstream", err)
	}

	if _, err := NewClient(Config{}, nil, nil); err == nil {
		t.Error("expected error for empty base URL")
	}
}
