package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grip-observatory/observatory-api/internal/config"
	"github.com/grip-observatory/observatory-api/internal/events"
	"github.com/grip-observatory/observatory-api/internal/meta"
	"github.com/grip-observatory/observatory-api/internal/store"
)

////////////////////////////////////////////////////////////////////////////////
// TEST SERVER
//
// The router is served over an in-memory document store seeded with one
// moas and one submoas event, plus a fake metadata service:
//
//   Client → gin router → handlers → Repository → MemoryStore
//
////////////////////////////////////////////////////////////////////////////////

const (
	moasID    = "moas-1586300000-123"
	submoasID = "submoas-1586300000-64500_64501"
)

var seed = []struct{ index, id, doc string }{
	{"observatory-v4-query-events-moas-2020-04", moasID, `{
		"id": "moas-1586300000-123", "event_type": "moas", "view_ts": "2020-04-07 22:53:20",
		"summary": {"prefixes": ["192.0.2.0/24"], "ases": [123],
			"inference_result": {"primary_inference": {"suspicion_level": 80}}},
		"internal_debug_blob": "x",
		"pfx_events": [{"details": {"prefix": "192.0.2.0/24"}, "tags": ["moas"], "traceroutes": [1]}]}`},
	{"observatory-v4-query-events-submoas-2020-04", submoasID, `{
		"id": "submoas-1586300000-64500_64501", "event_type": "submoas", "view_ts": "2020-04-07 20:00:00",
		"finished_ts": "2020-04-07 21:00:00",
		"summary": {"prefixes": ["10.0.0.0/8", "10.1.0.0/16"], "ases": [64500, 64501],
			"inference_result": {"primary_inference": {"suspicion_level": 20}}},
		"pfx_events": [{"details": {"sub_pfx": "10.1.0.0/16", "super_pfx": "10.0.0.0/8"}, "tags": []}]}`},
}

type failingStore struct{ store.DocumentStore }

func (failingStore) Search(context.Context, store.SearchRequest) (store.SearchResult, error) {
	return store.SearchResult{}, errors.New("connection refused")
}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func newServer(t *testing.T) http.Handler {
	t.Helper()

	mem := store.NewMemoryStore()
	for _, s := range seed {
		if err := mem.Put(s.index, s.id, json.RawMessage(s.doc)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tags":
			io.WriteString(w, `{"tags":{"moas":{}}}`) //nolint:errcheck
		case "/blacklist":
			io.WriteString(w, `{"blacklist":[64512]}`) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mc, err := meta.NewClient(meta.Config{BaseURL: upstream.URL}, nil, log)
	if err != nil {
		t.Fatalf("meta client: %v", err)
	}

	cfg := testConfig()
	repo := events.NewRepository(mem, log)
	return NewRouter(cfg, Deps{
		Events: repo,
		Store:  repo,
		Meta:   mc,
		Log:    log,
	})
}

func testConfig() config.Config {
	return config.Config{Server: config.ServerConfig{
		Copyright:      config.DefaultCopyright,
		CORSOrigins:    []string{"*"},
		RequestTimeout: 5,
	}}
}

////////////////////////////////////////////////////////////////////////////////
// GENERIC HTTP HELPERS
////////////////////////////////////////////////////////////////////////////////

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if rr.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s: invalid JSON %q: %v", path, rr.Body.String(), err)
		}
	}
	return rr.Code, body
}

func assertCopyright(t *testing.T, body map[string]any) {
	t.Helper()
	if body["copyright"] != config.DefaultCopyright {
		t.Errorf("copyright: got %v", body["copyright"])
	}
}

////////////////////////////////////////////////////////////////////////////////
// HEALTH & READINESS TESTS
////////////////////////////////////////////////////////////////////////////////

func TestHealth_ReturnsOK(t *testing.T) {
	s, _ := get(t, newServer(t), "/health")
	if s != http.StatusOK {
		t.Fatalf("health expected 200 got %d", s)
	}
}

func TestReady_ReflectsStore(t *testing.T) {
	s, _ := get(t, newServer(t), "/ready")
	if s != http.StatusOK {
		t.Fatalf("ready expected 200 got %d", s)
	}

	repo := events.NewRepository(failingStore{}, nil)
	h := NewRouter(testConfig(), Deps{Events: repo, Store: repo})
	s, _ = get(t, h, "/ready")
	if s != http.StatusServiceUnavailable {
		t.Fatalf("ready with failing store expected 503 got %d", s)
	}
}

////////////////////////////////////////////////////////////////////////////////
// EVENT LOOKUP TESTS
////////////////////////////////////////////////////////////////////////////////

func TestEventByID_PromotesPrefixes(t *testing.T) {
	s, body := get(t, newServer(t), "/json/event/id/"+moasID)
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d", s)
	}
	assertCopyright(t, body)

	pfx := body["pfx_events"].([]any)[0].(map[string]any)
	if pfx["prefix"] != "192.0.2.0/24" {
		t.Errorf("prefix not promoted: %v", pfx)
	}
}

func TestEventByID_MalformedIsErrorObject(t *testing.T) {
	for _, id := range []string{"bogus", "moas-notatime-1"} {
		s, body := get(t, newServer(t), "/json/event/id/"+id)
		if s != http.StatusOK {
			t.Errorf("%s: expected 200 got %d", id, s)
		}
		if _, ok := body["error"].(string); !ok {
			t.Errorf("%s: expected error field, got %v", id, body)
		}
		assertCopyright(t, body)
	}
}

func TestEventByID_NotFoundIsEmptyObject(t *testing.T) {
	s, body := get(t, newServer(t), "/json/event/id/moas-1586300000-999")
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d", s)
	}
	if len(body) != 1 {
		t.Errorf("expected only copyright, got %v", body)
	}
	assertCopyright(t, body)
}

////////////////////////////////////////////////////////////////////////////////
// SEARCH TESTS
////////////////////////////////////////////////////////////////////////////////

func TestEvents_Envelope(t *testing.T) {
	s, body := get(t, newServer(t), "/json/events")
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d", s)
	}
	assertCopyright(t, body)

	if v, ok := body["draw"]; !ok || v != nil {
		t.Errorf("draw: got %v, %v", v, ok)
	}
	if body["recordsFiltered"].(float64) != 0 || body["recordsTotal"].(float64) != 2 {
		t.Errorf("records: got %v/%v", body["recordsFiltered"], body["recordsTotal"])
	}

	data := body["data"].([]any)
	first := data[0].(map[string]any)
	if first["id"] != moasID {
		t.Errorf("newest first: got %v", first["id"])
	}
	if _, ok := first["internal_debug_blob"]; ok {
		t.Error("reduced mode must drop internal_debug_blob")
	}
	if _, ok := first["debug"]; !ok {
		t.Error("reduced mode must add debug")
	}
}

func TestEvents_EmptyCopyrightStillPresent(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Copyright = ""
	repo := events.NewRepository(store.NewMemoryStore(), nil)
	h := NewRouter(cfg, Deps{Events: repo, Store: repo})

	_, body := get(t, h, "/json/events")
	if v, ok := body["copyright"]; !ok || v != "" {
		t.Errorf("copyright: got %v, %v", v, ok)
	}
}

func TestEvents_Filters(t *testing.T) {
	h := newServer(t)
	cases := []struct {
		query string
		want  float64
	}{
		{"min_susp=50", 1},
		{"asns=!123", 1},
		{"pfxs=10.1.0.0/16", 1},
		{"event_type=submoas", 1},
		{"event_type=all", 2},
		{"ts_start=2020-04-07T20:30", 1},
		{"ts_start=2020-04-07T20:30&overlap=true", 2},
		{"ts_start=2020-04-07T21:30&overlap=true", 1},
		{"ts_end=1586289600", 1},
		{"min_duration=10", 0},
		{"debug", 0},
	}
	for _, tc := range cases {
		s, body := get(t, h, "/json/events?"+tc.query)
		if s != http.StatusOK {
			t.Errorf("%s: expected 200 got %d", tc.query, s)
			continue
		}
		if got := body["recordsTotal"]; got != tc.want {
			t.Errorf("%s: recordsTotal got %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestEvents_FullAndBrief(t *testing.T) {
	h := newServer(t)

	_, body := get(t, h, "/json/events?full&event_type=moas")
	first := body["data"].([]any)[0].(map[string]any)
	if first["_esid"] != "observatory-v4-query-events-moas-2020-04" || first["internal_debug_blob"] != "x" {
		t.Errorf("full mode: got %v", first)
	}

	_, body = get(t, h, "/json/events?brief&full&event_type=moas")
	first = body["data"].([]any)[0].(map[string]any)
	if _, ok := first["pfx_events"]; ok {
		t.Errorf("brief mode must not return pfx_events: %v", first)
	}
}

func TestEvents_MalformedParams(t *testing.T) {
	h := newServer(t)
	for _, q := range []string{"ts_start=yesterday", "min_susp=high", "tags=a,,b", "pfxs=!", "start=-5"} {
		s, body := get(t, h, "/json/events?"+q)
		if s != http.StatusOK {
			t.Errorf("%s: expected 200 got %d", q, s)
		}
		if _, ok := body["error"]; !ok {
			t.Errorf("%s: expected error object, got %v", q, body)
		}
	}
}

func TestEvents_StoreFailure(t *testing.T) {
	h := NewRouter(testConfig(), Deps{Events: events.NewRepository(failingStore{}, nil), Store: failingStore{}})
	s, body := get(t, h, "/json/events")
	if s != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", s)
	}
	if body["error"] != "event store query failed" {
		t.Errorf("got %v", body)
	}
}

////////////////////////////////////////////////////////////////////////////////
// PFX EVENT TESTS
////////////////////////////////////////////////////////////////////////////////

func TestPfxEvent(t *testing.T) {
	h := newServer(t)

	_, body := get(t, h, "/json/pfx_event/id/"+moasID+"/192.0.2.0-24")
	if body["prefix"] != "192.0.2.0/24" {
		t.Errorf("moas match: got %v", body)
	}
	assertCopyright(t, body)

	_, body = get(t, h, "/json/pfx_event/id/"+submoasID+"/10.1.0.0-16_10.0.0.0-8")
	if body["sub_pfx"] != "10.1.0.0/16" || body["super_pfx"] != "10.0.0.0/8" {
		t.Errorf("submoas match: got %v", body)
	}

	_, body = get(t, h, "/json/pfx_event/id/"+moasID+"/198.51.100.0-24")
	if len(body) != 1 {
		t.Errorf("no match should be empty object, got %v", body)
	}

	s, body := get(t, h, "/json/pfx_event/id/"+moasID+"/10.1.0.0-16_10.0.0.0-8")
	if s != http.StatusOK {
		t.Errorf("expected 200 got %d", s)
	}
	if _, ok := body["error"]; !ok {
		t.Errorf("two prefixes for moas should be an error, got %v", body)
	}

	_, body = get(t, h, "/json/pfx_event/id/bogus/192.0.2.0-24")
	if _, ok := body["error"]; !ok {
		t.Errorf("bad event id should be an error, got %v", body)
	}
}

////////////////////////////////////////////////////////////////////////////////
// METADATA PROXY TESTS
////////////////////////////////////////////////////////////////////////////////

func TestMetaProxy(t *testing.T) {
	h := newServer(t)

	_, body := get(t, h, "/json/tags")
	if _, ok := body["tags"]; !ok {
		t.Errorf("tags: got %v", body)
	}
	assertCopyright(t, body)

	_, body = get(t, h, "/json/blacklist")
	if _, ok := body["blacklist"]; !ok {
		t.Errorf("blacklist: got %v", body)
	}

	_, body = get(t, h, "/json/blocklist")
	if _, ok := body["blocklist"]; !ok {
		t.Errorf("blocklist: got %v", body)
	}
	if _, ok := body["blacklist"]; ok {
		t.Errorf("blocklist must rename blacklist: got %v", body)
	}

	_, body = get(t, h, "/json/asndrop")
	if len(body) != 1 {
		t.Errorf("asndrop: got %v", body)
	}
}

func TestMetaProxy_NotConfigured(t *testing.T) {
	mem := store.NewMemoryStore()
	h := NewRouter(testConfig(), Deps{Events: events.NewRepository(mem, nil), Store: mem})
	s, _ := get(t, h, "/json/tags")
	if s != http.StatusServiceUnavailable {
		t.Errorf("expected 503 got %d", s)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newServer(t)
	get(t, h, "/json/events")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics expected 200 got %d", rr.Code)
	}
}

func TestRequestID(t *testing.T) {
	h := newServer(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Header().Get(requestIDHeader) == "" {
		t.Error("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "abc" {
		t.Errorf("request id: got %q, want abc", got)
	}
}

func TestCORS_ExplicitOrigins(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORSOrigins = []string{"https://bgp.example.org"}
	h := NewRouter(cfg, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://bgp.example.org")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://bgp.example.org" {
		t.Errorf("allow origin: got %q", got)
	}
}
