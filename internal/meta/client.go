// Package meta proxies the observatory metadata service (tag definitions and
// the origin blocklist).
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrUpstream wraps failures talking to the metadata service.
var ErrUpstream = errors.New("metadata service request failed")

// Cache stores raw upstream responses. A miss returns ok=false.
type Cache interface {
	Get(ctx context.Context, key string) (b []byte, ok bool, err error)
	Set(ctx context.Context, key string, b []byte, ttl time.Duration) error
}

// Config configures the metadata client.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client fetches JSON objects from the metadata service.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    Cache
	cacheTTL time.Duration
	log      *slog.Logger
}

// NewClient creates a metadata client. cache may be nil.
func NewClient(cfg Config, cache Cache, log *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("metadata service URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		log:      log,
	}, nil
}

// Tags returns the tag definitions object.
func (c *Client) Tags(ctx context.Context) (map[string]any, error) {
	return c.fetch(ctx, "/tags")
}

// Blacklist returns the blocklist object as served upstream, keyed "blacklist".
func (c *Client) Blacklist(ctx context.Context) (map[string]any, error) {
	return c.fetch(ctx, "/blacklist")
}

// Blocklist returns the blocklist object with its list under "blocklist".
func (c *Client) Blocklist(ctx context.Context) (map[string]any, error) {
	data, err := c.Blacklist(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := data["blacklist"]; ok {
		data["blocklist"] = v
		delete(data, "blacklist")
	}
	return data, nil
}

func (c *Client) fetch(ctx context.Context, path string) (map[string]any, error) {
	body, err := c.cached(ctx, path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func (c *Client) cached(ctx context.Context, path string) ([]byte, error) {
	if c.cache != nil && c.cacheTTL > 0 {
		b, ok, err := c.cache.Get(ctx, path)
		if err != nil {
			c.log.Warn("metadata cache read failed", "path", path, "err", err)
		} else if ok {
			return b, nil
		}
	}

	b, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, path, b, c.cacheTTL); err != nil {
			c.log.Warn("metadata cache write failed", "path", path, "err", err)
		}
	}
	return b, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUpstream, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstream, path, resp.StatusCode)
	}
	return b, nil
}
