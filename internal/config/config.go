package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Store backends.
const (
	BackendElasticsearch = "elasticsearch"
	BackendPostgres      = "postgres"
	BackendMemory        = "memory"
)

// DefaultCopyright is injected into every JSON response.
const DefaultCopyright = "This data is Copyright (c) 2021 Georgia Tech Research Corporation. All Rights Reserved."

// Config contains runtime configuration required by the service.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Store         StoreConfig         `toml:"store"`
	Elasticsearch ElasticsearchConfig `toml:"elasticsearch"`
	Postgres      PostgresConfig      `toml:"postgres"`
	Memory        MemoryConfig        `toml:"memory"`
	Meta          MetaConfig          `toml:"meta"`
	Redis         RedisConfig         `toml:"redis"`
	Log           LogConfig           `toml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	Copyright      string   `toml:"copyright"`
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout int      `toml:"request_timeout_seconds"`
}

// StoreConfig selects the event document store.
type StoreConfig struct {
	Backend string `toml:"backend"`
}

// ElasticsearchConfig configures the production event store.
type ElasticsearchConfig struct {
	Nodes        []string `toml:"nodes"`
	APIKeyID     string   `toml:"api_key_id"`
	APIKeySecret string   `toml:"api_key_secret"`
	Timeout      int      `toml:"timeout_seconds"`
	MaxRetries   int      `toml:"max_retries"`
	VerifyCerts  bool     `toml:"verify_certs"`
}

// PostgresConfig configures the jsonb mirror store.
type PostgresConfig struct {
	URL string `toml:"url"`
}

// MemoryConfig configures the in-process store.
type MemoryConfig struct {
	SeedFile string `toml:"seed_file"`
}

// MetaConfig points at the metadata service proxied under /json/tags and /json/blocklist.
type MetaConfig struct {
	Service  string `toml:"service"`
	Timeout  int    `toml:"timeout_seconds"`
	CacheTTL int    `toml:"cache_ttl_seconds"`
}

// RedisConfig configures the optional metadata response cache. An empty
// Addr disables caching.
type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ESTimeout returns the per-request Elasticsearch timeout.
func (c Config) ESTimeout() time.Duration {
	return time.Duration(c.Elasticsearch.Timeout) * time.Second
}

// MetaTimeout returns the metadata service request timeout.
func (c Config) MetaTimeout() time.Duration {
	return time.Duration(c.Meta.Timeout) * time.Second
}

// MetaCacheTTL returns how long metadata responses are cached.
func (c Config) MetaCacheTTL() time.Duration {
	return time.Duration(c.Meta.CacheTTL) * time.Second
}

// RequestTimeout bounds the handling of one inbound request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// Load reads the TOML file at path (if non-empty), applies environment
// overrides and validates the result.
//
// Environment: HTTP_ADDR, STORE_BACKEND, ES_NODES (comma list), ES_API_KEY_ID,
// ES_API_KEY_SECRET, DB_URL, META_SERVICE, REDIS_ADDR, REDIS_PASSWORD, LOG_LEVEL.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			Copyright:      DefaultCopyright,
			CORSOrigins:    []string{"*"},
			RequestTimeout: 60,
		},
		Store: StoreConfig{Backend: BackendElasticsearch},
		Elasticsearch: ElasticsearchConfig{
			Timeout:    30,
			MaxRetries: 5,
		},
		Meta: MetaConfig{Timeout: 30, CacheTTL: 300},
		Log:  LogConfig{Level: "info", Format: "json"},
	}
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.Addr, "HTTP_ADDR")
	set(&cfg.Store.Backend, "STORE_BACKEND")
	set(&cfg.Elasticsearch.APIKeyID, "ES_API_KEY_ID")
	set(&cfg.Elasticsearch.APIKeySecret, "ES_API_KEY_SECRET")
	set(&cfg.Postgres.URL, "DB_URL")
	set(&cfg.Meta.Service, "META_SERVICE")
	set(&cfg.Redis.Addr, "REDIS_ADDR")
	set(&cfg.Redis.Password, "REDIS_PASSWORD")
	set(&cfg.Log.Level, "LOG_LEVEL")

	if v := strings.TrimSpace(os.Getenv("ES_NODES")); v != "" {
		var nodes []string
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				nodes = append(nodes, n)
			}
		}
		cfg.Elasticsearch.Nodes = nodes
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Store.Backend {
	case BackendElasticsearch:
		if len(cfg.Elasticsearch.Nodes) == 0 {
			return errors.New("elasticsearch.nodes required (or ES_NODES)")
		}
	case BackendPostgres:
		if cfg.Postgres.URL == "" {
			return errors.New("postgres.url required (or DB_URL)")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend %q unknown: want %s|%s|%s",
			cfg.Store.Backend, BackendElasticsearch, BackendPostgres, BackendMemory)
	}

	if cfg.Elasticsearch.Timeout < 0 || cfg.Meta.Timeout < 0 || cfg.Meta.CacheTTL < 0 || cfg.Server.RequestTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if cfg.Elasticsearch.MaxRetries < 0 {
		return errors.New("elasticsearch.max_retries must not be negative")
	}
	for _, o := range cfg.Server.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("server.cors_origins: %q must be \"*\" or start with http:// or https://", o)
		}
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	return nil
}
