package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/grip-observatory/observatory-api/internal/config"
	"github.com/grip-observatory/observatory-api/internal/events"
	"github.com/grip-observatory/observatory-api/internal/handlers"
	"github.com/grip-observatory/observatory-api/internal/httpserver"
	"github.com/grip-observatory/observatory-api/internal/meta"
	"github.com/grip-observatory/observatory-api/internal/metrics"
	"github.com/grip-observatory/observatory-api/internal/store"
)

// main boots the service: config → logger → event store → repository → HTTP server.
func main() {
	configPath := flag.String("config", "", "path to config.toml (environment variables override it)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The store must be reachable before any traffic is served.
	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open event store", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	metaSvc, closeMeta, err := openMeta(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up metadata proxy", "err", err)
		os.Exit(1)
	}
	defer closeMeta()

	repo := events.NewRepository(st, logger)
	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Events:  repo,
		Store:   repo,
		Meta:    metaSvc,
		Metrics: metrics.New(),
		Log:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server started", "addr", cfg.Server.Addr, "backend", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg config.Config) (store.DocumentStore, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		// Ensure the mirror table exists so an empty database is enough.
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil

	case config.BackendMemory:
		mem := store.NewMemoryStore()
		if cfg.Memory.SeedFile != "" {
			if err := mem.LoadSeedFile(cfg.Memory.SeedFile); err != nil {
				return nil, err
			}
		}
		return mem, nil

	default:
		return store.NewElasticStore(ctx, store.ElasticConfig{
			Nodes:        cfg.Elasticsearch.Nodes,
			APIKeyID:     cfg.Elasticsearch.APIKeyID,
			APIKeySecret: cfg.Elasticsearch.APIKeySecret,
			Timeout:      cfg.ESTimeout(),
			MaxRetries:   cfg.Elasticsearch.MaxRetries,
			VerifyCerts:  cfg.Elasticsearch.VerifyCerts,
		})
	}
}

// openMeta returns a nil service when no metadata service is configured.
func openMeta(ctx context.Context, cfg config.Config, logger *slog.Logger) (handlers.MetaService, func(), error) {
	noop := func() {}
	if cfg.Meta.Service == "" {
		logger.Warn("META_SERVICE not set; metadata endpoints disabled")
		return nil, noop, nil
	}

	var cache meta.Cache
	closeFn := noop
	if cfg.Redis.Addr != "" {
		rc, err := meta.NewRedisCache(ctx, meta.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, noop, err
		}
		cache = rc
		closeFn = func() { _ = rc.Close() }
	}

	client, err := meta.NewClient(meta.Config{
		BaseURL:  cfg.Meta.Service,
		Timeout:  cfg.MetaTimeout(),
		CacheTTL: cfg.MetaCacheTTL(),
	}, cache, logger)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return client, closeFn, nil
}
