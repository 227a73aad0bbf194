package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grip-observatory/observatory-api/internal/query"
)

// schemaSQL is embedded so the service can self-bootstrap its mirror table.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore serves event documents mirrored into a jsonb table. Index
// names are kept alongside each document so partition naming is unchanged.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// Put upserts one document.
func (p *PostgresStore) Put(ctx context.Context, index, id string, doc json.RawMessage) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO observatory_events(index_name, id, doc)
		VALUES ($1,$2,$3)
		ON CONFLICT (index_name, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, index, id, []byte(doc))
	return err
}

func (p *PostgresStore) Get(ctx context.Context, index, id string) (Hit, error) {
	var doc []byte
	err := p.pool.QueryRow(ctx, `
		SELECT doc FROM observatory_events WHERE index_name=$1 AND id=$2
	`, index, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return Hit{}, ErrNotFound
	}
	if err != nil {
		return Hit{}, err
	}
	return Hit{Index: index, ID: id, Source: doc}, nil
}

func (p *PostgresStore) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	where, args := searchWhere(req)

	var res SearchResult
	if err := p.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM observatory_events WHERE "+where, args...,
	).Scan(&res.Total); err != nil {
		return SearchResult{}, fmt.Errorf("count events: %w", err)
	}

	sql := "SELECT index_name, id, doc FROM observatory_events WHERE " + where +
		orderBy(req.Sort) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := p.pool.Query(ctx, sql, append(args, req.Size, max(req.From, 0))...)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h Hit
		var doc []byte
		if err := rows.Scan(&h.Index, &h.ID, &doc); err != nil {
			return SearchResult{}, err
		}
		if h.Source, err = filterSource(doc, req.SourceIncludes); err != nil {
			return SearchResult{}, err
		}
		res.Hits = append(res.Hits, h)
	}
	return res, rows.Err()
}

// searchWhere renders the index pattern and query as a WHERE clause.
func searchWhere(req SearchRequest) (string, []any) {
	like := strings.NewReplacer("%", `\%`, "_", `\_`, "*", "%").Replace(req.Index)
	cond, args := query.SQL(req.Query.Root(), "doc", 2)
	return "index_name LIKE $1 AND " + cond, append([]any{like}, args...)
}

func orderBy(fields []SortField) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		dir := "ASC NULLS LAST"
		if f.Desc {
			dir = "DESC NULLS LAST"
		}
		parts = append(parts, fmt.Sprintf("doc->>%s %s", quoteLiteral(f.Field), dir))
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
