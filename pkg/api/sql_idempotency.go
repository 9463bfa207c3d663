package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kalamgit143/validAIte-sub004/pkg/store"
)

// SQLIdempotencyStore provides durable idempotency backed by the service
// database, so replays survive restarts and span instances.
type SQLIdempotencyStore struct {
	db      *sql.DB
	dialect store.Dialect
	ttl     time.Duration
	clock   func() time.Time
	logger  *slog.Logger
}

// NewSQLIdempotencyStore creates a SQL-backed idempotency store.
func NewSQLIdempotencyStore(db *sql.DB, dialect store.Dialect, ttl time.Duration) *SQLIdempotencyStore {
	return &SQLIdempotencyStore{
		db:      db,
		dialect: dialect,
		ttl:     ttl,
		clock:   time.Now,
		logger:  slog.Default().With("component", "idempotency"),
	}
}

// Init creates the idempotency table.
func (s *SQLIdempotencyStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS idempotency_keys (
			key TEXT PRIMARY KEY,
			status_code INTEGER NOT NULL,
			headers TEXT NOT NULL,
			body TEXT NOT NULL,
			cached_at BIGINT NOT NULL
		)`)
	return err
}

// Check returns a cached response if the key was seen within the TTL.
func (s *SQLIdempotencyStore) Check(ctx context.Context, key string) (*CachedResponse, bool) {
	var (
		statusCode int
		headers    string
		body       string
		cachedAt   int64
	)
	err := s.db.QueryRowContext(ctx,
		s.dialect.Rebind(`SELECT status_code, headers, body, cached_at FROM idempotency_keys WHERE key = ?`),
		key,
	).Scan(&statusCode, &headers, &body, &cachedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "idempotency lookup failed", "error", err)
		}
		return nil, false
	}

	at := time.Unix(0, cachedAt)
	if s.clock().Sub(at) > s.ttl {
		return nil, false
	}

	hdr := make(http.Header)
	if err := json.Unmarshal([]byte(headers), &hdr); err != nil {
		s.logger.WarnContext(ctx, "idempotency headers corrupt", "error", err)
		return nil, false
	}
	return &CachedResponse{StatusCode: statusCode, Headers: hdr, Body: []byte(body), CachedAt: at}, true
}

// Set stores a response. Failures are logged; the request already succeeded.
func (s *SQLIdempotencyStore) Set(ctx context.Context, key string, resp CachedResponse) {
	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		s.logger.WarnContext(ctx, "idempotency headers unencodable", "error", err)
		return
	}
	_, err = s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO idempotency_keys (key, status_code, headers, body, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET status_code = excluded.status_code, headers = excluded.headers,
			body = excluded.body, cached_at = excluded.cached_at`),
		key, resp.StatusCode, string(headers), string(resp.Body), s.clock().UnixNano(),
	)
	if err != nil {
		s.logger.WarnContext(ctx, "idempotency store failed", "error", err)
	}
}

// Cleanup removes keys older than the TTL.
func (s *SQLIdempotencyStore) Cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.dialect.Rebind(`DELETE FROM idempotency_keys WHERE cached_at < ?`),
		s.clock().Add(-s.ttl).UnixNano(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
