package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// updatedLayout is fixed-width so updated_at sorts lexically.
const updatedLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Dialect selects placeholder syntax.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// Rebind rewrites '?' placeholders to '$n' for Postgres.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLRepository implements Repository using database/sql.
// It supports both Postgres and SQLite via standard drivers. The aggregate is
// stored as a JSON document; indexed columns duplicate the fields List filters on.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	clock   func() time.Time
}

func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, clock: time.Now}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS authorization_requests (
	id TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	application_name TEXT NOT NULL,
	status TEXT NOT NULL,
	version BIGINT NOT NULL,
	document TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_authorization_requests_org_status
	ON authorization_requests (organization_id, status)`,
}

// Init creates the schema if missing.
func (s *SQLRepository) Init(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: schema init failed: %w", err)
		}
	}
	return nil
}

func (s *SQLRepository) Create(ctx context.Context, rec *Record) error {
	doc, updated, err := s.encode(rec, 1)
	if err != nil {
		return err
	}
	query := s.dialect.Rebind(`
		INSERT INTO authorization_requests (id, organization_id, application_name, status, version, document, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, query,
		rec.ID(), rec.Request.OrganizationID, rec.Request.ApplicationName, string(rec.Request.Status),
		int64(1), string(doc), updated,
	)
	if err != nil {
		return fmt.Errorf("store: failed to insert request %s: %w", rec.ID(), err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrExists, rec.ID())
	}
	s.commit(rec, 1, updated)
	return nil
}

func (s *SQLRepository) Load(ctx context.Context, id string) (*Record, error) {
	query := s.dialect.Rebind(`SELECT document, version FROM authorization_requests WHERE id = ?`)
	var (
		doc     string
		version int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", id, contracts.ErrNotFound)
		}
		return nil, fmt.Errorf("store: failed to load request %s: %w", id, err)
	}
	rec, err := decode([]byte(doc))
	if err != nil {
		return nil, err
	}
	rec.Version = version
	return rec, nil
}

func (s *SQLRepository) Save(ctx context.Context, rec *Record) error {
	next := rec.Version + 1
	doc, updated, err := s.encode(rec, next)
	if err != nil {
		return err
	}
	query := s.dialect.Rebind(`
		UPDATE authorization_requests
		SET status = ?, version = ?, document = ?, updated_at = ?
		WHERE id = ? AND version = ?`)
	res, err := s.db.ExecContext(ctx, query,
		string(rec.Request.Status), next, string(doc), updated, rec.ID(), rec.Version,
	)
	if err != nil {
		return fmt.Errorf("store: failed to update request %s: %w", rec.ID(), err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		var current int64
		err := s.db.QueryRowContext(ctx,
			s.dialect.Rebind(`SELECT version FROM authorization_requests WHERE id = ?`), rec.ID()).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("request %s: %w", rec.ID(), contracts.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: failed to read version of %s: %w", rec.ID(), err)
		}
		return fmt.Errorf("%w: request %s at version %d, have %d", ErrConflict, rec.ID(), current, rec.Version)
	}
	s.commit(rec, next, updated)
	return nil
}

func (s *SQLRepository) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := `SELECT document, version FROM authorization_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]*Record, 0)
	for rows.Next() {
		var (
			doc     string
			version int64
		)
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, err
		}
		rec, err := decode([]byte(doc))
		if err != nil {
			return nil, err
		}
		rec.Version = version
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// encode serializes rec as it will look once stored at version.
func (s *SQLRepository) encode(rec *Record, version int64) ([]byte, string, error) {
	now := s.clock().UTC()
	snapshot := *rec
	snapshot.Version = version
	snapshot.UpdatedAt = now
	doc, err := json.Marshal(&snapshot)
	if err != nil {
		return nil, "", fmt.Errorf("store: failed to encode request %s: %w", rec.ID(), err)
	}
	return doc, now.Format(updatedLayout), nil
}

func (s *SQLRepository) commit(rec *Record, version int64, updated string) {
	rec.Version = version
	if t, err := time.Parse(updatedLayout, updated); err == nil {
		rec.UpdatedAt = t
	}
}
