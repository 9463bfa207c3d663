package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

func TestDialect_Rebind(t *testing.T) {
	q := "UPDATE t SET a = ?, b = ? WHERE id = ?"
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", DialectPostgres.Rebind(q))
	assert.Equal(t, q, DialectSQLite.Rebind(q))
}

func mockRepo(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLRepository(db, DialectPostgres)
	repo.clock = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return repo, mock
}

func sampleRecord() *Record {
	return &Record{Request: contracts.AuthorizationRequest{
		ID:              "req-1",
		OrganizationID:  "org-1",
		ApplicationName: "Fraud Scorer",
		Status:          contracts.RequestDraft,
	}}
}

func TestSQLRepository_Init(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS authorization_requests").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_Create(t *testing.T) {
	repo, mock := mockRepo(t)
	rec := sampleRecord()

	mock.ExpectExec(`INSERT INTO authorization_requests .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)`).
		WithArgs("req-1", "org-1", "Fraud Scorer", "DRAFT", int64(1), sqlmock.AnyArg(), "2026-06-01T00:00:00.000000000Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	assert.Equal(t, int64(1), rec.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_CreateDuplicate(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectExec("INSERT INTO authorization_requests").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, ErrExists)
}

func TestSQLRepository_LoadNotFound(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectQuery(`SELECT document, version FROM authorization_requests WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"document", "version"}))

	_, err := repo.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestSQLRepository_Load(t *testing.T) {
	repo, mock := mockRepo(t)
	doc := `{"request":{"id":"req-1","organization_id":"org-1","status":"DRAFT"},"approvals":[],"conditions":[],"audit_log":[],"version":3}`
	mock.ExpectQuery("SELECT document, version FROM authorization_requests").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"document", "version"}).AddRow(doc, int64(4)))

	rec, err := repo.Load(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", rec.Request.OrganizationID)
	assert.Equal(t, int64(4), rec.Version, "column version wins over document")
}

func TestSQLRepository_SaveOptimistic(t *testing.T) {
	repo, mock := mockRepo(t)
	rec := sampleRecord()
	rec.Version = 2

	mock.ExpectExec(`UPDATE authorization_requests\s+SET status = \$1, version = \$2, document = \$3, updated_at = \$4\s+WHERE id = \$5 AND version = \$6`).
		WithArgs("DRAFT", int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), "req-1", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), rec))
	assert.Equal(t, int64(3), rec.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_SaveConflict(t *testing.T) {
	repo, mock := mockRepo(t)
	rec := sampleRecord()
	rec.Version = 2

	mock.ExpectExec("UPDATE authorization_requests").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM authorization_requests WHERE id = \$1`).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(5)))

	err := repo.Save(context.Background(), rec)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, int64(2), rec.Version, "version unchanged on conflict")
}

func TestSQLRepository_ListFilters(t *testing.T) {
	repo, mock := mockRepo(t)
	mock.ExpectQuery(`SELECT document, version FROM authorization_requests WHERE organization_id = \$1 AND status = \$2 ORDER BY updated_at DESC, id ASC LIMIT \$3`).
		WithArgs("org-1", "APPROVED", 10).
		WillReturnRows(sqlmock.NewRows([]string{"document", "version"}).
			AddRow(`{"request":{"id":"req-9","status":"APPROVED"},"audit_log":[]}`, int64(7)))

	recs, err := repo.List(context.Background(), ListFilter{OrganizationID: "org-1", Status: contracts.RequestApproved, Limit: 10})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "req-9", recs[0].ID())
	assert.Equal(t, int64(7), recs[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
