package tokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var tokenColumns = []string{"id", "account_id", "purpose", "token_hash", "revoked", "issued_at", "revoked_at"}

func TestLockKey(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^SELECT\s+pg_advisory_xact_lock\(hashtextextended\(\$1,\s*0\)\)$`
	mock.ExpectExec(q).WithArgs("u1:REFRESH").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.LockKey(context.Background(), "u1", models.PurposeRefresh))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := `(?s)UPDATE\s+issued_tokens\s+SET\s+revoked\s*=\s*TRUE,\s*revoked_at\s*=\s*\$3\s+WHERE\s+account_id\s*=\s*\$1\s+AND\s+purpose\s*=\s*\$2\s+AND\s+NOT\s+revoked`
	mock.ExpectExec(q).WithArgs("u1", "ACCESS", at).WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.RevokeActive(context.Background(), "u1", models.PurposeAccess, at)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRevokeActive_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+issued_tokens`).WillReturnError(errors.New("db down"))

	_, err := repo.RevokeActive(context.Background(), "u1", models.PurposeAccess, time.Now())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := `(?s)^\s*INSERT\s+INTO\s+issued_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*$`
	mock.ExpectExec(q).
		WithArgs(sqlmock.AnyArg(), "u1", "REFRESH", "abc", false, at, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tok := &models.IssuedToken{AccountID: "u1", Purpose: models.PurposeRefresh, TokenHash: "abc", IssuedAt: at}
	require.NoError(t, repo.Create(context.Background(), tok))
	assert.Len(t, tok.ID, 26, "ulid assigned")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ActiveExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+issued_tokens`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "issued_tokens_one_active_idx"})

	err := repo.Create(context.Background(), &models.IssuedToken{ID: "t1", AccountID: "u1", Purpose: models.PurposeAccess})
	assert.ErrorIs(t, err, ErrActiveExists)
}

func TestFindByHash_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	revoked := issued.Add(time.Minute)
	q := `(?s)FROM\s+issued_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s+ORDER\s+BY\s+issued_at\s+DESC\s+LIMIT\s+1`
	rows := sqlmock.NewRows(tokenColumns).AddRow("t1", "u1", "ACCESS", "abc", true, issued, revoked)
	mock.ExpectQuery(q).WithArgs("abc").WillReturnRows(rows)

	got, err := repo.FindByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, models.PurposeAccess, got.Purpose)
	assert.True(t, got.Revoked)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, revoked.Equal(*got.RevokedAt))
}

func TestFindByHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+issued_tokens`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRevoke(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^UPDATE\s+issued_tokens\s+SET\s+revoked\s*=\s*TRUE,\s*revoked_at\s*=\s*\$2\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+NOT\s+revoked$`
	mock.ExpectExec(q).WithArgs("abc", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("abc", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.Revoke(context.Background(), "abc", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Revoke(context.Background(), "abc", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCountActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^SELECT\s+COUNT\(\*\)\s+FROM\s+issued_tokens\s+WHERE\s+account_id\s*=\s*\$1\s+AND\s+purpose\s*=\s*\$2\s+AND\s+NOT\s+revoked$`
	mock.ExpectQuery(q).WithArgs("u1", "REFRESH").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(q).WithArgs("bad", "REFRESH").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation})

	n, err := repo.CountActive(context.Background(), "u1", models.PurposeRefresh)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.CountActive(context.Background(), "bad", models.PurposeRefresh)
	require.NoError(t, err)
	assert.Zero(t, n)
}
