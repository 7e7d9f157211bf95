package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// LockKey takes a transaction-scoped advisory lock. Outside a transaction
// the lock is released as soon as the statement completes.
func (r *PostgresRepository) LockKey(ctx context.Context, accountID string, purpose models.TokenPurpose) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	if _, err := r.db.ExecContext(ctx, query, accountID+":"+string(purpose)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeActive(ctx context.Context, accountID string, purpose models.TokenPurpose, at time.Time) (int64, error) {
	query := `
		UPDATE issued_tokens SET revoked = TRUE, revoked_at = $3
		WHERE account_id = $1 AND purpose = $2 AND NOT revoked
	`
	res, err := r.db.ExecContext(ctx, query, accountID, string(purpose), at)
	if err != nil {
		return 0, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.IssuedToken) error {
	if token.ID == "" {
		token.ID = ulid.Make().String()
	}

	query := `
		INSERT INTO issued_tokens (id, account_id, purpose, token_hash, revoked, issued_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var revokedAt sql.NullTime
	if token.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *token.RevokedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.AccountID, string(token.Purpose), token.TokenHash, token.Revoked, token.IssuedAt, revokedAt,
	)
	if err != nil {
		return translate(err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.IssuedToken, error) {
	query := `
		SELECT id, account_id, purpose, token_hash, revoked, issued_at, revoked_at
		FROM issued_tokens
		WHERE token_hash = $1
		ORDER BY issued_at DESC
		LIMIT 1
	`
	var (
		t         models.IssuedToken
		purpose   string
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&t.ID, &t.AccountID, &purpose, &t.TokenHash, &t.Revoked, &t.IssuedAt, &revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, translate(err)
	}

	t.Purpose = models.TokenPurpose(purpose)
	if revokedAt.Valid {
		at := revokedAt.Time.UTC()
		t.RevokedAt = &at
	}
	return &t, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, hash string, at time.Time) (bool, error) {
	query := `UPDATE issued_tokens SET revoked = TRUE, revoked_at = $2 WHERE token_hash = $1 AND NOT revoked`

	res, err := r.db.ExecContext(ctx, query, hash, at)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) CountActive(ctx context.Context, accountID string, purpose models.TokenPurpose) (int, error) {
	query := `SELECT COUNT(*) FROM issued_tokens WHERE account_id = $1 AND purpose = $2 AND NOT revoked`

	var n int
	if err := r.db.QueryRowContext(ctx, query, accountID, string(purpose)).Scan(&n); err != nil {
		err = translate(err)
		if errors.Is(err, common.ErrorNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrActiveExists
		case pgerrcode.InvalidTextRepresentation:
			return common.ErrorNotFound
		}
	}
	return fmt.Errorf("db error: %w", err)
}
