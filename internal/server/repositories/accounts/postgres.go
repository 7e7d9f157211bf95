package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

const selectColumns = `id, email, password_hash, role, enabled, verification_code, verification_expires_at, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	query := `
		INSERT INTO users (id, email, password_hash, role, enabled, verification_code, verification_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.PasswordHash, string(account.Role), account.Enabled,
		nullString(account.VerificationCode), nullTime(account.VerificationExpiresAt),
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}

	return account, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *PostgresRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, query, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

func (r *PostgresRepository) Save(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO users (id, email, password_hash, role, enabled, verification_code, verification_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			enabled = EXCLUDED.enabled,
			verification_code = EXCLUDED.verification_code,
			verification_expires_at = EXCLUDED.verification_expires_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.PasswordHash, string(account.Role), account.Enabled,
		nullString(account.VerificationCode), nullTime(account.VerificationExpiresAt),
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return translate(err)
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg string) (*models.Account, error) {
	var (
		a       models.Account
		role    string
		code    sql.NullString
		expires sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &role, &a.Enabled, &code, &expires, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, translate(err)
	}

	a.Role = models.Role(role)
	if code.Valid {
		a.VerificationCode = &code.String
	}
	if expires.Valid {
		t := expires.Time.UTC()
		a.VerificationExpiresAt = &t
	}
	return &a, nil
}

// translate maps driver errors onto the repository contract.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return common.ErrDuplicateAccount
		case pgerrcode.InvalidTextRepresentation:
			// a malformed uuid can never match a row
			return common.ErrorNotFound
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
