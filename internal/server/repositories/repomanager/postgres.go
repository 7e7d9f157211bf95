package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/migrations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Tokens(db dbx.DBTX) tokens.Repository {
	return tokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
