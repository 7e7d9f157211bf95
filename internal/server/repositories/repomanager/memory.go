package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
)

// MemoryRepositoryManager hands out the same process-local stores for every
// handle. Pair it with dbx.MemoryTransactor.
type MemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
	tokens   *tokens.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		accounts: accounts.NewMemoryRepository(),
		tokens:   tokens.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) Accounts(dbx.DBTX) accounts.Repository { return m.accounts }

func (m *MemoryRepositoryManager) Tokens(dbx.DBTX) tokens.Repository { return m.tokens }

// RunMigrations is a no-op; there is no schema.
func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }
