// Package repomanager vends repositories bound to a DB handle and owns the
// schema migrations, so services can obtain transaction-scoped repos.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Tokens(db dbx.DBTX) tokens.Repository
}
