package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

type storage struct {
	db    *sql.DB
	tx    dbx.Transactor
	repos repomanager.RepositoryManager
}

func (s *storage) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// pingBackoff bounds how long startup waits for PostgreSQL.
var pingBackoff = func() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

func openStorage(ctx context.Context, c *config.Config, logger logging.Logger) (*storage, error) {
	if c.StorageBackend == config.StorageMemory {
		logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		return &storage{
			tx:    dbx.NewMemoryTransactor(),
			repos: repomanager.NewMemoryRepositoryManager(),
		}, nil
	}

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	err = retry.Do(ctx, pingBackoff(), func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn(ctx, "database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &storage{db: db, tx: dbx.NewSQLTransactor(db), repos: repos}, nil
}
