// Package ledger records issued tokens and keeps at most one active token
// per (account, purpose).
package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

var rotateTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

type Ledger struct {
	tx    dbx.Transactor
	repos repomanager.RepositoryManager
	clock timex.Clock
}

func New(tx dbx.Transactor, repos repomanager.RepositoryManager, clock timex.Clock) *Ledger {
	return &Ledger{tx: tx, repos: repos, clock: clock}
}

// HashToken is the storage identity of a signed token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Rotate revokes every active token of (accountID, purpose) and records
// token as the single active one, in one transaction serialised per key.
func (l *Ledger) Rotate(ctx context.Context, accountID string, purpose models.TokenPurpose, token string) error {
	now := l.clock.Now()
	var revoked int64

	err := l.tx.WithTx(ctx, rotateTxOptions, func(ctx context.Context, tx dbx.DBTX) error {
		repo := l.repos.Tokens(tx)

		if err := repo.LockKey(ctx, accountID, purpose); err != nil {
			return err
		}

		n, err := repo.RevokeActive(ctx, accountID, purpose, now)
		if err != nil {
			return err
		}
		revoked = n

		return repo.Create(ctx, &models.IssuedToken{
			AccountID: accountID,
			Purpose:   purpose,
			TokenHash: HashToken(token),
			IssuedAt:  now,
		})
	})
	if err != nil {
		return fmt.Errorf("rotate %s token: %w", purpose, err)
	}

	metrics.RecordRevoked(string(purpose), revoked)
	return nil
}

// IsActive reports whether token was issued through Rotate and is not
// revoked. Unknown tokens are inactive.
func (l *Ledger) IsActive(ctx context.Context, token string) (bool, error) {
	row, err := l.repos.Tokens(l.tx.Conn()).FindByHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return !row.Revoked, nil
}

// Revoke marks token revoked. Unknown or already revoked tokens are a no-op;
// only storage failures are returned.
func (l *Ledger) Revoke(ctx context.Context, token string) error {
	hash := HashToken(token)
	repo := l.repos.Tokens(l.tx.Conn())

	row, err := repo.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}
	if row.Revoked {
		return nil
	}

	changed, err := repo.Revoke(ctx, hash, l.clock.Now())
	if err != nil {
		return err
	}
	if changed {
		metrics.RecordRevoked(string(row.Purpose), 1)
	}
	return nil
}

// ActiveCount returns how many unrevoked tokens (accountID, purpose) has.
func (l *Ledger) ActiveCount(ctx context.Context, accountID string, purpose models.TokenPurpose) (int, error) {
	return l.repos.Tokens(l.tx.Conn()).CountActive(ctx, accountID, purpose)
}
