// Package tokens declares the storage contract for the issued-token ledger.
package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// ErrActiveExists is returned by Create when the (account, purpose) pair
// already has an unrevoked row.
var ErrActiveExists = errors.New("active token already exists")

// Repository stores issued tokens. Rows are never deleted.
type Repository interface {
	// LockKey serialises concurrent rotations of one (account, purpose) pair
	// until the surrounding transaction ends.
	LockKey(ctx context.Context, accountID string, purpose models.TokenPurpose) error

	// RevokeActive marks every unrevoked row of the pair revoked at the given
	// instant and reports how many rows changed.
	RevokeActive(ctx context.Context, accountID string, purpose models.TokenPurpose, at time.Time) (int64, error)

	// Create inserts a new unrevoked row. An empty ID is filled in.
	Create(ctx context.Context, token *models.IssuedToken) error

	// FindByHash returns the most recently issued row with the given hash,
	// or common.ErrorNotFound.
	FindByHash(ctx context.Context, hash string) (*models.IssuedToken, error)

	// Revoke marks the row with the given hash revoked. It reports false if
	// no unrevoked row matched.
	Revoke(ctx context.Context, hash string, at time.Time) (bool, error)

	// CountActive returns the number of unrevoked rows of the pair.
	CountActive(ctx context.Context, accountID string, purpose models.TokenPurpose) (int, error)
}
