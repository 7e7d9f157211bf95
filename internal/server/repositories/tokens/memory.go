package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/oklog/ulid/v2"
)

// MemoryRepository is the in-process ledger store. LockKey is a no-op: the
// memory transactor already runs one transaction at a time.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows []*models.IssuedToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) LockKey(context.Context, string, models.TokenPurpose) error {
	return nil
}

func (r *MemoryRepository) RevokeActive(_ context.Context, accountID string, purpose models.TokenPurpose, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.rows {
		if t.AccountID == accountID && t.Purpose == purpose && !t.Revoked {
			revoke(t, at)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Create(_ context.Context, token *models.IssuedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !token.Revoked {
		for _, t := range r.rows {
			if t.AccountID == token.AccountID && t.Purpose == token.Purpose && !t.Revoked {
				return ErrActiveExists
			}
		}
	}
	if token.ID == "" {
		token.ID = ulid.Make().String()
	}

	c := *token
	r.rows = append(r.rows, &c)
	return nil
}

func (r *MemoryRepository) FindByHash(_ context.Context, hash string) (*models.IssuedToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.IssuedToken
	for _, t := range r.rows {
		if t.TokenHash != hash {
			continue
		}
		if found == nil || !t.IssuedAt.Before(found.IssuedAt) {
			found = t
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}

	c := *found
	if found.RevokedAt != nil {
		at := *found.RevokedAt
		c.RevokedAt = &at
	}
	return &c, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, hash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, t := range r.rows {
		if t.TokenHash == hash && !t.Revoked {
			revoke(t, at)
			changed = true
		}
	}
	return changed, nil
}

func (r *MemoryRepository) CountActive(_ context.Context, accountID string, purpose models.TokenPurpose) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, t := range r.rows {
		if t.AccountID == accountID && t.Purpose == purpose && !t.Revoked {
			n++
		}
	}
	return n, nil
}

func revoke(t *models.IssuedToken, at time.Time) {
	t.Revoked = true
	t.RevokedAt = &at
}
