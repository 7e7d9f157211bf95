package accounts

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in process memory. It is safe for
// concurrent use; FindByIDForUpdate takes no row lock, callers are expected
// to run inside the memory transactor, which serialises transactions.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.Account
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.Account),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[account.Email]; taken {
		return nil, common.ErrDuplicateAccount
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if _, taken := r.byID[account.ID]; taken {
		return nil, common.ErrDuplicateAccount
	}

	r.byID[account.ID] = account.Clone()
	r.byEmail[account.Email] = account.ID
	return account, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.Account, error) {
	return r.FindByID(ctx, id)
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *MemoryRepository) Save(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, taken := r.byEmail[account.Email]; taken && owner != account.ID {
		return common.ErrDuplicateAccount
	}
	if prev, ok := r.byID[account.ID]; ok && prev.Email != account.Email {
		delete(r.byEmail, prev.Email)
	}

	r.byID[account.ID] = account.Clone()
	r.byEmail[account.Email] = account.ID
	return nil
}
