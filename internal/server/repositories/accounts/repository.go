// Package accounts declares the account store contract and its PostgreSQL
// and in-memory implementations.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists accounts. Lookups that match nothing return
// common.ErrorNotFound; an email already taken returns
// common.ErrDuplicateAccount.
type Repository interface {
	// Create stores a new account and returns it with its ID assigned.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	// FindByID returns the account with the given ID.
	FindByID(ctx context.Context, id string) (*models.Account, error)

	// FindByIDForUpdate is FindByID that also locks the row until the
	// surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (*models.Account, error)

	// FindByEmail returns the account registered with the exact email.
	FindByEmail(ctx context.Context, email string) (*models.Account, error)

	// Save upserts the account by ID.
	Save(ctx context.Context, account *models.Account) error
}
