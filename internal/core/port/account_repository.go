package port

import (
	"context"

	"github.com/joyebene/unimart-backend/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// FindByEmailForUpdate locks the matching row until the surrounding transaction ends.
	FindByEmailForUpdate(ctx context.Context, email string) (*domain.Account, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.Account, error)
	Create(ctx context.Context, account domain.Account) error
	Update(ctx context.Context, id string, patch domain.AccountPatch) error
}

// AccountTransactor runs a unit of work against the account store atomically.
type AccountTransactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, accounts AccountRepository) error) error
}
