// Package memory provides an in-process credential store for local development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/repository"
)

type snapshot struct {
	byID    map[string]domain.Account
	byEmail map[string]string
}

func (s snapshot) clone() snapshot {
	c := snapshot{
		byID:    make(map[string]domain.Account, len(s.byID)),
		byEmail: make(map[string]string, len(s.byEmail)),
	}
	for id, account := range s.byID {
		c.byID[id] = copyAccount(account)
	}
	for email, id := range s.byEmail {
		c.byEmail[email] = id
	}
	return c
}

// AccountStore keeps accounts in memory. Writes are serialised; a transaction works on a
// private copy that replaces the shared state only when the unit of work succeeds.
type AccountStore struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	data    snapshot
	now     func() time.Time
}

// NewAccountStore returns an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		data: snapshot{byID: map[string]domain.Account{}, byEmail: map[string]string{}},
		now:  time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *AccountStore) WithClock(now func() time.Time) *AccountStore {
	if now != nil {
		s.now = now
	}
	return s
}

// FindByEmail retrieves an account by its exact email.
func (s *AccountStore) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByEmail(s.data, email)
}

// FindByID retrieves an account by identifier.
func (s *AccountStore) FindByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByID(s.data, id)
}

// FindByEmailForUpdate behaves like FindByEmail outside a transaction.
func (s *AccountStore) FindByEmailForUpdate(ctx context.Context, email string) (*domain.Account, error) {
	return s.FindByEmail(ctx, email)
}

// FindByIDForUpdate behaves like FindByID outside a transaction.
func (s *AccountStore) FindByIDForUpdate(ctx context.Context, id string) (*domain.Account, error) {
	return s.FindByID(ctx, id)
}

// Create inserts a new account.
func (s *AccountStore) Create(ctx context.Context, account domain.Account) error {
	return s.WithinTx(ctx, func(ctx context.Context, accounts port.AccountRepository) error {
		return accounts.Create(ctx, account)
	})
}

// Update applies patch to the account identified by id.
func (s *AccountStore) Update(ctx context.Context, id string, patch domain.AccountPatch) error {
	return s.WithinTx(ctx, func(ctx context.Context, accounts port.AccountRepository) error {
		return accounts.Update(ctx, id, patch)
	})
}

// WithinTx runs fn against a private copy of the store and publishes it if fn succeeds.
func (s *AccountStore) WithinTx(ctx context.Context, fn func(ctx context.Context, accounts port.AccountRepository) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	view := &txView{data: s.data.clone(), now: s.now}
	s.mu.RUnlock()

	if err := fn(ctx, view); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = view.data
	s.mu.Unlock()
	return nil
}

type txView struct {
	data snapshot
	now  func() time.Time
}

func (v *txView) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	return findByEmail(v.data, email)
}

func (v *txView) FindByID(_ context.Context, id string) (*domain.Account, error) {
	return findByID(v.data, id)
}

func (v *txView) FindByEmailForUpdate(ctx context.Context, email string) (*domain.Account, error) {
	return v.FindByEmail(ctx, email)
}

func (v *txView) FindByIDForUpdate(ctx context.Context, id string) (*domain.Account, error) {
	return v.FindByID(ctx, id)
}

func (v *txView) Create(_ context.Context, account domain.Account) error {
	if _, exists := v.data.byEmail[account.Email]; exists {
		return repository.ErrConflict
	}
	if _, exists := v.data.byID[account.ID]; exists {
		return repository.ErrConflict
	}
	v.data.byID[account.ID] = copyAccount(account)
	v.data.byEmail[account.Email] = account.ID
	return nil
}

func (v *txView) Update(_ context.Context, id string, patch domain.AccountPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	account, ok := v.data.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Empty() {
		return nil
	}
	v.data.byID[id] = patch.Apply(account, v.now().UTC())
	return nil
}

func findByEmail(data snapshot, email string) (*domain.Account, error) {
	id, ok := data.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return findByID(data, id)
}

func findByID(data snapshot, id string) (*domain.Account, error) {
	account, ok := data.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := copyAccount(account)
	return &copied, nil
}

func copyAccount(a domain.Account) domain.Account {
	if a.PendingOTP != nil {
		code := *a.PendingOTP
		a.PendingOTP = &code
	}
	if a.OTPExpiresAt != nil {
		expiry := *a.OTPExpiresAt
		a.OTPExpiresAt = &expiry
	}
	return a
}

var (
	_ port.AccountRepository = (*AccountStore)(nil)
	_ port.AccountTransactor = (*AccountStore)(nil)
)
