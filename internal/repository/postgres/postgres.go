package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/port"
)

const accountsTable = "identity.accounts"

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Transactor implements port.AccountTransactor with a pgx transaction per unit of work.
type Transactor struct {
	db       DB
	accounts *AccountRepository
	logger   *zap.Logger
}

// NewTransactor constructs a Transactor over db.
func NewTransactor(db DB, logger *zap.Logger) *Transactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transactor{db: db, accounts: NewAccountRepository(db), logger: logger}
}

// WithinTx runs fn in a transaction, committing on success and rolling back on error or panic.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, accounts port.AccountRepository) error) (err error) {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				t.logger.Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(ctx, t.accounts.WithTx(tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

var _ port.AccountTransactor = (*Transactor)(nil)
