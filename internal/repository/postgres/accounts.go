package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/repository"
)

var accountColumns = []string{
	"id",
	"full_name",
	"email",
	"password_hash",
	"is_verified",
	"pending_otp",
	"otp_expires_at",
	"created_at",
	"updated_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{exec: tx, builder: r.builder}
}

// Create inserts a new account row.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.FullName,
			account.Email,
			account.PasswordHash,
			account.IsVerified,
			account.PendingOTP,
			account.OTPExpiresAt,
			account.CreatedAt,
			account.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// FindByEmail retrieves an account by its exact email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"email": email}, false)
}

// FindByID retrieves an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id}, false)
}

// FindByEmailForUpdate retrieves and row-locks an account by email.
func (r *AccountRepository) FindByEmailForUpdate(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"email": email}, true)
}

// FindByIDForUpdate retrieves and row-locks an account by identifier.
func (r *AccountRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id}, true)
}

func (r *AccountRepository) findOne(ctx context.Context, where squirrel.Eq, lock bool) (*domain.Account, error) {
	query := r.builder.Select(accountColumns...).
		From(accountsTable).
		Where(where).
		Limit(1)
	if lock {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	var (
		account    domain.Account
		pendingOTP sql.NullString
		otpExpiry  sql.NullTime
	)

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&account.ID,
		&account.FullName,
		&account.Email,
		&account.PasswordHash,
		&account.IsVerified,
		&pendingOTP,
		&otpExpiry,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || malformedID(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}

	if pendingOTP.Valid && otpExpiry.Valid {
		code := pendingOTP.String
		expiry := otpExpiry.Time.UTC()
		account.PendingOTP = &code
		account.OTPExpiresAt = &expiry
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()

	return &account, nil
}

// Update applies the non-nil fields of patch to the account identified by id.
func (r *AccountRepository) Update(ctx context.Context, id string, patch domain.AccountPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if patch.Empty() {
		return r.exists(ctx, id)
	}

	query := r.builder.Update(accountsTable)
	if patch.FullName != nil {
		query = query.Set("full_name", *patch.FullName)
	}
	if patch.PasswordHash != nil {
		query = query.Set("password_hash", *patch.PasswordHash)
	}
	if patch.IsVerified != nil {
		query = query.Set("is_verified", *patch.IsVerified)
	}
	switch {
	case patch.ClearOTP:
		query = query.Set("pending_otp", nil).Set("otp_expires_at", nil)
	case patch.PendingOTP != nil:
		query = query.Set("pending_otp", *patch.PendingOTP).Set("otp_expires_at", *patch.OTPExpiresAt)
	}

	stmt, args, err := query.
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if malformedID(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// exists reports repository.ErrNotFound unless a row with id is present.
func (r *AccountRepository) exists(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Select("1").
		From(accountsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build account exists sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || malformedID(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("check account exists: %w", err)
	}
	return nil
}

// malformedID reports whether postgres rejected an id that is not a uuid. No such account can exist.
func malformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

var _ port.AccountRepository = (*AccountRepository)(nil)
