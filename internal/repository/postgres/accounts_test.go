package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/repository"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestAccountRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	code := "482910"
	expiry := now.Add(10 * time.Minute)
	account := domain.Account{
		ID:           "acct-1",
		FullName:     "Alice",
		Email:        "a@u.edu",
		PasswordHash: "hash",
		PendingOTP:   &code,
		OTPExpiresAt: &expiry,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO identity\.accounts`).
		WithArgs("acct-1", "Alice", "a@u.edu", "hash", false, &code, &expiry, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_CreateDuplicateEmail(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	mock.ExpectExec(`INSERT INTO identity\.accounts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := repo.Create(context.Background(), domain.Account{ID: "acct-2", Email: "a@u.edu"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAccountRepository_FindByEmail(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(10 * time.Minute)

	rows := pgxmock.NewRows(accountColumns).
		AddRow("acct-1", "Alice", "a@u.edu", "hash", false, "482910", expiry, now, now)

	mock.ExpectQuery(`SELECT (.+) FROM identity\.accounts WHERE email = \$1 LIMIT 1$`).
		WithArgs("a@u.edu").
		WillReturnRows(rows)

	account, err := repo.FindByEmail(context.Background(), "a@u.edu")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if account.ID != "acct-1" || account.Email != "a@u.edu" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if !account.HasPendingOTP() || *account.PendingOTP != "482910" || !account.OTPExpiresAt.Equal(expiry) {
		t.Fatalf("expected pending otp to be loaded, got %+v", account)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByIDNullOTP(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(accountColumns).
		AddRow("acct-1", "Alice", "a@u.edu", "hash", true, nil, nil, now, now)

	mock.ExpectQuery(`SELECT (.+) FROM identity\.accounts WHERE id = \$1`).
		WithArgs("acct-1").
		WillReturnRows(rows)

	account, err := repo.FindByID(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if !account.IsVerified || account.HasPendingOTP() {
		t.Fatalf("unexpected account state: %+v", account)
	}
}

func TestAccountRepository_FindNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	mock.ExpectQuery(`SELECT (.+) FROM identity\.accounts WHERE email = \$1`).
		WithArgs("missing@u.edu").
		WillReturnRows(pgxmock.NewRows(accountColumns))

	if _, err := repo.FindByEmail(context.Background(), "missing@u.edu"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountRepository_UpdateClearsOTP(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	verified := true
	mock.ExpectExec(`UPDATE identity\.accounts SET is_verified = \$1, pending_otp = \$2, otp_expires_at = \$3, updated_at = NOW\(\) WHERE id = \$4`).
		WithArgs(true, nil, nil, "acct-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Update(context.Background(), "acct-1", domain.AccountPatch{IsVerified: &verified, ClearOTP: true}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdateMissingRow(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	hash := "new-hash"
	mock.ExpectExec(`UPDATE identity\.accounts SET password_hash = \$1`).
		WithArgs("new-hash", "acct-9").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), "acct-9", domain.AccountPatch{PasswordHash: &hash})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountRepository_UpdateRejectsHalfOTP(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	code := "123456"
	err := repo.Update(context.Background(), "acct-1", domain.AccountPatch{PendingOTP: &code})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected no statements, got %v", err)
	}
}

func TestTransactor_CommitsAndLocks(t *testing.T) {
	mock := newMockPool(t)
	tx := NewTransactor(mock, nil)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM identity\.accounts WHERE email = \$1 LIMIT 1 FOR UPDATE`).
		WithArgs("a@u.edu").
		WillReturnRows(pgxmock.NewRows(accountColumns).
			AddRow("acct-1", "Alice", "a@u.edu", "hash", false, "482910", now.Add(time.Minute), now, now))
	mock.ExpectExec(`UPDATE identity\.accounts`).
		WithArgs(true, nil, nil, "acct-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := tx.WithinTx(context.Background(), func(ctx context.Context, accounts port.AccountRepository) error {
		account, err := accounts.FindByEmailForUpdate(ctx, "a@u.edu")
		if err != nil {
			return err
		}
		verified := true
		return accounts.Update(ctx, account.ID, domain.AccountPatch{IsVerified: &verified, ClearOTP: true})
	})
	if err != nil {
		t.Fatalf("WithinTx returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	mock := newMockPool(t)
	tx := NewTransactor(mock, nil)

	sentinel := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tx.WithinTx(context.Background(), func(context.Context, port.AccountRepository) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_EmptyUpdateChecksExistence(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	mock.ExpectQuery(`SELECT 1 FROM identity\.accounts WHERE id = \$1`).
		WithArgs("6f1c2a9e-4d3b-4a8e-9b7a-2f9d1c0e5a41").
		WillReturnRows(mock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM identity\.accounts WHERE id = \$1`).
		WithArgs("0b8e7d6c-5a4f-4e3d-8c2b-1a0f9e8d7c6b").
		WillReturnRows(mock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(`SELECT 1 FROM identity\.accounts WHERE id = \$1`).
		WithArgs("acct-9").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation})

	if err := repo.Update(context.Background(), "6f1c2a9e-4d3b-4a8e-9b7a-2f9d1c0e5a41", domain.AccountPatch{}); err != nil {
		t.Fatalf("expected no error for an existing row, got %v", err)
	}
	if err := repo.Update(context.Background(), "0b8e7d6c-5a4f-4e3d-8c2b-1a0f9e8d7c6b", domain.AccountPatch{}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing row, got %v", err)
	}
	if err := repo.Update(context.Background(), "acct-9", domain.AccountPatch{}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a malformed id, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByMalformedID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM identity\.accounts WHERE id = \$1 LIMIT 1`).
		WithArgs("not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation})

	if _, err := repo.FindByID(context.Background(), "not-a-uuid"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
