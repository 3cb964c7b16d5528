package port

import (
	"time"

	"github.com/joyebene/unimart-backend/internal/core/domain"
)

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string, userInputs ...string) error
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
	// NeedsRehash reports whether encoded was produced by a superseded algorithm or parameter set.
	NeedsRehash(encoded string) bool
}

// OTPPolicy produces one-time passwords and decides their validity.
type OTPPolicy interface {
	Generate() (string, error)
	ExpiryFor(purpose domain.OTPPurpose) time.Duration
	IsValid(stored *string, expiry *time.Time, supplied string, now time.Time) bool
}

// SessionIssuer mints and verifies signed session tokens.
type SessionIssuer interface {
	Issue(accountID string) (token string, expiresAt time.Time, err error)
	Verify(token string) (accountID string, err error)
}
