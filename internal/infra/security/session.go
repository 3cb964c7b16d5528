package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/config"
)

const defaultSessionTTL = 7 * 24 * time.Hour

var (
	// ErrSessionSecretMissing is returned when the issuer is built without a signing secret.
	ErrSessionSecretMissing = errors.New("session: signing secret is not configured")
	// ErrSessionTokenInvalid covers bad signatures, expired tokens and malformed claims.
	ErrSessionTokenInvalid = errors.New("session: token invalid")
)

// SessionClaims are the claims sealed into a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies HS256 session tokens bound to an account id.
type SessionIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer builds an issuer. An empty secret is a startup error.
func NewSessionIssuer(cfg config.SessionSettings) (*SessionIssuer, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrSessionSecretMissing
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionIssuer{
		secret: []byte(secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	if now != nil {
		s.now = now
	}
	return s
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue mints a token for accountID that expires after the configured TTL.
func (s *SessionIssuer) Issue(accountID string) (string, time.Time, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", time.Time{}, fmt.Errorf("session: account id is required")
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify checks the signature and expiry and returns the embedded account id.
func (s *SessionIssuer) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrSessionTokenInvalid
	}

	return claims.Subject, nil
}

var _ port.SessionIssuer = (*SessionIssuer)(nil)
