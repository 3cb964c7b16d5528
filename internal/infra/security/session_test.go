package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joyebene/unimart-backend/internal/infra/config"
)

func newTestIssuer(t *testing.T, now *time.Time) *SessionIssuer {
	t.Helper()
	issuer, err := NewSessionIssuer(config.SessionSettings{Secret: "test-secret", Issuer: "unimart-identity"})
	if err != nil {
		t.Fatalf("NewSessionIssuer returned error: %v", err)
	}
	return issuer.WithClock(func() time.Time { return *now })
}

func TestNewSessionIssuerRequiresSecret(t *testing.T) {
	_, err := NewSessionIssuer(config.SessionSettings{Secret: "  "})
	if !errors.Is(err, ErrSessionSecretMissing) {
		t.Fatalf("expected ErrSessionSecretMissing, got %v", err)
	}
}

func TestSessionIssueVerifyRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)

	token, expiresAt, err := issuer.Issue("acct-1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if want := now.Add(7 * 24 * time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, expiresAt)
	}

	now = now.Add(7*24*time.Hour - time.Minute)
	accountID, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error inside validity window: %v", err)
	}
	if accountID != "acct-1" {
		t.Fatalf("expected acct-1, got %q", accountID)
	}
}

func TestSessionVerifyExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)

	token, _, err := issuer.Issue("acct-1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	now = now.Add(7*24*time.Hour + time.Second)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected ErrSessionTokenInvalid for expired token, got %v", err)
	}
}

func TestSessionVerifyRejectsForeignSignature(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)

	other, err := NewSessionIssuer(config.SessionSettings{Secret: "other-secret", Issuer: "unimart-identity"})
	if err != nil {
		t.Fatalf("NewSessionIssuer returned error: %v", err)
	}
	other.WithClock(func() time.Time { return now })

	token, _, err := other.Issue("acct-1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := issuer.Verify(token); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected ErrSessionTokenInvalid for foreign signature, got %v", err)
	}
}

func TestSessionVerifyRejectsTamperedAndUnsignedTokens(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)

	token, _, err := issuer.Issue("acct-1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "acct-1",
		Issuer:    "unimart-identity",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := issuer.Verify(raw); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected alg=none token to fail, got %v", err)
	}

	if _, err := issuer.Verify("not-a-token"); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected malformed token to fail, got %v", err)
	}
}
