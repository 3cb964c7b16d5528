package security

import (
	"strconv"
	"testing"
	"time"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/infra/config"
)

func TestOTPGenerateRange(t *testing.T) {
	policy := DefaultOTPPolicy()
	for i := 0; i < 1000; i++ {
		code, err := policy.Generate()
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("code is not numeric: %q", code)
		}
		if n < otpMin || n > otpMax {
			t.Fatalf("code %d outside [%d, %d]", n, otpMin, otpMax)
		}
	}
}

func TestOTPExpiryFor(t *testing.T) {
	policy := DefaultOTPPolicy()

	cases := map[domain.OTPPurpose]time.Duration{
		domain.OTPPurposeRegister:       10 * time.Minute,
		domain.OTPPurposeForgotPassword: 10 * time.Minute,
		domain.OTPPurposeResend:         5 * time.Minute,
		domain.OTPPurpose("other"):      10 * time.Minute,
	}
	for purpose, want := range cases {
		if got := policy.ExpiryFor(purpose); got != want {
			t.Fatalf("ExpiryFor(%s) = %s, want %s", purpose, got, want)
		}
	}
}

func TestOTPPolicyFromSettings(t *testing.T) {
	policy := NewOTPPolicy(config.OTPSettings{ResendTTL: time.Minute})
	if got := policy.ExpiryFor(domain.OTPPurposeResend); got != time.Minute {
		t.Fatalf("expected configured resend ttl, got %s", got)
	}
	if got := policy.ExpiryFor(domain.OTPPurposeRegister); got != 10*time.Minute {
		t.Fatalf("expected default register ttl, got %s", got)
	}
}

func TestOTPIsValid(t *testing.T) {
	policy := DefaultOTPPolicy()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	code := "482910"
	expiry := now.Add(10 * time.Minute)

	if !policy.IsValid(&code, &expiry, "482910", now) {
		t.Fatal("expected matching code before expiry to be valid")
	}
	if policy.IsValid(&code, &expiry, "482911", now) {
		t.Fatal("expected mismatched code to be invalid")
	}
	if policy.IsValid(&code, &expiry, " 482910", now) {
		t.Fatal("expected supplied code not to be normalised")
	}
	if policy.IsValid(&code, &expiry, "482910", expiry) {
		t.Fatal("expected code to be invalid at the expiry instant")
	}
	if policy.IsValid(&code, &expiry, "482910", expiry.Add(time.Second)) {
		t.Fatal("expected code to be invalid after expiry")
	}
	if policy.IsValid(nil, &expiry, "482910", now) {
		t.Fatal("expected missing stored code to be invalid")
	}
	if policy.IsValid(&code, nil, "482910", now) {
		t.Fatal("expected missing expiry to be invalid")
	}
}
