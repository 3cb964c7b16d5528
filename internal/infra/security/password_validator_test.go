package security

import (
	"errors"
	"testing"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/joyebene/unimart-backend/internal/infra/config"
)

func TestDefaultPasswordValidatorSuccess(t *testing.T) {
	validator := DefaultPasswordValidator()

	password := "C0mplex!Passphrase#2025"
	if strength := zxcvbn.PasswordStrength(password, nil); strength.Score < defaultMinZxcvbnScore {
		t.Fatalf("test password unexpectedly weak: score=%d", strength.Score)
	}
	if err := validator.Validate(password, "alice@uni.edu"); err != nil {
		t.Fatalf("expected password to pass validation, got %v", err)
	}
}

func TestDefaultPasswordValidatorViolations(t *testing.T) {
	validator := DefaultPasswordValidator()

	assertViolation := func(password, expectedCode string, inputs ...string) {
		t.Helper()
		err := validator.Validate(password, inputs...)
		if err == nil {
			t.Fatalf("expected validation error for %s", expectedCode)
		}
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected PasswordValidationError, got %T", err)
		}
		if vErr.Code != expectedCode {
			t.Fatalf("expected %s code, got %s", expectedCode, vErr.Code)
		}
	}

	assertViolation("Short1!", "min_length")
	assertViolation("lowercasepassword", "character_classes")
	assertViolation("alice@uni.edu", "matches_account_details", "Alice", "alice@uni.edu")
	assertViolation("password1", "weak_password")
}

func TestNewPasswordPolicyFromSettings(t *testing.T) {
	lenient := NewPasswordPolicy(config.PasswordSettings{})
	if err := lenient.Validate("pw1"); err != nil {
		t.Fatalf("expected lenient policy to accept short password, got %v", err)
	}
	if err := lenient.Validate(""); err == nil {
		t.Fatal("expected empty password to be rejected")
	}

	strict := NewPasswordPolicy(config.PasswordSettings{MinLength: 12, MinCharacterClasses: 3, MinStrength: 3})
	if err := strict.Validate("pw1"); err == nil {
		t.Fatal("expected strict policy to reject short password")
	}
}

func TestMaxLengthRule(t *testing.T) {
	validator := NewPasswordValidator(MaxLengthRule(4))
	if err := validator.Validate("abcd"); err != nil {
		t.Fatalf("expected 4 characters to pass, got %v", err)
	}
	if err := validator.Validate("abcde"); err == nil {
		t.Fatal("expected 5 characters to fail")
	}
}
