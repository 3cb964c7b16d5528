package security

import (
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/config"
)

const (
	defaultMinPasswordLength   = 8
	defaultMaxPasswordLength   = 128
	defaultMinCharacterClasses = 2
	defaultMinZxcvbnScore      = 2
)

// DefaultPasswordValidator returns the built-in validator with length, character class and zxcvbn strength checks.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		MaxLengthRule(defaultMaxPasswordLength),
		RequireCharacterClassesRule(defaultMinCharacterClasses),
		RejectUserInputsRule(),
		RequirePasswordStrengthRule(defaultMinZxcvbnScore),
	)
}

// NewPasswordPolicy builds the validator described by settings. Zero values disable a check,
// except MinLength which falls back to one character so empty passwords never pass.
func NewPasswordPolicy(cfg config.PasswordSettings) *PasswordValidator {
	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = 1
	}
	return NewPasswordValidator(
		MinLengthRule(minLength),
		MaxLengthRule(defaultMaxPasswordLength),
		RequireCharacterClassesRule(cfg.MinCharacterClasses),
		RejectUserInputsRule(),
		RequirePasswordStrengthRule(cfg.MinStrength),
	)
}

var _ port.PasswordPolicyValidator = (*PasswordValidator)(nil)
