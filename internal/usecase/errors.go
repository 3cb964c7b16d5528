package usecase

import (
	"errors"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/infra/security"
)

var (
	// ErrInvalidInput indicates a required field is missing or malformed.
	ErrInvalidInput = domain.NewError(domain.KindValidation, "invalid input")
	// ErrEmailTaken indicates the email is already bound to an account.
	ErrEmailTaken = domain.NewError(domain.KindValidation, "email is already registered")
	// ErrInvalidOTPPurpose indicates an OTP purpose other than register or forgot-password.
	ErrInvalidOTPPurpose = domain.NewError(domain.KindValidation, "otp purpose must be register or forgot-password")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = domain.NewError(domain.KindValidation, "password does not meet complexity requirements")
	// ErrNotFound indicates no account matches the supplied email.
	ErrNotFound = domain.NewError(domain.KindNotFound, "account not found")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = domain.NewError(domain.KindInvalidCredentials, "invalid email or password")
	// ErrEmailNotVerified indicates the credential matched an account that has not confirmed its email.
	ErrEmailNotVerified = domain.NewError(domain.KindEmailNotVerified, "email address is not verified")
	// ErrInvalidOrExpiredOTP indicates the supplied code does not match or has expired.
	ErrInvalidOrExpiredOTP = domain.NewError(domain.KindInvalidOrExpiredOTP, "otp is invalid or expired")
	// ErrAlreadyVerified indicates the account has already completed verification.
	ErrAlreadyVerified = domain.NewError(domain.KindAlreadyVerified, "account is already verified")
	// ErrIncorrectPassword indicates the current password supplied to a change does not match.
	ErrIncorrectPassword = domain.NewError(domain.KindIncorrectPassword, "current password is incorrect")
	// ErrUnauthorized indicates the bearer token is missing.
	ErrUnauthorized = domain.NewError(domain.KindUnauthorized, "authentication required")
	// ErrInvalidToken indicates the session token failed signature or expiry checks.
	ErrInvalidToken = domain.NewError(domain.KindInvalidToken, "session token is invalid or expired")
	// ErrAccountNotFound indicates a verified session refers to an account that no longer exists.
	ErrAccountNotFound = domain.NewError(domain.KindAccountNotFound, "account no longer exists")
	// ErrDeliveryFailure indicates the notification gateway could not deliver the OTP.
	ErrDeliveryFailure = domain.NewError(domain.KindDeliveryFailure, "failed to deliver one-time password")
)

// policyError converts a password policy failure into a validation error carrying the rule message.
func policyError(err error) error {
	var pve *security.PasswordValidationError
	if errors.As(err, &pve) && pve != nil {
		return &domain.Error{Kind: domain.KindValidation, Message: pve.Message, Err: ErrPasswordPolicyViolation}
	}
	return ErrPasswordPolicyViolation.Wrap(err)
}
