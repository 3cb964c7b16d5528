package domain

import "errors"

// ErrorKind classifies failures surfaced by the identity core.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation_error"
	KindNotFound            ErrorKind = "not_found"
	KindInvalidCredentials  ErrorKind = "invalid_credentials"
	KindEmailNotVerified    ErrorKind = "email_not_verified"
	KindInvalidOrExpiredOTP ErrorKind = "invalid_or_expired_otp"
	KindAlreadyVerified     ErrorKind = "already_verified"
	KindIncorrectPassword   ErrorKind = "incorrect_password"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindInvalidToken        ErrorKind = "invalid_token"
	KindAccountNotFound     ErrorKind = "account_not_found"
	KindDeliveryFailure     ErrorKind = "delivery_failure"
	KindInternal            ErrorKind = "internal"
)

// Error is a classified failure with a caller-safe message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error of the same kind and message, so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: cause}
}

// KindOf returns the classification of err, or KindInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	var derr *Error
	if errors.As(err, &derr) && derr != nil {
		return derr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var derr *Error
	if errors.As(err, &derr) && derr != nil && derr.Kind != KindInternal {
		return derr.Message
	}
	return "internal server error"
}
