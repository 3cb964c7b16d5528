package domain

import "time"

// AccountRegisteredEvent represents the payload for identity.account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	FullName     string
	Email        string
	RegisteredAt time.Time
	OTPDelivered bool
}

// AccountVerifiedEvent represents the payload for identity.account.verified messages.
type AccountVerifiedEvent struct {
	EventID    string
	AccountID  string
	Email      string
	VerifiedAt time.Time
}

// PasswordResetRequestedEvent represents the payload for identity.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	AccountID         string
	MaskedDestination string
	RequestedAt       time.Time
	ExpiresAt         time.Time
}

// PasswordChangedEvent represents the payload for identity.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedAt time.Time
	// Method is "reset" for OTP resets and "change" for authenticated changes.
	Method string
}
