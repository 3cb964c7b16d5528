package domain

import "time"

// OTPPurpose scopes a one-time password to the flow that issued it.
type OTPPurpose string

const (
	OTPPurposeRegister       OTPPurpose = "register"
	OTPPurposeForgotPassword OTPPurpose = "forgot-password"
	// OTPPurposeResend marks codes reissued on user request; it only selects the expiry window.
	OTPPurposeResend OTPPurpose = "resend"
)

// Valid reports whether the purpose can be supplied by callers verifying a code.
func (p OTPPurpose) Valid() bool {
	return p == OTPPurposeRegister || p == OTPPurposeForgotPassword
}

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	IsVerified   bool
	PendingOTP   *string
	OTPExpiresAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPendingOTP reports whether a code is currently stored on the account.
func (a Account) HasPendingOTP() bool {
	return a.PendingOTP != nil && a.OTPExpiresAt != nil
}

// Sanitized returns a copy safe to hand across the service boundary.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	a.PendingOTP = nil
	a.OTPExpiresAt = nil
	return a
}

// AccountPatch describes a partial account update. Nil fields are left untouched.
type AccountPatch struct {
	FullName     *string
	PasswordHash *string
	IsVerified   *bool
	PendingOTP   *string
	OTPExpiresAt *time.Time
	// ClearOTP nulls both OTP columns together.
	ClearOTP bool
}

// Validate enforces that OTP code and expiry always change together.
func (p AccountPatch) Validate() error {
	if p.ClearOTP && (p.PendingOTP != nil || p.OTPExpiresAt != nil) {
		return NewError(KindValidation, "otp cannot be set and cleared in one update")
	}
	if (p.PendingOTP == nil) != (p.OTPExpiresAt == nil) {
		return NewError(KindValidation, "otp code and expiry must be updated together")
	}
	return nil
}

// Empty reports whether the patch carries no changes.
func (p AccountPatch) Empty() bool {
	return p.FullName == nil && p.PasswordHash == nil && p.IsVerified == nil &&
		p.PendingOTP == nil && p.OTPExpiresAt == nil && !p.ClearOTP
}

// Apply returns a copy of the account with the patch applied.
func (p AccountPatch) Apply(a Account, now time.Time) Account {
	if p.FullName != nil {
		a.FullName = *p.FullName
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.IsVerified != nil {
		a.IsVerified = *p.IsVerified
	}
	if p.ClearOTP {
		a.PendingOTP = nil
		a.OTPExpiresAt = nil
	}
	if p.PendingOTP != nil && p.OTPExpiresAt != nil {
		code := *p.PendingOTP
		expiry := *p.OTPExpiresAt
		a.PendingOTP = &code
		a.OTPExpiresAt = &expiry
	}
	a.UpdatedAt = now
	return a
}
