package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/config"
)

const (
	otpMin = 100000
	otpMax = 999999

	defaultOTPTTL    = 10 * time.Minute
	defaultResendTTL = 5 * time.Minute
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// OTPPolicy generates six-digit one-time passwords and decides their validity.
type OTPPolicy struct {
	registerTTL       time.Duration
	forgotPasswordTTL time.Duration
	resendTTL         time.Duration
}

// NewOTPPolicy builds a policy from settings; zero durations keep the defaults.
func NewOTPPolicy(cfg config.OTPSettings) *OTPPolicy {
	p := DefaultOTPPolicy()
	if cfg.RegisterTTL > 0 {
		p.registerTTL = cfg.RegisterTTL
	}
	if cfg.ForgotPasswordTTL > 0 {
		p.forgotPasswordTTL = cfg.ForgotPasswordTTL
	}
	if cfg.ResendTTL > 0 {
		p.resendTTL = cfg.ResendTTL
	}
	return p
}

// DefaultOTPPolicy returns the 10 minute issue / 5 minute resend policy.
func DefaultOTPPolicy() *OTPPolicy {
	return &OTPPolicy{
		registerTTL:       defaultOTPTTL,
		forgotPasswordTTL: defaultOTPTTL,
		resendTTL:         defaultResendTTL,
	}
}

// Generate returns a code drawn uniformly from [100000, 999999].
func (p *OTPPolicy) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// ExpiryFor returns how long a code issued for purpose stays valid.
func (p *OTPPolicy) ExpiryFor(purpose domain.OTPPurpose) time.Duration {
	switch purpose {
	case domain.OTPPurposeResend:
		return p.resendTTL
	case domain.OTPPurposeForgotPassword:
		return p.forgotPasswordTTL
	default:
		return p.registerTTL
	}
}

// IsValid reports whether supplied exactly matches the stored code and now is strictly before expiry.
func (p *OTPPolicy) IsValid(stored *string, expiry *time.Time, supplied string, now time.Time) bool {
	if stored == nil || expiry == nil {
		return false
	}
	match := subtle.ConstantTimeCompare([]byte(*stored), []byte(supplied)) == 1
	return match && now.Before(*expiry)
}

var _ port.OTPPolicy = (*OTPPolicy)(nil)
