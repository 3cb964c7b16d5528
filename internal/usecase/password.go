package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/logger"
)

const (
	passwordChangeMethodReset  = "reset"
	passwordChangeMethodChange = "change"
)

// ForgotPassword stores a reset OTP and attempts delivery. The caller only learns whether the
// account exists; delivery failures are logged and counted but never returned.
func (s *IdentityService) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "forgot_password")
	defer func() { endSpan(span, err) }()

	email, err = lookupEmail(email)
	if err != nil {
		return err
	}

	issued, err := s.storeOTP(ctx, email, domain.OTPPurposeForgotPassword)
	if err != nil {
		return err
	}

	if deliveryErr := s.deliver(ctx, email, issued.code, domain.OTPPurposeForgotPassword); deliveryErr != nil {
		s.log(ctx).Warn("password reset otp not delivered", zap.String("account_id", issued.accountID))
	}

	s.publish(ctx, "password_reset_requested", func(p port.EventPublisher) error {
		return p.PublishPasswordResetRequested(ctx, domain.PasswordResetRequestedEvent{
			AccountID:         issued.accountID,
			MaskedDestination: logger.MaskEmail(email),
			RequestedAt:       issued.issuedAt,
			ExpiresAt:         issued.expiresAt,
		})
	})
	return nil
}

// ResetPassword replaces the password of the account holding a valid reset code and clears the code.
func (s *IdentityService) ResetPassword(ctx context.Context, email, code, newPassword string) (err error) {
	ctx, span := s.startSpan(ctx, "reset_password")
	defer func() { endSpan(span, err) }()

	email, err = lookupEmail(email)
	if err != nil {
		return err
	}
	if err := requireField("otp", code); err != nil {
		return err
	}
	if err := requireField("new password", newPassword); err != nil {
		return err
	}
	if err := s.validatePassword(newPassword, email); err != nil {
		return err
	}

	var accountID string
	changedAt := s.now().UTC()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, accounts port.AccountRepository) error {
		current, err := accounts.FindByEmailForUpdate(ctx, email)
		if err != nil {
			return lookupErr(err, ErrNotFound)
		}
		if !s.otp.IsValid(current.PendingOTP, current.OTPExpiresAt, code, changedAt) {
			return ErrInvalidOrExpiredOTP
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := accounts.Update(ctx, current.ID, domain.AccountPatch{PasswordHash: &hash, ClearOTP: true}); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		accountID = current.ID
		return nil
	})
	if err != nil {
		return err
	}

	s.log(ctx).Info("password reset", zap.String("account_id", accountID))
	s.publishPasswordChanged(ctx, accountID, changedAt, passwordChangeMethodReset)
	return nil
}

// ChangePassword replaces the password of an authenticated account. OTP state and existing
// sessions are left untouched.
func (s *IdentityService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) (err error) {
	ctx, span := s.startSpan(ctx, "change_password")
	defer func() { endSpan(span, err) }()

	if err := requireField("current password", currentPassword); err != nil {
		return err
	}
	if err := requireField("new password", newPassword); err != nil {
		return err
	}

	changedAt := s.now().UTC()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, accounts port.AccountRepository) error {
		current, err := accounts.FindByIDForUpdate(ctx, accountID)
		if err != nil {
			return lookupErr(err, ErrAccountNotFound)
		}
		ok, err := s.hasher.Verify(currentPassword, current.PasswordHash)
		if err != nil {
			return fmt.Errorf("verify password: %w", err)
		}
		if !ok {
			return ErrIncorrectPassword
		}
		if err := s.validatePassword(newPassword, current.FullName, current.Email); err != nil {
			return err
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := accounts.Update(ctx, current.ID, domain.AccountPatch{PasswordHash: &hash}); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log(ctx).Info("password changed", zap.String("account_id", accountID))
	s.publishPasswordChanged(ctx, accountID, changedAt, passwordChangeMethodChange)
	return nil
}

func (s *IdentityService) publishPasswordChanged(ctx context.Context, accountID string, at time.Time, method string) {
	s.publish(ctx, "password_changed", func(p port.EventPublisher) error {
		return p.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			AccountID: accountID,
			ChangedAt: at,
			Method:    method,
		})
	})
}
