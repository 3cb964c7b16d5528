package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/logger"
	"github.com/joyebene/unimart-backend/internal/repository"
)

// Register opens an unverified account and sends its first OTP. If delivery fails the account
// is still created and ErrDeliveryFailure is returned alongside it; ResendOTP is the retry path.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (account domain.Account, err error) {
	ctx, span := s.startSpan(ctx, "register")
	defer func() { endSpan(span, err) }()

	fullName := strings.TrimSpace(in.FullName)
	if err := requireField("full name", fullName); err != nil {
		return domain.Account{}, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.Account{}, err
	}
	if err := requireField("password", in.Password); err != nil {
		return domain.Account{}, err
	}
	if err := s.validatePassword(in.Password, fullName, email); err != nil {
		return domain.Account{}, err
	}

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return domain.Account{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	code, expiresAt, err := s.issueOTP(domain.OTPPurposeRegister, now)
	if err != nil {
		return domain.Account{}, err
	}

	deliveryErr := s.deliver(ctx, email, code, domain.OTPPurposeRegister)

	account = domain.Account{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		IsVerified:   false,
		PendingOTP:   &code,
		OTPExpiresAt: &expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Account{}, ErrEmailTaken
		}
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}
	span.SetAttributes(attribute.String("account.id", account.ID))

	s.log(ctx).Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(email)),
		zap.Bool("otp_delivered", deliveryErr == nil),
	)
	s.publish(ctx, "account_registered", func(p port.EventPublisher) error {
		return p.PublishAccountRegistered(ctx, domain.AccountRegisteredEvent{
			AccountID:    account.ID,
			FullName:     account.FullName,
			Email:        account.Email,
			RegisteredAt: now,
			OTPDelivered: deliveryErr == nil,
		})
	})

	return account.Sanitized(), deliveryErr
}

// VerifyOTP checks code for purpose. A register verification marks the account verified and
// clears the code; a forgot-password verification only validates, leaving the code for ResetPassword.
func (s *IdentityService) VerifyOTP(ctx context.Context, email, code string, purpose domain.OTPPurpose) (account domain.Account, err error) {
	ctx, span := s.startSpan(ctx, "verify_otp")
	span.SetAttributes(attribute.String("otp.purpose", string(purpose)))
	defer func() { endSpan(span, err) }()

	if !purpose.Valid() {
		return domain.Account{}, ErrInvalidOTPPurpose
	}
	email, err = lookupEmail(email)
	if err != nil {
		return domain.Account{}, err
	}
	if err := requireField("otp", code); err != nil {
		return domain.Account{}, err
	}

	if purpose == domain.OTPPurposeForgotPassword {
		current, err := s.accounts.FindByEmail(ctx, email)
		if err != nil {
			return domain.Account{}, lookupErr(err, ErrNotFound)
		}
		if !s.otp.IsValid(current.PendingOTP, current.OTPExpiresAt, code, s.now().UTC()) {
			return domain.Account{}, ErrInvalidOrExpiredOTP
		}
		return current.Sanitized(), nil
	}

	var verified domain.Account
	err = s.tx.WithinTx(ctx, func(ctx context.Context, accounts port.AccountRepository) error {
		current, err := accounts.FindByEmailForUpdate(ctx, email)
		if err != nil {
			return lookupErr(err, ErrNotFound)
		}
		if current.IsVerified {
			return ErrAlreadyVerified
		}
		now := s.now().UTC()
		if !s.otp.IsValid(current.PendingOTP, current.OTPExpiresAt, code, now) {
			return ErrInvalidOrExpiredOTP
		}
		isVerified := true
		patch := domain.AccountPatch{IsVerified: &isVerified, ClearOTP: true}
		if err := accounts.Update(ctx, current.ID, patch); err != nil {
			return fmt.Errorf("mark account verified: %w", err)
		}
		verified = patch.Apply(*current, now)
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	s.log(ctx).Info("account verified", zap.String("account_id", verified.ID))
	s.publish(ctx, "account_verified", func(p port.EventPublisher) error {
		return p.PublishAccountVerified(ctx, domain.AccountVerifiedEvent{
			AccountID:  verified.ID,
			Email:      verified.Email,
			VerifiedAt: verified.UpdatedAt,
		})
	})

	return verified.Sanitized(), nil
}

// ResendOTP replaces any pending code with a fresh one on the shorter resend window and delivers it.
// Verified accounts may also request a resend.
func (s *IdentityService) ResendOTP(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "resend_otp")
	defer func() { endSpan(span, err) }()

	email, err = lookupEmail(email)
	if err != nil {
		return err
	}

	issued, err := s.storeOTP(ctx, email, domain.OTPPurposeResend)
	if err != nil {
		return err
	}
	return s.deliver(ctx, email, issued.code, domain.OTPPurposeResend)
}

type issuedOTP struct {
	accountID string
	code      string
	issuedAt  time.Time
	expiresAt time.Time
}

// storeOTP overwrites the account's pending code under a row lock.
func (s *IdentityService) storeOTP(ctx context.Context, email string, purpose domain.OTPPurpose) (issuedOTP, error) {
	var issued issuedOTP
	err := s.tx.WithinTx(ctx, func(ctx context.Context, accounts port.AccountRepository) error {
		current, err := accounts.FindByEmailForUpdate(ctx, email)
		if err != nil {
			return lookupErr(err, ErrNotFound)
		}
		now := s.now().UTC()
		code, expiresAt, err := s.issueOTP(purpose, now)
		if err != nil {
			return err
		}
		if err := accounts.Update(ctx, current.ID, domain.AccountPatch{PendingOTP: &code, OTPExpiresAt: &expiresAt}); err != nil {
			return fmt.Errorf("store otp: %w", err)
		}
		issued = issuedOTP{accountID: current.ID, code: code, issuedAt: now, expiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return issuedOTP{}, err
	}
	return issued, nil
}
