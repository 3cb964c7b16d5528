package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/infra/logger"
	"github.com/joyebene/unimart-backend/internal/repository"
)

// Login verifies credentials and issues a session token.
func (s *IdentityService) Login(ctx context.Context, email, password string) (result LoginResult, err error) {
	ctx, span := s.startSpan(ctx, "login")
	defer func() {
		loginAttempts.WithLabelValues(loginOutcome(err)).Inc()
		endSpan(span, err)
	}()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("lookup account: %w", err)
		}
		if dummy := s.dummy(); dummy != "" {
			_, _ = s.hasher.Verify(password, dummy)
		}
		s.log(ctx).Info("login rejected", zap.String("email", logger.MaskEmail(email)), zap.String("reason", "unknown_email"))
		return LoginResult{}, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.log(ctx).Info("login rejected", zap.String("account_id", account.ID), zap.String("reason", "password_mismatch"))
		return LoginResult{}, ErrInvalidCredentials
	}
	if !account.IsVerified {
		return LoginResult{}, ErrEmailNotVerified
	}

	if s.hasher.NeedsRehash(account.PasswordHash) {
		s.rehash(ctx, account.ID, password)
	}

	token, expiresAt, err := s.sessions.Issue(account.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session: %w", err)
	}
	span.SetAttributes(attribute.String("account.id", account.ID))

	return LoginResult{Account: account.Sanitized(), Token: token, ExpiresAt: expiresAt}, nil
}

// rehash upgrades a superseded password hash. Failures are logged and never fail the login.
func (s *IdentityService) rehash(ctx context.Context, accountID, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.log(ctx).Warn("password rehash failed", zap.String("account_id", accountID), zap.Error(err))
		return
	}
	if err := s.accounts.Update(ctx, accountID, domain.AccountPatch{PasswordHash: &hash}); err != nil {
		s.log(ctx).Warn("persist rehashed password failed", zap.String("account_id", accountID), zap.Error(err))
		return
	}
	s.log(ctx).Info("password hash upgraded", zap.String("account_id", accountID))
}

// Authenticate resolves a bearer token to a live account. Missing tokens, invalid tokens and
// tokens for deleted accounts fail with distinct kinds.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (account domain.Account, err error) {
	ctx, span := s.startSpan(ctx, "authenticate")
	defer func() { endSpan(span, err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Account{}, ErrUnauthorized
	}

	accountID, err := s.sessions.Verify(token)
	if err != nil {
		return domain.Account{}, ErrInvalidToken.Wrap(err)
	}

	found, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return domain.Account{}, lookupErr(err, ErrAccountNotFound)
	}
	return found.Sanitized(), nil
}

func loginOutcome(err error) string {
	switch domain.KindOf(err) {
	case domain.KindInvalidCredentials:
		return "invalid_credentials"
	case domain.KindEmailNotVerified:
		return "email_not_verified"
	}
	if err == nil {
		return "success"
	}
	return "error"
}
