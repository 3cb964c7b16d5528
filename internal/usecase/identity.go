package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/logger"
	"github.com/joyebene/unimart-backend/internal/infra/security"
	"github.com/joyebene/unimart-backend/internal/repository"
)

const defaultDeliveryTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/joyebene/unimart-backend/internal/usecase")

// IdentityService orchestrates registration, verification, login and password recovery.
type IdentityService struct {
	accounts        port.AccountRepository
	tx              port.AccountTransactor
	notifier        port.NotificationGateway
	sessions        port.SessionIssuer
	otp             port.OTPPolicy
	hasher          port.PasswordHasher
	policy          port.PasswordPolicyValidator
	events          port.EventPublisher
	logger          *zap.Logger
	now             func() time.Time
	deliveryTimeout time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewIdentityService wires the identity core. Every collaborator is required.
func NewIdentityService(accounts port.AccountRepository, tx port.AccountTransactor, notifier port.NotificationGateway, sessions port.SessionIssuer, otp port.OTPPolicy) *IdentityService {
	return &IdentityService{
		accounts:        accounts,
		tx:              tx,
		notifier:        notifier,
		sessions:        sessions,
		otp:             otp,
		hasher:          security.NewDefaultArgon2Hasher(),
		policy:          security.DefaultPasswordValidator(),
		logger:          zap.NewNop(),
		now:             time.Now,
		deliveryTimeout: defaultDeliveryTimeout,
	}
}

// WithPasswordValidator overrides the password policy.
func (s *IdentityService) WithPasswordValidator(policy port.PasswordPolicyValidator) *IdentityService {
	if policy != nil {
		s.policy = policy
	}
	return s
}

// WithPasswordHasher overrides the password hasher.
func (s *IdentityService) WithPasswordHasher(hasher port.PasswordHasher) *IdentityService {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithEventPublisher enables publication of identity events.
func (s *IdentityService) WithEventPublisher(events port.EventPublisher) *IdentityService {
	s.events = events
	return s
}

// WithLogger sets the service logger.
func (s *IdentityService) WithLogger(l *zap.Logger) *IdentityService {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithDeliveryTimeout bounds how long a single OTP delivery may block.
func (s *IdentityService) WithDeliveryTimeout(timeout time.Duration) *IdentityService {
	if timeout > 0 {
		s.deliveryTimeout = timeout
	}
	return s
}

// RegisterInput carries the fields required to open an account.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Account   domain.Account
	Token     string
	ExpiresAt time.Time
}

func (s *IdentityService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "identity."+name)
}

// endSpan records err on span unless it is an expected domain outcome.
func endSpan(span trace.Span, err error) {
	if err != nil {
		kind := domain.KindOf(err)
		span.SetAttributes(attribute.String("identity.error_kind", string(kind)))
		if kind == domain.KindInternal || kind == domain.KindDeliveryFailure {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func (s *IdentityService) log(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, s.logger)
}

// deliver sends code through the gateway within the configured timeout.
func (s *IdentityService) deliver(ctx context.Context, email, code string, purpose domain.OTPPurpose) error {
	ctx, span := s.startSpan(ctx, "deliver_otp")
	span.SetAttributes(attribute.String("otp.purpose", string(purpose)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()

	if err := s.notifier.SendOTP(ctx, email, code); err != nil {
		otpDeliveryFailures.WithLabelValues(string(purpose)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "otp delivery failed")
		s.log(ctx).Warn("otp delivery failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
		return ErrDeliveryFailure.Wrap(err)
	}
	return nil
}

// issueOTP generates a code and its expiry for purpose.
func (s *IdentityService) issueOTP(purpose domain.OTPPurpose, now time.Time) (string, time.Time, error) {
	code, err := s.otp.Generate()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}
	otpIssued.WithLabelValues(string(purpose)).Inc()
	return code, now.Add(s.otp.ExpiryFor(purpose)), nil
}

func (s *IdentityService) validatePassword(password string, userInputs ...string) error {
	if err := s.policy.Validate(password, userInputs...); err != nil {
		return policyError(err)
	}
	return nil
}

// dummy returns a hash to verify against when the email is unknown, so both login failures cost the same.
func (s *IdentityService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("unimart-dummy-password")
		if err != nil {
			s.logger.Warn("dummy hash generation failed", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// lookupErr maps a store lookup failure onto notFound or an internal error.
func lookupErr(err error, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("lookup account: %w", err)
}

// lookupEmail trims surrounding whitespace from an email used as a lookup key. Case is preserved.
func lookupEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", &domain.Error{Kind: domain.KindValidation, Message: "email is required", Err: ErrInvalidInput}
	}
	return email, nil
}

func normalizeEmail(email string) (string, error) {
	email, err := lookupEmail(email)
	if err != nil {
		return "", err
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &domain.Error{Kind: domain.KindValidation, Message: "email is malformed", Err: ErrInvalidInput}
	}
	return email, nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &domain.Error{Kind: domain.KindValidation, Message: name + " is required", Err: ErrInvalidInput}
	}
	return nil
}

func (s *IdentityService) publish(ctx context.Context, name string, fn func(port.EventPublisher) error) {
	if s.events == nil {
		return
	}
	if err := fn(s.events); err != nil {
		s.log(ctx).Warn("publish event failed", zap.String("event", name), zap.Error(err))
	}
}
