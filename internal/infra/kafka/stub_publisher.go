package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload map[string]any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountRegistered logs account.registered events.
func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.logEvent(eventAccountRegistered, event.AccountID, event.RegisteredAt, map[string]any{
		"email":         logger.MaskEmail(event.Email),
		"otp_delivered": event.OTPDelivered,
	})
	return nil
}

// PublishAccountVerified logs account.verified events.
func (p *StubPublisher) PublishAccountVerified(_ context.Context, event domain.AccountVerifiedEvent) error {
	p.logEvent(eventAccountVerified, event.AccountID, event.VerifiedAt, map[string]any{
		"email": logger.MaskEmail(event.Email),
	})
	return nil
}

// PublishPasswordResetRequested logs password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(eventPasswordResetRequested, event.AccountID, event.RequestedAt, map[string]any{
		"masked_destination": event.MaskedDestination,
		"expires_at":         event.ExpiresAt,
	})
	return nil
}

// PublishPasswordChanged logs password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(eventPasswordChanged, event.AccountID, event.ChangedAt, map[string]any{
		"method": event.Method,
	})
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
