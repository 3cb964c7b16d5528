package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/domain"
	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	eventAccountRegistered      = "account.registered"
	eventAccountVerified        = "account.verified"
	eventPasswordResetRequested = "password.reset_requested"
	eventPasswordChanged        = "password.changed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
	now      func() time.Time
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger, now: time.Now}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// newEventID returns a lexicographically sortable identifier.
func newEventID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

func (p *EventPublisher) envelope(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) eventEnvelope {
	if ts.IsZero() {
		ts = p.now().UTC()
	}
	if eventID == "" {
		eventID = newEventID(ts)
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	return eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	envelope := p.envelope(ctx, eventID, eventType, accountID, ts, payload)

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	headers := map[string]string{"event_type": eventType, "event_id": envelope.EventID}
	return p.producer.Send(ctx, p.producer.TopicName(eventType), accountID, bytes, headers)
}

// PublishAccountRegistered publishes account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		FullName     string    `json:"full_name"`
		Email        string    `json:"email"`
		RegisteredAt time.Time `json:"registered_at"`
		OTPDelivered bool      `json:"otp_delivered"`
	}{
		AccountID:    event.AccountID,
		FullName:     event.FullName,
		Email:        event.Email,
		RegisteredAt: event.RegisteredAt.UTC(),
		OTPDelivered: event.OTPDelivered,
	}

	return p.publish(ctx, event.EventID, eventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

// PublishAccountVerified publishes account.verified events.
func (p *EventPublisher) PublishAccountVerified(ctx context.Context, event domain.AccountVerifiedEvent) error {
	payload := struct {
		AccountID  string    `json:"account_id"`
		Email      string    `json:"email"`
		VerifiedAt time.Time `json:"verified_at"`
	}{
		AccountID:  event.AccountID,
		Email:      event.Email,
		VerifiedAt: event.VerifiedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, eventAccountVerified, event.AccountID, event.VerifiedAt, payload)
}

// PublishPasswordResetRequested publishes password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		AccountID         string    `json:"account_id"`
		MaskedDestination string    `json:"masked_destination,omitempty"`
		RequestedAt       time.Time `json:"requested_at"`
		ExpiresAt         time.Time `json:"expires_at"`
	}{
		AccountID:         event.AccountID,
		MaskedDestination: event.MaskedDestination,
		RequestedAt:       event.RequestedAt.UTC(),
		ExpiresAt:         event.ExpiresAt.UTC(),
	}

	timestamp := event.RequestedAt
	if timestamp.IsZero() {
		timestamp = event.ExpiresAt
	}

	return p.publish(ctx, event.EventID, eventPasswordResetRequested, event.AccountID, timestamp, payload)
}

// PublishPasswordChanged publishes password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		ChangedAt time.Time `json:"changed_at"`
		Method    string    `json:"method"`
	}{
		AccountID: event.AccountID,
		ChangedAt: event.ChangedAt.UTC(),
		Method:    event.Method,
	}

	return p.publish(ctx, event.EventID, eventPasswordChanged, event.AccountID, event.ChangedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
