package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/core/port"
	"github.com/joyebene/unimart-backend/internal/infra/logger"
)

const defaultOTPTopic = "notification.otp.requested"

// OTPGateway hands OTPs to the notification service through a Kafka topic. The mail worker
// consuming the topic owns SMTP delivery and retries.
type OTPGateway struct {
	producer *Producer
	topic    string
	logger   *zap.Logger
	now      func() time.Time
}

// NewOTPGateway constructs a gateway publishing to topic (prefixed like every other topic).
func NewOTPGateway(producer *Producer, topic string, logger *zap.Logger) *OTPGateway {
	if topic == "" {
		topic = defaultOTPTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPGateway{producer: producer, topic: producer.TopicName(topic), logger: logger, now: time.Now}
}

type otpMessage struct {
	MessageID   string    `json:"message_id"`
	Email       string    `json:"email"`
	Code        string    `json:"code"`
	RequestedAt time.Time `json:"requested_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// SendOTP blocks until the broker acknowledges the message or ctx ends.
func (g *OTPGateway) SendOTP(ctx context.Context, email, code string) error {
	now := g.now().UTC()
	msg := otpMessage{
		MessageID:   newEventID(now),
		Email:       email,
		Code:        code,
		RequestedAt: now,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		msg.TraceID = sc.TraceID().String()
	}

	bytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal otp message: %w", err)
	}

	if err := g.producer.Send(ctx, g.topic, email, bytes, map[string]string{"message_id": msg.MessageID}); err != nil {
		return err
	}

	g.logger.Debug("otp handed to notification topic",
		zap.String("topic", g.topic),
		zap.String("email", logger.MaskEmail(email)),
	)
	return nil
}

var _ port.NotificationGateway = (*OTPGateway)(nil)
