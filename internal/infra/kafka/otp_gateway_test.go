package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/joyebene/unimart-backend/internal/infra/config"
)

func TestOTPGatewaySendOTP(t *testing.T) {
	producer, sp := newMockProducer(t, "identity")

	var sent *sarama.ProducerMessage
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(capture(&sent))

	gateway := NewOTPGateway(producer, "", zaptest.NewLogger(t))
	gateway.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	if err := gateway.SendOTP(context.Background(), "a@u.edu", "482910"); err != nil {
		t.Fatalf("SendOTP returned error: %v", err)
	}

	if sent.Topic != "identity."+defaultOTPTopic {
		t.Fatalf("unexpected topic %q", sent.Topic)
	}
	key, _ := sent.Key.Encode()
	if string(key) != "a@u.edu" {
		t.Fatalf("expected email as partition key, got %q", key)
	}

	var msg otpMessage
	decodeValue(t, sent, &msg)
	if msg.Email != "a@u.edu" || msg.Code != "482910" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.MessageID == "" || !msg.RequestedAt.Equal(gateway.now()) {
		t.Fatalf("unexpected message metadata %+v", msg)
	}
}

func TestOTPGatewayReportsDeliveryFailure(t *testing.T) {
	producer, sp := newMockProducer(t, "")
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	gateway := NewOTPGateway(producer, "mail.otp", zaptest.NewLogger(t))
	err := gateway.SendOTP(context.Background(), "a@u.edu", "482910")
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected broker error, got %v", err)
	}
}

// stallingProducer blocks every send until release is closed.
type stallingProducer struct {
	sarama.SyncProducer
	release chan struct{}
}

func (p *stallingProducer) SendMessage(*sarama.ProducerMessage) (int32, int64, error) {
	<-p.release
	return 0, 0, nil
}

func (p *stallingProducer) Close() error { return nil }

func TestOTPGatewayHonoursDeadline(t *testing.T) {
	stalled := &stallingProducer{release: make(chan struct{})}
	defer close(stalled.release)

	gateway := NewOTPGateway(newProducer(stalled, config.KafkaSettings{}, nil), "", zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	err := gateway.SendOTP(ctx, "a@u.edu", "482910")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("send blocked for %s past its deadline", elapsed)
	}
}
