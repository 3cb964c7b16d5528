package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/joyebene/unimart-backend/internal/infra/config"
)

// Producer wraps a Sarama SyncProducer so callers learn whether the broker accepted a message.
type Producer struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
}

// NewProducer initializes a Kafka sync producer that waits for in-sync replica acknowledgement.
// A positive timeout bounds broker dials, socket reads and writes, and the produce request itself.
func NewProducer(cfg config.KafkaSettings, timeout time.Duration, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("create kafka producer: no brokers configured")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0

	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	if timeout > 0 {
		saramaConfig.Producer.Timeout = timeout
		saramaConfig.Net.DialTimeout = timeout
		saramaConfig.Net.ReadTimeout = timeout
		saramaConfig.Net.WriteTimeout = timeout
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return newProducer(producer, cfg, logger), nil
}

func newProducer(producer sarama.SyncProducer, cfg config.KafkaSettings, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{producer: producer, logger: logger, cfg: cfg}
}

// Send publishes value to topic keyed by key and blocks until the broker acknowledges it.
func (p *Producer) Send(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}
	for k, v := range headers {
		message.Headers = append(message.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	type result struct {
		partition int32
		offset    int64
		err       error
	}
	// SendMessage ignores ctx. done is buffered so the sender always exits.
	done := make(chan result, 1)
	go func() {
		partition, offset, err := p.producer.SendMessage(message)
		done <- result{partition: partition, offset: offset, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		p.logger.Warn("Kafka send abandoned",
			zap.Error(ctx.Err()),
			zap.String("topic", topic),
		)
		return fmt.Errorf("kafka send %s: %w", topic, ctx.Err())
	}
	if res.err != nil {
		p.logger.Error("Kafka producer error",
			zap.Error(res.err),
			zap.String("topic", topic),
		)
		return fmt.Errorf("kafka send %s: %w", topic, res.err)
	}

	p.logger.Debug("Kafka message delivered",
		zap.String("topic", topic),
		zap.Int32("partition", res.partition),
		zap.Int64("offset", res.offset),
	)
	return nil
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka producer")
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// TopicName returns the full topic name with prefix
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}

	return prefix + eventType
}
