package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"github.com/yourorg/businesshub/internal/reliability/circuitbreaker"
	"github.com/yourorg/businesshub/internal/reliability/retry"
)

// Writer is the subset of the kafka writer the publisher needs; tests
// inject a fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// KafkaPublisher publishes membership events to a Kafka topic. Writes go
// through a circuit breaker and bounded retries so a dead broker never
// stalls the request path that triggered the event.
type KafkaPublisher struct {
	writer  Writer
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
	logger  *slog.Logger
}

// NewKafkaPublisher creates a publisher writing to the given brokers/topic
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.LeastBytes{},
		WriteTimeout: 5 * time.Second,
	}
	return newKafkaPublisher(w, logger)
}

// NewKafkaPublisherWithWriter allows injecting a test writer
func NewKafkaPublisherWithWriter(w Writer, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return newKafkaPublisher(w, logger)
}

func newKafkaPublisher(w Writer, logger *slog.Logger) *KafkaPublisher {
	breaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("event publisher circuit state changed",
			slog.Int("from", int(from)),
			slog.Int("to", int(to)),
		)
	})

	return &KafkaPublisher{
		writer:  w,
		breaker: breaker,
		retry: &retry.Config{
			MaxAttempts:       2,
			InitialBackoff:    50 * time.Millisecond,
			MaxBackoff:        500 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		logger: logger,
	}
}

// Publish marshals the event and writes it keyed by business id.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if !p.breaker.Allow() {
		p.logger.Warn("event dropped, publisher circuit open",
			slog.String("event_type", event.Type),
			slog.String("business_id", event.BusinessID),
		)
		return fmt.Errorf("event publisher circuit open")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := skafka.Message{Key: []byte(event.BusinessID), Value: data}
	_, err = retry.Do(ctx, p.retry, p.logger, "kafka publish", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		p.breaker.RecordFailure()
		p.logger.Error("failed to publish event",
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.breaker.RecordSuccess()
	return nil
}

// Close closes the underlying writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
