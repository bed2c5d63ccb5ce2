package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	skafka "github.com/segmentio/kafka-go"
)

// fakeWriter records messages and can be forced to fail.
type fakeWriter struct {
	msgs []skafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw, nil)

	event := NewEvent(TypeJoinRequested, "biz-1")
	event.UserID = "user-1"
	event.Role = "user"

	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	if string(fw.msgs[0].Key) != "biz-1" {
		t.Fatalf("expected message keyed by business id, got %q", fw.msgs[0].Key)
	}

	var decoded Event
	if err := json.Unmarshal(fw.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("failed to decode published event: %v", err)
	}
	if decoded.Type != TypeJoinRequested || decoded.UserID != "user-1" {
		t.Fatalf("unexpected event payload: %+v", decoded)
	}
	if decoded.ID == "" {
		t.Fatal("expected event id to be set")
	}
}

func TestPublishCircuitOpensAfterFailures(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisherWithWriter(fw, nil)

	// Drive the breaker past its failure threshold.
	for i := 0; i < 5; i++ {
		if err := p.Publish(context.Background(), NewEvent(TypeJoinApproved, "biz-1")); err == nil {
			t.Fatal("expected publish to fail while broker is down")
		}
	}

	// The breaker should now fail fast without touching the writer.
	fw.err = nil
	if err := p.Publish(context.Background(), NewEvent(TypeJoinApproved, "biz-1")); err == nil {
		t.Fatal("expected circuit-open error")
	}
	if len(fw.msgs) != 0 {
		t.Fatalf("expected no messages while circuit open, got %d", len(fw.msgs))
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	if err := p.Publish(context.Background(), NewEvent(TypeBusinessCreated, "biz-1")); err != nil {
		t.Fatalf("noop publish returned error: %v", err)
	}
}
