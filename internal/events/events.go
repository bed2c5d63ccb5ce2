package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the membership workflow. Events are notifications
// only; no correctness depends on their delivery.
const (
	TypeBusinessCreated = "business.created"
	TypeJoinRequested   = "membership.join_requested"
	TypeJoinApproved    = "membership.join_approved"
	TypeJoinReminder    = "membership.join_reminder"
)

// Event is the wire payload published to the notification topic.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	BusinessID    string    `json:"business_id"`
	UserID        string    `json:"user_id,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	Role          string    `json:"role,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	SourceService string    `json:"source_service"`
}

// NewEvent builds an event envelope with a fresh id and timestamp.
func NewEvent(eventType, businessID string) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		BusinessID:    businessID,
		Timestamp:     time.Now(),
		SourceService: "businesshub",
	}
}

// Publisher is the interface services use to emit notification events.
// Implementations must not block the request path on broker failures.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher discards events. Used in tests and deployments without a
// broker; the service constructor substitutes it for a nil publisher.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (NoopPublisher) Close() error                                   { return nil }
