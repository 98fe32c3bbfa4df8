package ports

import (
	"context"
	"time"

	"killrvideo/domain/events"
)

// Deduplicator remembers which counter submissions were already applied.
// This is a port in hexagonal architecture; memory, Redis and DynamoDB
// implementations live in infrastructure.
type Deduplicator interface {
	// Claim records submissionID. It returns false if it was already claimed.
	Claim(ctx context.Context, submissionID string, ttl time.Duration) (bool, error)

	// Release forgets a claim so the submission can be applied again
	Release(ctx context.Context, submissionID string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event events.DomainEvent) error { return nil }

func (NoopPublisher) PublishBatch(ctx context.Context, events []events.DomainEvent) error {
	return nil
}
