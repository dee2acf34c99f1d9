package busclient

import (
	"encoding/json"
	"fmt"

	"github.com/iancoleman/strcase"

	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
)

// Publisher publishes events and commands back onto the bus. It requires
// an ack from the bus itself (not from any listener) before returning —
// callers treat a returned error as "this was not durably published".
//
// Workers depend on this interface rather than the concrete NATS-backed
// implementation so they can be exercised against an in-memory fake.
type Publisher interface {
	PublishEvent(evt eventsourcing.Event) error
	PublishCommand(aggregateStream string, cmd eventsourcing.Command) error
}

// NatsPublisher is the bus-backed Publisher implementation.
type NatsPublisher struct {
	client *Client
}

// NewPublisher wraps a bus client for publishing.
func NewPublisher(client *Client) *NatsPublisher {
	return &NatsPublisher{client: client}
}

// PublishEvent encodes evt as a bus envelope and publishes it to
// cc.events.<snake(event_type)>.
func (p *NatsPublisher) PublishEvent(evt eventsourcing.Event) error {
	ce, err := eventsourcing.ToEnvelope(evt)
	if err != nil {
		return fmt.Errorf("busclient: encode event envelope: %w", err)
	}
	raw, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("busclient: marshal event envelope: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", EventsStreamSubjectPrefix, strcase.ToSnake(evt.EventType))
	if _, err := p.client.JS.Publish(subject, raw); err != nil {
		return fmt.Errorf("busclient: publish event to %s: %w", subject, err)
	}
	return nil
}

// PublishCommand encodes cmd as JSON and publishes it to
// cc.commands.<aggregateStream>.
func (p *NatsPublisher) PublishCommand(aggregateStream string, cmd eventsourcing.Command) error {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("busclient: marshal command: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", CommandsStreamSubjectPrefix, aggregateStream)
	if _, err := p.client.JS.Publish(subject, raw); err != nil {
		return fmt.Errorf("busclient: publish command to %s: %w", subject, err)
	}
	return nil
}
