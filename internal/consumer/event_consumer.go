package consumer

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/busclient"
	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
)

// EventSource is a Source[Event] backed by one durable events consumer.
// The events stream has no per-consumer subject filtering in this
// iteration — every event-consuming worker receives the full stream and
// applies its own interest predicate locally.
type EventSource = Source[eventsourcing.Event]

// NewEventConsumer opens a durable pull consumer on the events stream for
// the given interest declaration's consumer name.
func NewEventConsumer(js nats.JetStreamContext, decl eventsourcing.InterestDeclaration, log *zap.Logger) (EventSource, error) {
	return newTypedConsumer(js, busclient.EventsStreamSubjects, decl.ConsumerName(), "", decl.MaxBatch, log, decodeEnvelopeEvent)
}
