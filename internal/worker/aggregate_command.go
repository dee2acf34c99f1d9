// Package worker implements the four state machines that drive command
// and event processing for aggregates, process managers, and stateless
// handlers.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/busclient"
	"github.com/cosmonic-labs/concordance/internal/consumer"
	"github.com/cosmonic-labs/concordance/internal/dispatch"
	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
	"github.com/cosmonic-labs/concordance/internal/state"
)

// AggregateCommandWorker loads an aggregate's state, dispatches a command
// to it, and publishes the events it produces. Aggregates never mutate
// their own state while handling a command — state mutation only happens
// in AggregateEventWorker, once the resulting events are themselves
// consumed back off the events stream.
type AggregateCommandWorker struct {
	decl      eventsourcing.InterestDeclaration
	store     state.Store
	publisher busclient.Publisher
	handler   dispatch.CommandHandler
	log       *zap.Logger
}

// NewAggregateCommandWorker builds the worker for a (Aggregate, Commands)
// declaration.
func NewAggregateCommandWorker(decl eventsourcing.InterestDeclaration, store state.Store, publisher busclient.Publisher, handler dispatch.CommandHandler, log *zap.Logger) (*AggregateCommandWorker, error) {
	if decl.Role != eventsourcing.RoleAggregate || decl.InterestConstraint != eventsourcing.ConstraintCommands {
		return nil, fmt.Errorf("worker: aggregate command worker requires an aggregate/commands declaration, got %s/%s", decl.Role, decl.InterestConstraint)
	}
	return &AggregateCommandWorker{decl: decl, store: store, publisher: publisher, handler: handler, log: log}, nil
}

// DoWork implements consumer.Worker[Command].
func (w *AggregateCommandWorker) DoWork(ctx context.Context, msg *busclient.AckableMessage[eventsourcing.Command]) error {
	cmd := msg.Value

	key, err := state.Key(eventsourcing.RoleAggregate, w.decl.EntityName, cmd.Key)
	if err != nil {
		return err
	}
	existing, err := w.store.Get(key)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("load state at %s: %w", key, err)
	}

	stateful := eventsourcing.StatefulCommand{
		Aggregate:   w.decl.EntityName,
		CommandType: cmd.CommandType,
		Key:         cmd.Key,
		State:       existing,
		Payload:     cmd.Data,
	}

	events, err := w.handler.HandleCommand(ctx, stateful)
	if err != nil {
		w.log.Warn("command handler failed, nacking command",
			zap.String("aggregate", w.decl.EntityName), zap.String("command_type", cmd.CommandType), zap.Error(err))
		msg.Nack()
		return nil
	}

	// A failure to publish any event in the list nacks the whole command
	// so the list is retried atomically at the application level; aggregate
	// event appliers are idempotent, so duplicates after retry are safe.
	for _, evt := range events {
		evt.Stream = w.decl.EntityName
		if err := w.publisher.PublishEvent(evt); err != nil {
			w.log.Warn("event publish failed, nacking command",
				zap.String("aggregate", w.decl.EntityName), zap.String("event_type", evt.EventType), zap.Error(err))
			msg.Nack()
			return nil
		}
	}

	msg.Ack(ctx)
	return nil
}

// Run starts this worker's fetch-dispatch-settle loop against src, blocking
// until the context is canceled or the source is exhausted.
func (w *AggregateCommandWorker) Run(ctx context.Context, src consumer.CommandSource) error {
	return consumer.Run(ctx, src, w, w.log)
}
