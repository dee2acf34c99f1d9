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

// AggregateEventWorker is where an aggregate's state actually changes: it
// filters the events stream down to the one aggregate it owns, loads
// current state, dispatches to the participant's event applier, and
// persists or purges state based on the StateAck outcome.
type AggregateEventWorker struct {
	decl    eventsourcing.InterestDeclaration
	store   state.Store
	applier dispatch.EventApplier
	log     *zap.Logger
}

// NewAggregateEventWorker builds the worker for a (Aggregate, Events)
// declaration.
func NewAggregateEventWorker(decl eventsourcing.InterestDeclaration, store state.Store, applier dispatch.EventApplier, log *zap.Logger) (*AggregateEventWorker, error) {
	if decl.Role != eventsourcing.RoleAggregate || decl.InterestConstraint != eventsourcing.ConstraintEvents {
		return nil, fmt.Errorf("worker: aggregate event worker requires an aggregate/events declaration, got %s/%s", decl.Role, decl.InterestConstraint)
	}
	return &AggregateEventWorker{decl: decl, store: store, applier: applier, log: log}, nil
}

// DoWork implements consumer.Worker[Event].
func (w *AggregateEventWorker) DoWork(ctx context.Context, msg *busclient.AckableMessage[eventsourcing.Event]) error {
	evt := msg.Value

	if evt.Stream != w.decl.EntityName {
		msg.Ack(ctx)
		return nil
	}

	key := extractKey(evt.Payload, w.decl.KeyField, w.log)

	var (
		existing []byte
		stateKey string
	)
	if key != "" {
		var err error
		stateKey, err = state.Key(eventsourcing.RoleAggregate, w.decl.EntityName, key)
		if err != nil {
			return err
		}
		existing, err = w.store.Get(stateKey)
		if err != nil && !errors.Is(err, state.ErrNotFound) {
			return fmt.Errorf("load state at %s: %w", stateKey, err)
		}
	}

	ack, err := w.applier.ApplyEvent(ctx, eventsourcing.EventWithState{Event: evt, State: existing})
	if err != nil {
		w.log.Warn("event applier call failed, nacking", zap.String("aggregate", w.decl.EntityName), zap.Error(err))
		msg.Nack()
		return nil
	}

	if !ack.Succeeded {
		w.log.Warn("event applier reported failure, nacking",
			zap.String("aggregate", w.decl.EntityName), zap.String("error", ack.Error))
		msg.Nack()
		return nil
	}

	if stateKey == "" {
		// key_field was empty/absent; nothing to persist regardless of the
		// applier's returned state.
		msg.Ack(ctx)
		return nil
	}
	if ack.State != nil {
		if err := w.store.Put(stateKey, ack.State); err != nil {
			return fmt.Errorf("write state at %s: %w", stateKey, err)
		}
	} else {
		if err := w.store.Purge(stateKey); err != nil {
			return fmt.Errorf("purge state at %s: %w", stateKey, err)
		}
	}

	msg.Ack(ctx)
	return nil
}

// Run starts this worker's fetch-dispatch-settle loop against src, blocking
// until the context is canceled or the source is exhausted.
func (w *AggregateEventWorker) Run(ctx context.Context, src consumer.EventSource) error {
	return consumer.Run(ctx, src, w, w.log)
}
