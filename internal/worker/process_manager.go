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

// ProcessManagerWorker drives a long-running process across multiple
// events: it filters by the declared lifetime, loads (or, on the start
// event, skips loading) prior state, dispatches to the participant, and
// publishes any outbound commands before applying the returned state
// delta.
type ProcessManagerWorker struct {
	decl      eventsourcing.InterestDeclaration
	store     state.Store
	publisher busclient.Publisher
	handler   dispatch.ProcessManagerHandler
	log       *zap.Logger
}

// NewProcessManagerWorker builds the worker for a (ProcessManager, Events)
// declaration.
func NewProcessManagerWorker(decl eventsourcing.InterestDeclaration, store state.Store, publisher busclient.Publisher, handler dispatch.ProcessManagerHandler, log *zap.Logger) (*ProcessManagerWorker, error) {
	if decl.Role != eventsourcing.RoleProcessManager {
		return nil, fmt.Errorf("worker: process manager worker requires a process_manager declaration, got %s", decl.Role)
	}
	return &ProcessManagerWorker{decl: decl, store: store, publisher: publisher, handler: handler, log: log}, nil
}

// DoWork implements consumer.Worker[Event].
func (w *ProcessManagerWorker) DoWork(ctx context.Context, msg *busclient.AckableMessage[eventsourcing.Event]) error {
	evt := msg.Value
	lifetime := w.decl.Interest.ProcessManager

	if !w.decl.Interest.IsInterestedIn(evt.EventType, evt.Stream) {
		msg.Ack(ctx)
		return nil
	}

	key := extractKey(evt.Payload, w.decl.KeyField, w.log)

	var (
		existing []byte
		stateKey string
	)
	isStart := lifetime.StartsNewProcess(evt.EventType)
	if key != "" {
		var err error
		stateKey, err = state.Key(eventsourcing.RoleProcessManager, w.decl.EntityName, key)
		if err != nil {
			return err
		}
		if !isStart {
			existing, err = w.store.Get(stateKey)
			if err != nil && !errors.Is(err, state.ErrNotFound) {
				return fmt.Errorf("load state at %s: %w", stateKey, err)
			}
		}
	}

	ack, err := w.handler.HandleEvent(ctx, eventsourcing.EventWithState{Event: evt, State: existing})
	if err != nil {
		w.log.Warn("process manager call failed, nacking", zap.String("process_manager", w.decl.EntityName), zap.Error(err))
		msg.Nack()
		return nil
	}

	// Commands are published before the state delta is applied: they are
	// the externally observable effect, and aggregates handle redelivered
	// duplicates idempotently. Applying state first could let a crash
	// between the two steps silently advance the process with no command
	// ever emitted.
	for _, out := range ack.Commands {
		cmd := eventsourcing.Command{CommandType: out.CommandType, Key: out.AggregateKey, Data: out.JSONPayload}
		if err := w.publisher.PublishCommand(out.AggregateStream, cmd); err != nil {
			w.log.Warn("output command publish failed, nacking",
				zap.String("process_manager", w.decl.EntityName), zap.String("command_type", out.CommandType), zap.Error(err))
			msg.Nack()
			return nil
		}
	}

	if stateKey != "" {
		if ack.State != nil {
			if err := w.store.Put(stateKey, ack.State); err != nil {
				return fmt.Errorf("write state at %s: %w", stateKey, err)
			}
		} else {
			if err := w.store.Purge(stateKey); err != nil {
				return fmt.Errorf("purge state at %s: %w", stateKey, err)
			}
		}
	}

	msg.Ack(ctx)
	return nil
}

// Run starts this worker's fetch-dispatch-settle loop against src, blocking
// until the context is canceled or the source is exhausted.
func (w *ProcessManagerWorker) Run(ctx context.Context, src consumer.EventSource) error {
	return consumer.Run(ctx, src, w, w.log)
}
