// Package runtime wires interest declarations to running workers. It is
// the Go equivalent of the provider's link-lifecycle callbacks: a binding
// appears, the dispatcher derives one or more interest declarations from
// it, resolves the bound participant, picks the worker class the
// declaration's role/constraint calls for, and registers a consumer loop
// with the consumer manager.
package runtime

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/busclient"
	"github.com/cosmonic-labs/concordance/internal/consumer"
	"github.com/cosmonic-labs/concordance/internal/dispatch"
	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
	"github.com/cosmonic-labs/concordance/internal/state"
	"github.com/cosmonic-labs/concordance/internal/worker"
)

// Dispatcher reacts to binding add/remove notifications from whatever
// host integration embeds this runtime, and keeps the consumer manager's
// set of running workers in sync with the declared bindings.
type Dispatcher struct {
	js        nats.JetStreamContext
	store     state.Store
	publisher busclient.Publisher
	registry  dispatch.Registry
	manager   *consumer.Manager
	log       *zap.Logger
}

// NewDispatcher builds a Dispatcher over the given bus/state handles. The
// registry resolves a binding's participant ID to the handler interfaces
// its declared role requires.
func NewDispatcher(js nats.JetStreamContext, store state.Store, publisher busclient.Publisher, registry dispatch.Registry, manager *consumer.Manager, log *zap.Logger) *Dispatcher {
	return &Dispatcher{js: js, store: store, publisher: publisher, registry: registry, manager: manager, log: log}
}

// AddBinding derives the interest declarations carried by b, resolves each
// declaration's participant, and registers the matching worker with the
// consumer manager. Registration is idempotent per declaration identity,
// so re-delivering the same binding is harmless.
func (d *Dispatcher) AddBinding(ctx context.Context, b eventsourcing.Binding) error {
	decls, err := eventsourcing.FromBinding(b)
	if err != nil {
		return fmt.Errorf("runtime: deriving interest from binding %s: %w", b.ParticipantID, err)
	}

	for _, decl := range decls {
		if err := d.addDeclaration(ctx, decl); err != nil {
			return fmt.Errorf("runtime: registering %s: %w", decl, err)
		}
	}
	return nil
}

// RemoveBinding is a documented no-op: this runtime does not tear down or
// pause a participant's consumers when its binding disappears. A
// participant that comes back later resumes from where its durable
// consumer left off, which is the behavior actually wanted when a binding
// is dropped transiently (e.g. during a redeploy) rather than permanently.
func (d *Dispatcher) RemoveBinding(ctx context.Context, participantID string) error {
	return nil
}

func (d *Dispatcher) addDeclaration(ctx context.Context, decl eventsourcing.InterestDeclaration) error {
	participant, ok := d.registry.Resolve(decl.ParticipantID)
	if !ok {
		return fmt.Errorf("no participant registered for %s", decl.ParticipantID)
	}

	switch {
	case decl.Role == eventsourcing.RoleAggregate && decl.InterestConstraint == eventsourcing.ConstraintCommands:
		handler, ok := participant.(dispatch.CommandHandler)
		if !ok {
			return fmt.Errorf("participant %s does not implement CommandHandler", decl.ParticipantID)
		}
		src, err := consumer.NewCommandConsumer(d.js, decl, d.log)
		if err != nil {
			return err
		}
		w, err := worker.NewAggregateCommandWorker(decl, d.store, d.publisher, handler, d.log)
		if err != nil {
			return err
		}
		d.manager.Add(ctx, decl, func(ctx context.Context) error { return w.Run(ctx, src) })

	case decl.Role == eventsourcing.RoleAggregate && decl.InterestConstraint == eventsourcing.ConstraintEvents:
		applier, ok := participant.(dispatch.EventApplier)
		if !ok {
			return fmt.Errorf("participant %s does not implement EventApplier", decl.ParticipantID)
		}
		src, err := consumer.NewEventConsumer(d.js, decl, d.log)
		if err != nil {
			return err
		}
		w, err := worker.NewAggregateEventWorker(decl, d.store, applier, d.log)
		if err != nil {
			return err
		}
		d.manager.Add(ctx, decl, func(ctx context.Context) error { return w.Run(ctx, src) })

	case decl.Role == eventsourcing.RoleProcessManager:
		handler, ok := participant.(dispatch.ProcessManagerHandler)
		if !ok {
			return fmt.Errorf("participant %s does not implement ProcessManagerHandler", decl.ParticipantID)
		}
		src, err := consumer.NewEventConsumer(d.js, decl, d.log)
		if err != nil {
			return err
		}
		w, err := worker.NewProcessManagerWorker(decl, d.store, d.publisher, handler, d.log)
		if err != nil {
			return err
		}
		d.manager.Add(ctx, decl, func(ctx context.Context) error { return w.Run(ctx, src) })

	case decl.Role == eventsourcing.RoleProjector || decl.Role == eventsourcing.RoleNotifier:
		applier, ok := participant.(dispatch.StatelessEventApplier)
		if !ok {
			return fmt.Errorf("participant %s does not implement StatelessEventApplier", decl.ParticipantID)
		}
		src, err := consumer.NewEventConsumer(d.js, decl, d.log)
		if err != nil {
			return err
		}
		w, err := worker.NewGeneralEventWorker(decl, applier, d.log)
		if err != nil {
			return err
		}
		d.manager.Add(ctx, decl, func(ctx context.Context) error { return w.Run(ctx, src) })

	default:
		return fmt.Errorf("unroutable declaration role %s/%s", decl.Role, decl.InterestConstraint)
	}

	return nil
}
