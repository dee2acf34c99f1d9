package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/busclient"
	"github.com/cosmonic-labs/concordance/internal/consumer"
	"github.com/cosmonic-labs/concordance/internal/dispatch"
	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
)

// GeneralEventWorker drives projectors and notifiers: stateless handlers
// that filter by an explicit event-type list, dispatch the matching event,
// and ack or nack based on the outcome. Projectors and notifiers share
// this shape exactly; the only difference between them is the role
// recorded on the declaration for naming and dispatch-interface resolution
// purposes.
type GeneralEventWorker struct {
	decl    eventsourcing.InterestDeclaration
	applier dispatch.StatelessEventApplier
	log     *zap.Logger
}

// NewGeneralEventWorker builds the worker for a (Projector|Notifier,
// Events) declaration.
func NewGeneralEventWorker(decl eventsourcing.InterestDeclaration, applier dispatch.StatelessEventApplier, log *zap.Logger) (*GeneralEventWorker, error) {
	if decl.Role != eventsourcing.RoleProjector && decl.Role != eventsourcing.RoleNotifier {
		return nil, fmt.Errorf("worker: general event worker requires a projector or notifier declaration, got %s", decl.Role)
	}
	return &GeneralEventWorker{decl: decl, applier: applier, log: log}, nil
}

// DoWork implements consumer.Worker[Event].
func (w *GeneralEventWorker) DoWork(ctx context.Context, msg *busclient.AckableMessage[eventsourcing.Event]) error {
	evt := msg.Value

	if !w.decl.IsInterestedInEvent(evt) {
		msg.Ack(ctx)
		return nil
	}

	ack, err := w.applier.ApplyStatelessEvent(ctx, evt)
	if err != nil {
		w.log.Warn("stateless event applier call failed, nacking", zap.String("entity", w.decl.EntityName), zap.Error(err))
		msg.Nack()
		return nil
	}
	if !ack.Succeeded {
		w.log.Warn("stateless event applier reported failure, nacking",
			zap.String("entity", w.decl.EntityName), zap.String("error", ack.Error))
		msg.Nack()
		return nil
	}

	msg.Ack(ctx)
	return nil
}

// Run starts this worker's fetch-dispatch-settle loop against src, blocking
// until the context is canceled or the source is exhausted.
func (w *GeneralEventWorker) Run(ctx context.Context, src consumer.EventSource) error {
	return consumer.Run(ctx, src, w, w.log)
}
