package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/busclient"
	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
	"github.com/cosmonic-labs/concordance/internal/worker"
)

func notifierDecl(entity string, events ...string) eventsourcing.InterestDeclaration {
	return eventsourcing.InterestDeclaration{
		EntityName: entity,
		Role:       eventsourcing.RoleNotifier,
		Interest:   eventsourcing.ActorInterest{Kind: eventsourcing.InterestEventList, EventList: events},
	}
}

func TestGeneralEventWorker_SkipsUninterestedEvent(t *testing.T) {
	applier := &fakeStatelessApplier{}
	w, err := worker.NewGeneralEventWorker(notifierDecl("order", "order_shipped"), applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	msg := busclient.NewAckableMessage(eventsourcing.Event{EventType: "order_created"}, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.acked())
}

func TestGeneralEventWorker_AcksOnSuccess(t *testing.T) {
	applier := &fakeStatelessApplier{ack: eventsourcing.StatelessAck{Succeeded: true}}
	w, err := worker.NewGeneralEventWorker(notifierDecl("order", "order_shipped"), applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	msg := busclient.NewAckableMessage(eventsourcing.Event{EventType: "order_shipped"}, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.acked())
}

func TestGeneralEventWorker_NacksOnApplierFailure(t *testing.T) {
	applier := &fakeStatelessApplier{ack: eventsourcing.StatelessAck{Succeeded: false, Error: "smtp down"}}
	w, err := worker.NewGeneralEventWorker(notifierDecl("order", "order_shipped"), applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	msg := busclient.NewAckableMessage(eventsourcing.Event{EventType: "order_shipped"}, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.nacked())
}

func TestGeneralEventWorker_NacksOnApplierError(t *testing.T) {
	applier := &fakeStatelessApplier{err: errors.New("dispatch timeout")}
	w, err := worker.NewGeneralEventWorker(notifierDecl("order", "order_shipped"), applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	msg := busclient.NewAckableMessage(eventsourcing.Event{EventType: "order_shipped"}, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.nacked())
}

func TestNewGeneralEventWorker_RejectsWrongRole(t *testing.T) {
	decl := eventsourcing.InterestDeclaration{Role: eventsourcing.RoleAggregate}
	_, err := worker.NewGeneralEventWorker(decl, &fakeStatelessApplier{}, zap.NewNop())
	assert.Error(t, err)
}
