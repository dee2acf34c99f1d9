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

func eventDecl(entity, keyField string) eventsourcing.InterestDeclaration {
	return eventsourcing.InterestDeclaration{
		EntityName:         entity,
		Role:               eventsourcing.RoleAggregate,
		InterestConstraint: eventsourcing.ConstraintEvents,
		KeyField:           keyField,
		Interest:           eventsourcing.ActorInterest{Kind: eventsourcing.InterestAggregateStream, AggregateStream: entity},
	}
}

func TestAggregateEventWorker_SkipsEventFromOtherStream(t *testing.T) {
	store := newMemStore()
	applier := &fakeEventApplier{}
	w, err := worker.NewAggregateEventWorker(eventDecl("bankaccount", "account_number"), store, applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	msg := busclient.NewAckableMessage(eventsourcing.Event{EventType: "order_shipped", Stream: "order"}, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.acked())
}

func TestAggregateEventWorker_WritesStateOnSuccess(t *testing.T) {
	store := newMemStore()
	applier := &fakeEventApplier{ack: eventsourcing.StateAck{Succeeded: true, State: []byte(`{"balance":250}`)}}
	w, err := worker.NewAggregateEventWorker(eventDecl("bankaccount", "account_number"), store, applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	evt := eventsourcing.Event{EventType: "funds_deposited", Stream: "bankaccount", Payload: []byte(`{"account_number":"ACT123","amount":50}`)}
	msg := busclient.NewAckableMessage(evt, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.acked())
	got, err := store.Get("agg.bankaccount.ACT123")
	require.NoError(t, err)
	assert.Equal(t, `{"balance":250}`, string(got))
}

func TestAggregateEventWorker_PurgesStateWhenNilReturned(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Put("agg.bankaccount.ACT123", []byte("old")))
	applier := &fakeEventApplier{ack: eventsourcing.StateAck{Succeeded: true, State: nil}}
	w, err := worker.NewAggregateEventWorker(eventDecl("bankaccount", "account_number"), store, applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	evt := eventsourcing.Event{EventType: "account_closed", Stream: "bankaccount", Payload: []byte(`{"account_number":"ACT123"}`)}
	msg := busclient.NewAckableMessage(evt, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	_, err = store.Get("agg.bankaccount.ACT123")
	assert.Error(t, err)
}

func TestAggregateEventWorker_NacksOnApplierFailure(t *testing.T) {
	store := newMemStore()
	applier := &fakeEventApplier{ack: eventsourcing.StateAck{Succeeded: false, Error: "invalid transition"}}
	w, err := worker.NewAggregateEventWorker(eventDecl("bankaccount", "account_number"), store, applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	evt := eventsourcing.Event{EventType: "funds_deposited", Stream: "bankaccount", Payload: []byte(`{"account_number":"ACT123"}`)}
	msg := busclient.NewAckableMessage(evt, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.nacked())
}

func TestAggregateEventWorker_NacksOnApplierError(t *testing.T) {
	store := newMemStore()
	applier := &fakeEventApplier{err: errors.New("dispatch timeout")}
	w, err := worker.NewAggregateEventWorker(eventDecl("bankaccount", "account_number"), store, applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	evt := eventsourcing.Event{EventType: "funds_deposited", Stream: "bankaccount", Payload: []byte(`{"account_number":"ACT123"}`)}
	msg := busclient.NewAckableMessage(evt, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.nacked())
}

func TestAggregateEventWorker_EmptyKeyFieldSkipsStateLoad(t *testing.T) {
	store := newMemStore()
	applier := &fakeEventApplier{ack: eventsourcing.StateAck{Succeeded: true, State: []byte("ignored")}}
	w, err := worker.NewAggregateEventWorker(eventDecl("bankaccount", ""), store, applier, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	evt := eventsourcing.Event{EventType: "funds_deposited", Stream: "bankaccount", Payload: []byte(`{}`)}
	msg := busclient.NewAckableMessage(evt, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.acked())
	assert.Empty(t, store.data)
}
