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

func commandDecl(entity string) eventsourcing.InterestDeclaration {
	return eventsourcing.InterestDeclaration{
		EntityName:         entity,
		Role:               eventsourcing.RoleAggregate,
		InterestConstraint: eventsourcing.ConstraintCommands,
	}
}

func TestAggregateCommandWorker_PublishesEventsAndAcks(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	handler := &fakeCommandHandler{events: []eventsourcing.Event{
		{EventType: "funds_deposited", Payload: []byte(`{"amount":50}`)},
	}}
	w, err := worker.NewAggregateCommandWorker(commandDecl("bankaccount"), store, pub, handler, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	msg := busclient.NewAckableMessage(eventsourcing.Command{CommandType: "deposit_funds", Key: "ACT123", Data: []byte(`{"amount":50}`)}, acker, zap.NewNop())

	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.True(t, acker.acked())
	assert.False(t, acker.nacked())
	require.Len(t, pub.events, 1)
	assert.Equal(t, "funds_deposited", pub.events[0].EventType)
	assert.Equal(t, "bankaccount", pub.events[0].Stream)
}

func TestAggregateCommandWorker_NacksOnHandlerError(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	handler := &fakeCommandHandler{err: errors.New("boom")}
	w, err := worker.NewAggregateCommandWorker(commandDecl("bankaccount"), store, pub, handler, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	msg := busclient.NewAckableMessage(eventsourcing.Command{CommandType: "deposit_funds", Key: "ACT123"}, acker, zap.NewNop())

	require.NoError(t, w.DoWork(context.Background(), msg))
	assert.True(t, acker.nacked())
	assert.False(t, acker.acked())
}

func TestAggregateCommandWorker_NacksOnPublishFailure(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{err: errors.New("publish down")}
	handler := &fakeCommandHandler{events: []eventsourcing.Event{{EventType: "funds_deposited"}}}
	w, err := worker.NewAggregateCommandWorker(commandDecl("bankaccount"), store, pub, handler, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	msg := busclient.NewAckableMessage(eventsourcing.Command{CommandType: "deposit_funds", Key: "ACT123"}, acker, zap.NewNop())

	require.NoError(t, w.DoWork(context.Background(), msg))
	assert.True(t, acker.nacked())
}

func TestAggregateCommandWorker_LoadsExistingState(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Put("agg.bankaccount.ACT123", []byte(`{"balance":200}`)))
	pub := &fakePublisher{}
	var capturedState []byte
	handler := &fakeCommandHandlerCapture{capture: &capturedState}
	w, err := worker.NewAggregateCommandWorker(commandDecl("bankaccount"), store, pub, handler, zap.NewNop())
	require.NoError(t, err)

	acker := &fakeAcker{}
	msg := busclient.NewAckableMessage(eventsourcing.Command{CommandType: "withdraw_funds", Key: "ACT123"}, acker, zap.NewNop())
	require.NoError(t, w.DoWork(context.Background(), msg))

	assert.Equal(t, []byte(`{"balance":200}`), capturedState)
}

type fakeCommandHandlerCapture struct {
	capture *[]byte
}

func (f *fakeCommandHandlerCapture) HandleCommand(ctx context.Context, cmd eventsourcing.StatefulCommand) ([]eventsourcing.Event, error) {
	*f.capture = cmd.State
	return nil, nil
}

func TestNewAggregateCommandWorker_RejectsWrongDeclaration(t *testing.T) {
	decl := eventsourcing.InterestDeclaration{Role: eventsourcing.RoleAggregate, InterestConstraint: eventsourcing.ConstraintEvents}
	_, err := worker.NewAggregateCommandWorker(decl, newMemStore(), &fakePublisher{}, &fakeCommandHandler{}, zap.NewNop())
	assert.Error(t, err)
}
