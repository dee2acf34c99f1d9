package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/consumer"
	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
	"github.com/cosmonic-labs/concordance/internal/runtime"
)

type fakeRegistry struct {
	participants map[string]any
}

func (r *fakeRegistry) Resolve(participantID string) (any, bool) {
	p, ok := r.participants[participantID]
	return p, ok
}

func TestDispatcher_AddBinding_RejectsInvalidBinding(t *testing.T) {
	d := runtime.NewDispatcher(nil, nil, nil, &fakeRegistry{}, consumer.NewManager(zap.NewNop()), zap.NewNop())

	err := d.AddBinding(context.Background(), eventsourcing.Binding{ParticipantID: "actor1"})
	assert.Error(t, err)
}

func TestDispatcher_AddBinding_ErrorsWhenParticipantUnresolved(t *testing.T) {
	d := runtime.NewDispatcher(nil, nil, nil, &fakeRegistry{participants: map[string]any{}}, consumer.NewManager(zap.NewNop()), zap.NewNop())

	err := d.AddBinding(context.Background(), eventsourcing.Binding{
		ParticipantID: "actor1",
		Values: map[string]string{
			"role":     "notifier",
			"interest": "account_opened",
			"name":     "bankaccount",
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no participant registered")
}

type wrongShapeParticipant struct{}

func TestDispatcher_AddBinding_ErrorsWhenParticipantLacksInterface(t *testing.T) {
	registry := &fakeRegistry{participants: map[string]any{"actor1": &wrongShapeParticipant{}}}
	d := runtime.NewDispatcher(nil, nil, nil, registry, consumer.NewManager(zap.NewNop()), zap.NewNop())

	err := d.AddBinding(context.Background(), eventsourcing.Binding{
		ParticipantID: "actor1",
		Values: map[string]string{
			"role":     "notifier",
			"interest": "account_opened",
			"name":     "bankaccount",
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not implement StatelessEventApplier")
}

func TestDispatcher_RemoveBinding_IsNoop(t *testing.T) {
	d := runtime.NewDispatcher(nil, nil, nil, &fakeRegistry{}, consumer.NewManager(zap.NewNop()), zap.NewNop())
	assert.NoError(t, d.RemoveBinding(context.Background(), "actor1"))
}
