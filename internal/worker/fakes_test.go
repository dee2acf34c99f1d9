package worker_test

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
	"github.com/cosmonic-labs/concordance/internal/state"
)

// memStore is an in-memory state.Store fake used across worker tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, state.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Purge(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// fakeAcker is a no-network stand-in for the Acker interface.
type fakeAcker struct {
	mu       sync.Mutex
	ackCalls int
	nakCalls int
}

func (f *fakeAcker) AckSync(opts ...nats.AckOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ackCalls++
	return nil
}

func (f *fakeAcker) Nak(opts ...nats.AckOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nakCalls++
	return nil
}

func (f *fakeAcker) acked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ackCalls > 0
}

func (f *fakeAcker) nacked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nakCalls > 0
}

// fakeCommandHandler and friends let tests script a participant's response
// without a real dispatch transport.
type fakeCommandHandler struct {
	events []eventsourcing.Event
	err    error
}

func (f *fakeCommandHandler) HandleCommand(ctx context.Context, cmd eventsourcing.StatefulCommand) ([]eventsourcing.Event, error) {
	return f.events, f.err
}

type fakeEventApplier struct {
	ack eventsourcing.StateAck
	err error
}

func (f *fakeEventApplier) ApplyEvent(ctx context.Context, evt eventsourcing.EventWithState) (eventsourcing.StateAck, error) {
	return f.ack, f.err
}

type fakeProcessManagerHandler struct {
	ack eventsourcing.ProcessManagerAck
	err error
}

func (f *fakeProcessManagerHandler) HandleEvent(ctx context.Context, evt eventsourcing.EventWithState) (eventsourcing.ProcessManagerAck, error) {
	return f.ack, f.err
}

type fakeStatelessApplier struct {
	ack eventsourcing.StatelessAck
	err error
}

func (f *fakeStatelessApplier) ApplyStatelessEvent(ctx context.Context, evt eventsourcing.Event) (eventsourcing.StatelessAck, error) {
	return f.ack, f.err
}

// fakePublisher records published events/commands in memory and can be
// scripted to fail, standing in for a real bus publish.
type fakePublisher struct {
	mu       sync.Mutex
	events   []eventsourcing.Event
	commands []eventsourcing.Command
	err      error
}

func (f *fakePublisher) PublishEvent(evt eventsourcing.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

func (f *fakePublisher) PublishCommand(aggregateStream string, cmd eventsourcing.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.commands = append(f.commands, cmd)
	return nil
}
