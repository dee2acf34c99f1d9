// Package state implements the keyed blob store workers use to persist
// aggregate and process-manager state between event applications, backed
// by the bus's KV bucket.
package state

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
)

// ErrUnsupportedRole is returned when a state key is requested for a role
// that never holds state under this discipline.
var ErrUnsupportedRole = errors.New("state: role does not hold persisted state")

// ErrNotFound is returned by Get when no value exists at a key.
var ErrNotFound = errors.New("state: key not found")

// Store is a keyed blob store: put-with-value writes, reads that return
// the stored bytes or ErrNotFound, and purges that discard history as well
// as the head value. Callers never need inter-key locking: at most one
// worker is ever live per partition key, guaranteed upstream by the
// commands work-queue for aggregates and by the single-consumer-per-
// process-manager durable for process managers.
//
// Workers depend on this interface rather than the concrete NATS-backed
// implementation so they can be exercised against an in-memory fake.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Purge(key string) error
}

// Key computes the role-aware state key for an entity/partition-key pair.
// Only Aggregate and ProcessManager roles hold state; any other role is a
// programming error upstream and is rejected here rather than silently
// producing a key nothing will ever read.
func Key(role eventsourcing.ActorRole, entity, key string) (string, error) {
	switch role {
	case eventsourcing.RoleAggregate:
		return fmt.Sprintf("agg.%s.%s", entity, key), nil
	case eventsourcing.RoleProcessManager:
		return fmt.Sprintf("pm.%s.%s", entity, key), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedRole, role)
	}
}

// NatsStore is the bus-backed Store implementation, wrapping a
// provisioned JetStream KV bucket.
type NatsStore struct {
	kv nats.KeyValue
}

// New wraps an already-provisioned KV bucket.
func New(kv nats.KeyValue) *NatsStore {
	return &NatsStore{kv: kv}
}

// Get reads the bytes stored at key, or ErrNotFound if nothing is there.
func (s *NatsStore) Get(key string) ([]byte, error) {
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("state: get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Put writes value at key, overwriting any existing value.
func (s *NatsStore) Put(key string, value []byte) error {
	if _, err := s.kv.Put(key, value); err != nil {
		return fmt.Errorf("state: put %s: %w", key, err)
	}
	return nil
}

// Purge removes key and its history. Purging an already-absent key is a
// no-op success, not an error — deletes are idempotent.
func (s *NatsStore) Purge(key string) error {
	if err := s.kv.Purge(key); err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("state: purge %s: %w", key, err)
	}
	return nil
}
