package consumer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
)

// handle tracks a single registered worker's lifetime so Manager can tell
// a live registration from a finished one.
type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *handle) isLive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Manager holds the map from interest declaration to running worker task
// and provides idempotent registration. All methods are safe for
// concurrent use.
type Manager struct {
	mu      sync.RWMutex
	handles map[string]*handle
	decls   map[string]eventsourcing.InterestDeclaration
	log     *zap.Logger
}

// NewManager creates an empty consumer manager.
func NewManager(log *zap.Logger) *Manager {
	return &Manager{
		handles: make(map[string]*handle),
		decls:   make(map[string]eventsourcing.InterestDeclaration),
		log:     log,
	}
}

// Add registers decl with a background task running run, unless a live
// worker is already registered for an equal declaration, in which case it
// returns without changing any state. run is expected to block until its
// context is canceled or its source is exhausted.
func (m *Manager) Add(ctx context.Context, decl eventsourcing.InterestDeclaration, run func(context.Context) error) {
	key := decl.EqualityKey()

	m.mu.Lock()
	if existing, ok := m.handles[key]; ok && existing.isLive() {
		m.mu.Unlock()
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	m.handles[key] = h
	m.decls[key] = decl
	m.mu.Unlock()

	go func() {
		defer close(h.done)
		if err := run(workerCtx); err != nil {
			m.log.Warn("worker task terminated", zap.String("consumer", decl.ConsumerName()), zap.Error(err))
		}
	}()
}

// Has reports whether a live (not finished) handle exists for decl.
func (m *Manager) Has(decl eventsourcing.InterestDeclaration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[decl.EqualityKey()]
	return ok && h.isLive()
}

// Consumers returns a snapshot of every currently live declaration.
func (m *Manager) Consumers() []eventsourcing.InterestDeclaration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]eventsourcing.InterestDeclaration, 0, len(m.handles))
	for key, h := range m.handles {
		if h.isLive() {
			out = append(out, m.decls[key])
		}
	}
	return out
}

// Remove cancels the worker task registered for decl, and returns an error
// if no worker was ever registered for an equal declaration. This is the
// mechanism a binding-removal handler would use; the runtime's dispatcher
// currently never calls it (removal is a documented no-op — see the
// dispatcher package), but Manager supports it directly.
func (m *Manager) Remove(decl eventsourcing.InterestDeclaration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[decl.EqualityKey()]
	if !ok {
		return fmt.Errorf("consumer: no registered worker for %s", decl)
	}
	h.cancel()
	return nil
}
