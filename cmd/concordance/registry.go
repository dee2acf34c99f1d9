package main

import "github.com/cosmonic-labs/concordance/internal/dispatch"

// staticRegistry is the process-local dispatch.Registry this binary wires
// up: participants compiled into the same process register themselves by
// ID before the dispatcher processes any bindings. This is the simplest
// host integration — an out-of-process participant transport (RPC, WASM
// guest invocation) is a different Registry implementation living outside
// this package, never a concern of the runtime core.
type staticRegistry struct {
	participants map[string]any
}

func newStaticRegistry() *staticRegistry {
	return &staticRegistry{participants: make(map[string]any)}
}

// Register binds participantID to participant, which must implement at
// least one of dispatch's role interfaces.
func (r *staticRegistry) Register(participantID string, participant any) {
	r.participants[participantID] = participant
}

// Resolve implements dispatch.Registry.
func (r *staticRegistry) Resolve(participantID string) (any, bool) {
	p, ok := r.participants[participantID]
	return p, ok
}

var _ dispatch.Registry = (*staticRegistry)(nil)
