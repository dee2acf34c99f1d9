// Package dispatch defines the abstract contract between the runtime and
// domain participants. The runtime never knows how a participant is
// actually reached — in-process call, RPC, WASM guest invocation — it only
// needs something that implements these interfaces for a given binding.
package dispatch

import (
	"context"

	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
)

// CommandHandler is implemented by aggregate participants to turn a
// command into the events it produces.
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd eventsourcing.StatefulCommand) ([]eventsourcing.Event, error)
}

// EventApplier is implemented by aggregate participants to fold an event
// into their persisted state.
type EventApplier interface {
	ApplyEvent(ctx context.Context, evt eventsourcing.EventWithState) (eventsourcing.StateAck, error)
}

// ProcessManagerHandler is implemented by process-manager participants to
// react to a lifetime event with a state delta and outbound commands.
type ProcessManagerHandler interface {
	HandleEvent(ctx context.Context, evt eventsourcing.EventWithState) (eventsourcing.ProcessManagerAck, error)
}

// StatelessEventApplier is implemented by projector and notifier
// participants to react to an event with no persisted state involved.
type StatelessEventApplier interface {
	ApplyStatelessEvent(ctx context.Context, evt eventsourcing.Event) (eventsourcing.StatelessAck, error)
}

// Participant is the full set of capabilities a registered binding may
// expose. A concrete participant only needs to implement whichever
// interfaces correspond to its declared role; the runtime type-asserts the
// one it needs when a worker is constructed for a given declaration.
type Participant interface {
	CommandHandler
	EventApplier
	ProcessManagerHandler
	StatelessEventApplier
}

// Registry resolves a binding's participant ID to the callable that
// implements it. Concrete registries live outside this package — this is
// host-integration glue that makes a participant addressable, and the core
// only needs the capability, not a specific transport.
type Registry interface {
	Resolve(participantID string) (any, bool)
}
