package eventsourcing

import (
	"fmt"

	"github.com/iancoleman/strcase"
)

// ActorRole identifies the kind of participant an interest declaration was
// derived for.
type ActorRole int

const (
	RoleUnknown ActorRole = iota
	RoleAggregate
	RoleProjector
	RoleProcessManager
	RoleNotifier
)

func (r ActorRole) String() string {
	switch r {
	case RoleAggregate:
		return "aggregate"
	case RoleProjector:
		return "projector"
	case RoleProcessManager:
		return "process manager"
	case RoleNotifier:
		return "notifier"
	default:
		return "unknown"
	}
}

// parseActorRole maps a binding's role value (already lowercased/trimmed)
// to an ActorRole, returning RoleUnknown for anything unrecognized.
func parseActorRole(raw string) ActorRole {
	switch raw {
	case "aggregate":
		return RoleAggregate
	case "projector":
		return RoleProjector
	case "process_manager":
		return RoleProcessManager
	case "notifier":
		return RoleNotifier
	default:
		return RoleUnknown
	}
}

// InterestConstraint distinguishes the two durable consumers an aggregate
// requires; every other role only ever carries Events.
type InterestConstraint int

const (
	ConstraintEvents InterestConstraint = iota
	ConstraintCommands
)

func (c InterestConstraint) String() string {
	if c == ConstraintCommands {
		return "commands"
	}
	return "events"
}

// ProcessManagerLifetime names the event types that start, advance, and
// stop a process manager's long-running instance. All names are
// snake-cased at parse time.
type ProcessManagerLifetime struct {
	Start   string   `json:"start"`
	Advance []string `json:"advance"`
	Stop    []string `json:"stop"`
}

func (l ProcessManagerLifetime) isInterestedIn(eventType string) bool {
	target := strcase.ToSnake(eventType)
	if l.Start == target {
		return true
	}
	for _, s := range l.Stop {
		if s == target {
			return true
		}
	}
	for _, s := range l.Advance {
		if s == target {
			return true
		}
	}
	return false
}

// StartsNewProcess reports whether eventType is this lifetime's start
// event, the case that skips loading pre-existing state.
func (l ProcessManagerLifetime) StartsNewProcess(eventType string) bool {
	return l.Start == strcase.ToSnake(eventType)
}

// ActorInterest is the tagged variant describing what an entity wants to
// receive. Exactly one of the fields is meaningful, selected by Kind.
type ActorInterest struct {
	Kind ActorInterestKind

	// AggregateStream is set when Kind == InterestAggregateStream.
	AggregateStream string
	// EventList is set when Kind == InterestEventList.
	EventList []string
	// ProcessManager is set when Kind == InterestProcessManager.
	ProcessManager ProcessManagerLifetime
}

// ActorInterestKind discriminates ActorInterest's variants.
type ActorInterestKind int

const (
	InterestNone ActorInterestKind = iota
	InterestAggregateStream
	InterestEventList
	InterestProcessManager
)

// IsInterestedIn reports whether this interest matches an event, compared
// by stream for aggregates and by event type for every other kind.
func (a ActorInterest) IsInterestedIn(eventType, stream string) bool {
	switch a.Kind {
	case InterestAggregateStream:
		return stream == a.AggregateStream
	case InterestEventList:
		for _, et := range a.EventList {
			if et == eventType {
				return true
			}
		}
		return false
	case InterestProcessManager:
		return a.ProcessManager.isInterestedIn(eventType)
	default:
		return false
	}
}

// InterestDeclaration uniquely identifies one durable consumer for one
// participant. Equality for the consumer manager's map is over
// (ParticipantID, EntityName, Role, Interest, InterestConstraint) — Binding
// deliberately does not participate, so a republished binding with the
// same shape reuses the running consumer.
type InterestDeclaration struct {
	ParticipantID      string
	EntityName         string
	Role               ActorRole
	InterestConstraint InterestConstraint
	Interest           ActorInterest
	KeyField           string
	MaxBatch           int
	Binding            Binding
}

// EqualityKey returns the comparable, binding-independent identity used as
// the consumer manager's map key.
func (d InterestDeclaration) EqualityKey() string {
	return fmt.Sprintf("%s|%s|%d|%d|%s",
		d.ParticipantID, d.EntityName, d.Role, d.InterestConstraint, interestKeyPart(d.Interest))
}

func interestKeyPart(i ActorInterest) string {
	switch i.Kind {
	case InterestAggregateStream:
		return "agg:" + i.AggregateStream
	case InterestEventList:
		return fmt.Sprintf("list:%v", i.EventList)
	case InterestProcessManager:
		return fmt.Sprintf("pm:%s/%v/%v", i.ProcessManager.Start, i.ProcessManager.Advance, i.ProcessManager.Stop)
	default:
		return "none"
	}
}

// IsInterestedInEvent reports whether this declaration's interest matches
// the given event.
func (d InterestDeclaration) IsInterestedInEvent(evt Event) bool {
	return d.Interest.IsInterestedIn(evt.EventType, evt.Stream)
}

// ConsumerName derives the deterministic durable consumer name for this
// declaration.
func (d InterestDeclaration) ConsumerName() string {
	switch d.Role {
	case RoleAggregate:
		if d.InterestConstraint == ConstraintCommands {
			return "AGG_CMD_" + d.EntityName
		}
		return "AGG_EVT_" + d.EntityName
	case RoleProcessManager:
		return "PM_" + d.EntityName
	case RoleNotifier:
		return "NOTIFIER_" + d.EntityName
	case RoleProjector:
		return "PROJ_" + d.EntityName
	default:
		return ""
	}
}

func (d InterestDeclaration) String() string {
	return fmt.Sprintf("%s (%s) - source type: %s, target: %s",
		d.EntityName, d.Role, d.InterestConstraint, d.Binding.ParticipantID)
}

// aggregateForCommands builds the Commands-constrained declaration for an
// aggregate binding.
func aggregateForCommands(entityName, keyField string, b Binding) InterestDeclaration {
	return InterestDeclaration{
		ParticipantID:      b.ParticipantID,
		EntityName:         entityName,
		Role:               RoleAggregate,
		InterestConstraint: ConstraintCommands,
		Interest:           ActorInterest{Kind: InterestAggregateStream, AggregateStream: entityName},
		KeyField:           keyField,
		MaxBatch:           b.MaxMessagesPerBatch,
		Binding:            b,
	}
}

// aggregateForEvents builds the Events-constrained declaration for an
// aggregate binding.
func aggregateForEvents(entityName, keyField string, b Binding) InterestDeclaration {
	return InterestDeclaration{
		ParticipantID:      b.ParticipantID,
		EntityName:         entityName,
		Role:               RoleAggregate,
		InterestConstraint: ConstraintEvents,
		Interest:           ActorInterest{Kind: InterestAggregateStream, AggregateStream: entityName},
		KeyField:           keyField,
		MaxBatch:           b.MaxMessagesPerBatch,
		Binding:            b,
	}
}

// newInterestDeclaration builds the single Events-constrained declaration
// used by every non-aggregate role.
func newInterestDeclaration(entityName string, role ActorRole, keyField string, interest ActorInterest, b Binding) InterestDeclaration {
	return InterestDeclaration{
		ParticipantID:      b.ParticipantID,
		EntityName:         entityName,
		Role:               role,
		InterestConstraint: ConstraintEvents,
		Interest:           interest,
		KeyField:           keyField,
		MaxBatch:           b.MaxMessagesPerBatch,
		Binding:            b,
	}
}
