package consumer

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/busclient"
	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
)

// CommandSource is a Source[Command] backed by one durable commands
// consumer filtered to a single aggregate's subject.
type CommandSource = Source[eventsourcing.Command]

// NewCommandConsumer opens a durable pull consumer on the commands stream
// filtered to cc.commands.<entityName>, exact-matching one aggregate.
// Fetches are always size 1: a work-queue command consumer should not pull
// more than it can make forward progress on before its ack-wait expires,
// and commands from the same aggregate instance must be processed in
// order.
func NewCommandConsumer(js nats.JetStreamContext, decl eventsourcing.InterestDeclaration, log *zap.Logger) (CommandSource, error) {
	if decl.Role != eventsourcing.RoleAggregate || decl.InterestConstraint != eventsourcing.ConstraintCommands {
		return nil, fmt.Errorf("consumer: command consumer requires an aggregate/commands declaration, got %s/%s", decl.Role, decl.InterestConstraint)
	}

	filterSubject := fmt.Sprintf("%s.%s", busclient.CommandsStreamSubjectPrefix, decl.EntityName)
	return newTypedConsumer(js, busclient.CommandsStreamSubjects, decl.ConsumerName(), filterSubject, decl.MaxBatch, log, decodeCommand)
}
