package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/iancoleman/strcase"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/busclient"
	"github.com/cosmonic-labs/concordance/internal/eventsourcing"
)

func normalizeCommandType(raw string) string {
	return strcase.ToSnake(raw)
}

const (
	fetchBatch   = 1 // commands are always pulled one at a time; see NewCommandConsumer
	fetchTimeout = 1 * time.Second
)

// decodeFunc turns a raw NATS message payload into T. A decode error is
// non-fatal: the caller acks the offending message (it is malformed
// traffic, not a domain failure) and moves on to the next fetch.
type decodeFunc[T any] func(data []byte) (T, error)

// typedConsumer owns one durable pull subscription and decodes each
// fetched message into an AckableMessage[T].
type typedConsumer[T any] struct {
	sub    *nats.Subscription
	log    *zap.Logger
	decode decodeFunc[T]
}

// streamDefaultSubjects is used when a typed consumer has no per-consumer
// subject filter of its own (events consumers, in this iteration) — the
// stream's own wildcard stands in as the subscribe subject.
//
// maxBatch is a provisioning hint, not the per-Fetch batch size: it caps
// how many unacked messages the bus will let this durable consumer hold
// outstanding at once (MaxAckPending). Fetch itself always pulls one
// message at a time (fetchBatch) regardless of maxBatch, matching the
// original provider's comment that its per-stream-pull batch is fixed at 1.
func newTypedConsumer[T any](js nats.JetStreamContext, streamDefaultSubjects, durable, filterSubject string, maxBatch int, log *zap.Logger, decode decodeFunc[T]) (*typedConsumer[T], error) {
	subject := filterSubject
	if subject == "" {
		subject = streamDefaultSubjects
	}
	if maxBatch <= 0 {
		maxBatch = eventsourcing.DefaultMaxMessagesPerBatch
	}

	sub, err := js.PullSubscribe(subject, durable,
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(busclient.DefaultAckWait),
		nats.MaxDeliver(3),
		nats.MaxAckPending(maxBatch),
		nats.DeliverAll(),
	)
	if err != nil {
		return nil, fmt.Errorf("consumer: pull subscribe %s: %w", durable, err)
	}

	return &typedConsumer[T]{sub: sub, log: log, decode: decode}, nil
}

// Next implements Source[T]: it fetches the next message (blocking up to
// fetchTimeout), decoding it. A decode error positively acks the message
// and retries the fetch rather than surfacing an error to the worker loop.
func (c *typedConsumer[T]) Next(ctx context.Context) (*busclient.AckableMessage[T], error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, Fatal(err)
		}

		msgs, err := c.sub.Fetch(fetchBatch, nats.MaxWait(fetchTimeout))
		if err != nil {
			if err == nats.ErrTimeout || err == context.DeadlineExceeded {
				continue
			}
			if err == nats.ErrConsumerLeadershipChanged || err == nats.ErrConsumerDeleted {
				return nil, ErrConsumerStopped
			}
			return nil, fmt.Errorf("consumer: fetch: %w", err)
		}
		if len(msgs) == 0 {
			continue
		}

		raw := msgs[0]
		value, decodeErr := c.decode(raw.Data)
		if decodeErr != nil {
			c.log.Warn("dropping malformed message", zap.Error(decodeErr))
			_ = raw.Ack()
			continue
		}
		return busclient.NewAckableMessage(value, raw, c.log), nil
	}
}

// decodeCommand parses a raw commands-stream payload into an internal
// Command, canonicalizing command_type to snake case.
func decodeCommand(data []byte) (eventsourcing.Command, error) {
	var cmd eventsourcing.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return eventsourcing.Command{}, err
	}
	cmd.CommandType = normalizeCommandType(cmd.CommandType)
	return cmd, nil
}

// decodeEnvelopeEvent parses a raw events-stream payload as a CloudEvents
// envelope and translates it into an internal Event.
func decodeEnvelopeEvent(data []byte) (eventsourcing.Event, error) {
	ce := cloudevents.NewEvent()
	if err := json.Unmarshal(data, &ce); err != nil {
		return eventsourcing.Event{}, err
	}
	return eventsourcing.FromEnvelope(ce), nil
}
