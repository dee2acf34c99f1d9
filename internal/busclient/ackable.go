package busclient

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultAckWait is the consumer ack_wait applied to every durable pull
// consumer the runtime creates.
const DefaultAckWait = 3 * time.Second

const (
	ackRetries     = 3
	ackRetryDelay  = 100 * time.Millisecond
	ackSendTimeout = 2 * time.Second
)

// Acker is the subset of *nats.Msg that settling a delivery needs. It
// exists as a seam so workers can be exercised against a fake in tests
// without a live NATS connection; *nats.Msg satisfies it as-is.
type Acker interface {
	AckSync(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
}

// AckableMessage pairs a decoded payload with the raw NATS message it was
// decoded from, so a worker can acknowledge or negatively acknowledge it
// once it knows the outcome of processing.
type AckableMessage[T any] struct {
	Value T

	msg    Acker
	log    *zap.Logger
	acked  bool
	nacked bool
}

// NewAckableMessage wraps a decoded value with its originating message.
func NewAckableMessage[T any](value T, msg Acker, log *zap.Logger) *AckableMessage[T] {
	return &AckableMessage[T]{Value: value, msg: msg, log: log}
}

// Ack acknowledges successful processing. It retries a bounded number of
// times on transient failures — a delivery that is processed but never
// durably acked would otherwise be redelivered and reprocessed, which for
// a command means running a command handler twice.
func (a *AckableMessage[T]) Ack(ctx context.Context) {
	if a.acked || a.nacked {
		return
	}
	a.acked = true

	var lastErr error
	for attempt := 0; attempt < ackRetries; attempt++ {
		ctx, cancel := context.WithTimeout(ctx, ackSendTimeout)
		err := a.msg.AckSync(nats.Context(ctx))
		cancel()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(ackRetryDelay)
	}
	a.log.Warn("message ack failed after retries", zap.Error(lastErr))
}

// Nack negatively acknowledges the message, asking the server to redeliver
// it. Unlike Ack this is fire-and-forget: a failed nak just means the
// message is redelivered anyway once ack_wait elapses.
func (a *AckableMessage[T]) Nack() {
	if a.acked || a.nacked {
		return
	}
	a.nacked = true
	if err := a.msg.Nak(); err != nil {
		a.log.Warn("message nak failed", zap.Error(err))
	}
}

// EnsureSettled is a safety net against dropped work: if a worker returns
// without explicitly acking or nacking the message — a panic recovered
// upstream, an early return down some overlooked path — this nacks it so
// the message is redelivered rather than silently lost to ack_wait expiry
// racing a process exit. Call it via defer immediately after wrapping a
// message.
func (a *AckableMessage[T]) EnsureSettled() {
	if a.acked || a.nacked {
		return
	}
	a.log.Warn("message settled via drop safety net, nacking")
	a.Nack()
}
