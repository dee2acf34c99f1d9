// Package consumer drives the durable bus consumers: decoding fetched
// messages into typed, ackable items and running each registered worker's
// fetch-dispatch-settle loop.
package consumer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cosmonic-labs/concordance/internal/busclient"
)

// ErrConsumerStopped signals that the upstream typed consumer produced no
// more items — the subscription itself ended, not a single message
// failure. The worker loop terminates cleanly on this.
var ErrConsumerStopped = errors.New("consumer: stopped")

// FatalError wraps an error that should terminate the worker task outright,
// as opposed to an ordinary processing error that is merely logged so the
// bus's redelivery/ack-wait cycle can retry it.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return "fatal: " + f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal wraps err as a FatalError.
func Fatal(err error) error { return &FatalError{Err: err} }

// IsFatal reports whether err (or any error it wraps) is a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// Worker processes one fetched, decoded message and settles it (ack or
// nack) before returning. A non-nil, non-fatal return value means the
// message was not explicitly settled and is left for the bus's own
// ack-wait/redelivery cycle to retry — the worker loop logs and continues
// rather than nacking immediately.
type Worker[T any] interface {
	DoWork(ctx context.Context, msg *busclient.AckableMessage[T]) error
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc[T any] func(ctx context.Context, msg *busclient.AckableMessage[T]) error

func (f WorkerFunc[T]) DoWork(ctx context.Context, msg *busclient.AckableMessage[T]) error {
	return f(ctx, msg)
}

// Source produces the next ackable item for a worker loop to process. It
// returns ErrConsumerStopped once the underlying subscription has ended.
type Source[T any] interface {
	Next(ctx context.Context) (*busclient.AckableMessage[T], error)
}

// Run drives the shared worker-loop skeleton: fetch the next item, invoke
// the worker, and act on the outcome. It returns when the source reports
// ErrConsumerStopped or the worker returns a fatal error; ctx cancellation
// also stops the loop.
//
// A non-fatal DoWork error is logged and the loop continues without
// nacking — the message is left unacked so the bus's own ack-wait and
// redelivery ceiling pace the retry, rather than the runtime forcing an
// immediate redelivery.
func Run[T any](ctx context.Context, src Source[T], w Worker[T], log *zap.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrConsumerStopped) {
				return nil
			}
			if IsFatal(err) {
				return err
			}
			log.Warn("typed consumer fetch error", zap.Error(err))
			continue
		}

		if err := w.DoWork(ctx, msg); err != nil {
			if IsFatal(err) {
				msg.EnsureSettled()
				return err
			}
			log.Warn("worker processing error, leaving message for redelivery", zap.Error(err))
			continue
		}
	}
}
