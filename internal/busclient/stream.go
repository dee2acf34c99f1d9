package busclient

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	// EventsStreamName is the fan-out stream every event-consuming worker
	// reads from with its own durable cursor.
	EventsStreamName = "CC_EVENTS"
	// EventsStreamSubjectPrefix is the subject prefix published events
	// carry, one per snake-cased event type.
	EventsStreamSubjectPrefix = "cc.events"
	// EventsStreamSubjects is the subject filter for the events stream.
	EventsStreamSubjects = "cc.events.*"

	// CommandsStreamName is the work-queue stream aggregates consume
	// commands from, exactly one in-flight consumer per command.
	CommandsStreamName = "CC_COMMANDS"
	// CommandsStreamSubjectPrefix is the subject prefix published commands
	// carry, one per target aggregate.
	CommandsStreamSubjectPrefix = "cc.commands"
	// CommandsStreamSubjects is the subject filter for the commands stream.
	CommandsStreamSubjects = "cc.commands.*"

	// StateBucketName is the KV bucket backing the state store.
	StateBucketName = "CC_STATE"
)

// Provisioner ensures the two required streams and the state bucket exist
// with the correct retention/storage policy. The operation is idempotent:
// repeated calls return the existing resources unchanged.
type Provisioner struct {
	client *Client
}

// NewProvisioner creates a Provisioner bound to the given bus client.
func NewProvisioner(client *Client) *Provisioner {
	return &Provisioner{client: client}
}

// Ensure creates (or reuses) the events stream, commands stream, and state
// KV bucket, returning their resolved JetStream stream info and the
// bucket handle the state store is built from.
func (p *Provisioner) Ensure() (events *nats.StreamInfo, commands *nats.StreamInfo, bucket nats.KeyValue, err error) {
	events, err = p.ensureStream(&nats.StreamConfig{
		Name:      EventsStreamName,
		Subjects:  []string{EventsStreamSubjects},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy, // no delete-on-ack — overlapping consumers are allowed
		Replicas:  1,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("provision events stream: %w", err)
	}

	commands, err = p.ensureStream(&nats.StreamConfig{
		Name:      CommandsStreamName,
		Subjects:  []string{CommandsStreamSubjects},
		Storage:   nats.FileStorage,
		Retention: nats.WorkQueuePolicy, // deleted on ack — exactly one consumer per command
		Replicas:  1,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("provision commands stream: %w", err)
	}

	bucket, err = p.ensureBucket()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("provision state bucket: %w", err)
	}

	return events, commands, bucket, nil
}

func (p *Provisioner) ensureStream(cfg *nats.StreamConfig) (*nats.StreamInfo, error) {
	info, err := p.client.JS.StreamInfo(cfg.Name)
	if err == nil {
		p.client.Log.Info("bus stream already exists", zap.String("stream", cfg.Name))
		return info, nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return nil, fmt.Errorf("stream info: %w", err)
	}

	info, err = p.client.JS.AddStream(cfg)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	p.client.Log.Info("bus stream provisioned",
		zap.String("stream", cfg.Name),
		zap.Strings("subjects", cfg.Subjects),
	)
	return info, nil
}

func (p *Provisioner) ensureBucket() (nats.KeyValue, error) {
	kv, err := p.client.JS.KeyValue(StateBucketName)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("bucket info: %w", err)
	}

	kv, err = p.client.JS.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      StateBucketName,
		Description: "concordance state for aggregates and process managers",
		History:     1,
		Storage:     nats.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	p.client.Log.Info("bus KV bucket provisioned", zap.String("bucket", StateBucketName))
	return kv, nil
}
