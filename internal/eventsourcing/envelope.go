package eventsourcing

import (
	"encoding/json"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
)

// StreamExtension is the single CloudEvents extension attribute the core
// adds to every published event: the name of the aggregate stream that
// produced it.
const StreamExtension = "xconcordancestream"

// EnvelopeSource is the constant CloudEvents source set on every event this
// runtime publishes.
const EnvelopeSource = "concordance"

// ToEnvelope translates an internal event into its bus-native envelope: it
// stamps a fresh id and timestamp, sets the constant source, places the
// payload under data as a structured JSON value, and sets the stream
// extension. An empty payload is sent as {}. A payload that is not a valid
// JSON document cannot be placed under data, and the encoding error is
// returned.
func ToEnvelope(evt Event) (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(uuid.NewString())
	ce.SetType(strcase.ToSnake(evt.EventType))
	ce.SetSource(EnvelopeSource)
	ce.SetTime(time.Now().UTC())
	ce.SetExtension(StreamExtension, evt.Stream)

	payload := evt.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	// json.RawMessage marshals verbatim, so the JSON the aggregate produced
	// is carried through unchanged rather than re-encoded (and not
	// base64-wrapped, which is what marshaling a plain []byte would do).
	if err := ce.SetData(cloudevents.ApplicationJSON, json.RawMessage(payload)); err != nil {
		return cloudevents.Event{}, err
	}
	return ce, nil
}

// FromEnvelope translates a bus envelope back into an internal event. The
// type is canonicalized to snake case. The stream extension is read as an
// empty string if absent, and data is serialized back to bytes as empty
// bytes if absent or non-JSON — this direction never errors, since a
// malformed envelope is handled by the caller as non-fatal, ack-and-skip
// traffic rather than a translation failure.
func FromEnvelope(ce cloudevents.Event) Event {
	stream, _ := ce.Extensions()[StreamExtension].(string)

	payload := ce.Data()
	if len(payload) == 0 || !json.Valid(payload) {
		payload = []byte{}
	}

	return Event{
		EventType: strcase.ToSnake(ce.Type()),
		Stream:    stream,
		Payload:   payload,
	}
}
