package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

const (
	TopicTrainingEpochs = "csn.training.epochs"

	EventRunStarted     = "training.run_started"
	EventEpochCompleted = "training.epoch_completed"
	EventRunFinished    = "training.run_finished"

	SchemaVersion = "1"
)

// EventEnvelope wraps every event payload on the wire.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEventEnvelope marshals payload into a fresh envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       raw,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode event payload").WithDetail(e.EventType)
	}
	return nil
}

// ToMessage encodes the envelope as a Message keyed by key.
func (e *EventEnvelope) ToMessage(topic, key string) (Message, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return Message{}, errors.Wrap(err, errors.ErrCodeSerialization, "marshal event envelope")
	}
	return Message{
		Topic:     topic,
		Key:       []byte(key),
		Value:     raw,
		Timestamp: e.Timestamp,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"schema_version": e.SchemaVersion,
		},
	}, nil
}

// DecodeEnvelope parses a received message value.
func DecodeEnvelope(msg *ReceivedMessage) (*EventEnvelope, error) {
	var e EventEnvelope
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode event envelope")
	}
	return &e, nil
}
