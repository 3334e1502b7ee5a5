package training

import (
	"context"
	"time"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/messaging/kafka"
)

const eventSource = "csn.trainer"

// RunStartedPayload opens a run.
type RunStartedPayload struct {
	RunID         string    `json:"run_id"`
	Dataset       string    `json:"dataset"`
	Epochs        int       `json:"epochs"`
	FixedTriplets bool      `json:"fixed_triplets"`
	Timestamp     time.Time `json:"timestamp"`
}

// EpochPayload reports one finished epoch.
type EpochPayload struct {
	RunID     string    `json:"run_id"`
	Dataset   string    `json:"dataset"`
	Epoch     int       `json:"epoch"`
	TrainLoss float64   `json:"train_loss"`
	TestLoss  float64   `json:"test_loss"`
	Timestamp time.Time `json:"timestamp"`
}

// RunFinishedPayload closes a run.  Error is set when the run failed.
type RunFinishedPayload struct {
	RunID      string    `json:"run_id"`
	Dataset    string    `json:"dataset"`
	Epochs     int       `json:"epochs"`
	ReportPath string    `json:"report_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventPublisher emits training events keyed by run id.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, runID string, payload interface{}) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

// MessagePublisher is the part of *kafka.Producer the publisher needs.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher wraps events in kafka envelopes.
type KafkaPublisher struct {
	Producer MessagePublisher
	Topic    string
}

// NewKafkaPublisher publishes to topic, or to kafka.TopicTrainingEpochs when
// topic is empty.
func NewKafkaPublisher(p MessagePublisher, topic string) *KafkaPublisher {
	if topic == "" {
		topic = kafka.TopicTrainingEpochs
	}
	return &KafkaPublisher{Producer: p, Topic: topic}
}

func (k *KafkaPublisher) Publish(ctx context.Context, eventType, runID string, payload interface{}) error {
	env, err := kafka.NewEventEnvelope(eventType, eventSource, payload)
	if err != nil {
		return err
	}
	env.Metadata = map[string]string{"run_id": runID}
	msg, err := env.ToMessage(k.Topic, runID)
	if err != nil {
		return err
	}
	return k.Producer.Publish(ctx, msg)
}
