package training

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/messaging/kafka"
)

type recordingProducer struct {
	msgs []kafka.Message
	err  error
}

func (r *recordingProducer) Publish(_ context.Context, msg kafka.Message) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	prod := &recordingProducer{}
	pub := NewKafkaPublisher(prod, "")
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), kafka.EventEpochCompleted, "run-1", EpochPayload{
		RunID: "run-1", Dataset: "hiv", Epoch: 2, TrainLoss: 0.5, TestLoss: 0.6, Timestamp: ts,
	})
	require.NoError(t, err)
	require.Len(t, prod.msgs, 1)

	msg := prod.msgs[0]
	assert.Equal(t, kafka.TopicTrainingEpochs, msg.Topic)
	assert.Equal(t, []byte("run-1"), msg.Key)
	assert.Equal(t, kafka.EventEpochCompleted, msg.Headers["event_type"])

	env, err := kafka.DecodeEnvelope(&kafka.ReceivedMessage{Value: msg.Value})
	require.NoError(t, err)
	assert.Equal(t, "csn.trainer", env.Source)
	assert.Equal(t, "run-1", env.Metadata["run_id"])

	var got EpochPayload
	require.NoError(t, env.DecodePayload(&got))
	assert.Equal(t, 2, got.Epoch)
	assert.Equal(t, 0.6, got.TestLoss)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "x", "y", nil))
}
