package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// ReceivedMessage is one fetched record.
type ReceivedMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message.  Returning an error leaves the offset
// uncommitted for a group reader; the message is retried up to MaxRetries.
type Handler func(ctx context.Context, msg *ReceivedMessage) error

// ConsumerConfig holds configuration for the Consumer.  An empty GroupID reads
// the single Topic from StartOffset without committing.
type ConsumerConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	FromLatest   bool
	MaxRetries   int
	RetryBackoff time.Duration
	MaxWait      time.Duration
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs a Handler over one topic.
type Consumer struct {
	reader  ReaderInterface
	config  ConsumerConfig
	logger  logging.Logger
	running atomic.Bool

	consumed atomic.Int64
	failed   atomic.Int64
}

func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "topic required")
	}
	return nil
}

func applyConsumerDefaults(cfg *ConsumerConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
}

// NewConsumer builds a kafka.Reader for cfg.
func NewConsumer(cfg ConsumerConfig, log logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	applyConsumerDefaults(&cfg)

	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10 << 20,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.FirstOffset,
	}
	if cfg.FromLatest {
		rc.StartOffset = kafka.LastOffset
	}
	return NewConsumerWithReader(kafka.NewReader(rc), cfg, log), nil
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(r ReaderInterface, cfg ConsumerConfig, log logging.Logger) *Consumer {
	applyConsumerDefaults(&cfg)
	return &Consumer{
		reader: r,
		config: cfg,
		logger: logging.OrDefault(log).Named("kafka.consumer").With(logging.String("topic", cfg.Topic)),
	}
}

// Run fetches and handles messages until ctx is done, then returns nil.  A
// message whose handler keeps failing is logged, counted and skipped.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	c.logger.Info("kafka consumer started", logging.String("group", c.config.GroupID))
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("fetch failed", logging.Err(err))
			if !sleepCtx(ctx, c.config.RetryBackoff) {
				return nil
			}
			continue
		}
		c.consumed.Add(1)

		msg := &ReceivedMessage{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       m.Key,
			Value:     m.Value,
			Timestamp: m.Time,
			Headers:   make(map[string]string, len(m.Headers)),
		}
		for _, h := range m.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}

		if err := c.handleWithRetry(ctx, msg, handle); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.failed.Add(1)
			c.logger.Warn("message dropped after retries",
				logging.Int64("offset", m.Offset),
				logging.Int("partition", m.Partition),
				logging.Err(err))
		}
		if c.config.GroupID != "" {
			if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
				c.logger.Error("commit failed", logging.Err(err))
			}
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg *ReceivedMessage, handle Handler) error {
	backoff := c.config.RetryBackoff
	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err = handle(ctx, msg); err == nil {
			return nil
		}
		if attempt == c.config.MaxRetries || !sleepCtx(ctx, backoff) {
			break
		}
		backoff *= 2
	}
	return err
}

// Consumed and Failed report message counters.
func (c *Consumer) Consumed() int64 { return c.consumed.Load() }
func (c *Consumer) Failed() int64   { return c.failed.Load() }

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
