package cli

import (
	"context"
	"math/rand"

	"github.com/turtacn/CrossSiameseNet/internal/config"
	"github.com/turtacn/CrossSiameseNet/internal/dataset"
	"github.com/turtacn/CrossSiameseNet/internal/dataset/molnet"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/database/redis"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/storage/minio"
	"github.com/turtacn/CrossSiameseNet/internal/training"
)

const (
	checkpointPrefix = "checkpoints"
	reportPrefix     = "reports"
)

// stack holds the infrastructure clients a command built from config, plus
// the cleanup for each.
type stack struct {
	cfg *config.Config
	log logging.Logger

	metrics   *prometheus.TrainingMetrics
	source    molnet.Source
	artifacts minio.ObjectStore
	producer  *kafka.Producer

	closers []func(context.Context) error
}

func newStack(cfg *config.Config, log logging.Logger) *stack {
	return &stack{cfg: cfg, log: logging.OrDefault(log), metrics: prometheus.NewNopTrainingMetrics()}
}

func (s *stack) onClose(fn func(context.Context) error) { s.closers = append(s.closers, fn) }

// Close releases everything in reverse order of construction.
func (s *stack) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.log.Warn("failed to release resource", logging.Err(err))
		}
	}
	s.closers = nil
}

// withMetrics registers the training metrics and starts the listener.
func (s *stack) withMetrics() error {
	mc := s.cfg.Metrics
	if !mc.Enabled {
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            mc.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, s.log)
	if err != nil {
		return err
	}
	srv, err := prometheus.Listen(mc.Addr, mc.Path, collector, s.log)
	if err != nil {
		return err
	}
	s.metrics = prometheus.NewTrainingMetrics(collector)
	s.onClose(srv.Shutdown)
	return nil
}

// withSource builds the raw dataset source: local directory or S3 bucket,
// behind the Redis cache when it is enabled.
func (s *stack) withSource(ctx context.Context) error {
	dc := s.cfg.Data
	var src molnet.Source
	switch dc.Source {
	case "local":
		src = molnet.LocalSource{Dir: dc.LocalDir}
	default:
		client, err := minio.NewClient(ctx, minio.Config{
			Endpoint:  dc.S3.Endpoint,
			AccessKey: dc.S3.AccessKey,
			SecretKey: dc.S3.SecretKey,
			Bucket:    dc.S3.Bucket,
			Prefix:    dc.S3.Prefix,
			Region:    dc.S3.Region,
			UseSSL:    dc.S3.UseSSL,
		}, s.log)
		if err != nil {
			return err
		}
		s.onClose(func(context.Context) error { return client.Close() })
		src = molnet.ObjectSource{Store: minio.NewObjectStore(client)}
	}

	rc := s.cfg.Redis
	if rc.Enabled {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:         rc.Addr,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		}, s.log)
		if err != nil {
			return err
		}
		s.onClose(func(context.Context) error { return client.Close() })
		src = &molnet.CachedSource{
			Inner: src,
			Cache: redis.NewCache(client, s.log, redis.WithPrefix(rc.KeyPrefix), redis.WithDefaultTTL(rc.TTL)),
			TTL:   rc.TTL,
			NewLock: func(name string) redis.Locker {
				return redis.NewMutex(client, rc.KeyPrefix, name, s.log)
			},
			Metrics: s.metrics,
			Logger:  s.log,
		}
	}
	s.source = src
	return nil
}

// withArtifacts connects the bucket checkpoints and reports are mirrored to.
func (s *stack) withArtifacts(ctx context.Context) error {
	sc := s.cfg.Storage
	if !sc.Enabled {
		return nil
	}
	client, err := minio.NewClient(ctx, minio.Config{
		Endpoint:     sc.Endpoint,
		AccessKey:    sc.AccessKey,
		SecretKey:    sc.SecretKey,
		Bucket:       sc.Bucket,
		Prefix:       sc.Prefix,
		Region:       sc.Region,
		UseSSL:       sc.UseSSL,
		CreateBucket: true,
	}, s.log)
	if err != nil {
		return err
	}
	s.onClose(func(context.Context) error { return client.Close() })
	s.artifacts = minio.NewObjectStore(client)
	return nil
}

// withEvents opens the producer for training events.
func (s *stack) withEvents() error {
	kc := s.cfg.Kafka
	if !kc.Enabled {
		return nil
	}
	p, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      kc.Brokers,
		Topic:        kc.Topic,
		RequiredAcks: kc.RequiredAcks,
		BatchSize:    kc.BatchSize,
		BatchTimeout: kc.BatchTimeout,
	}, s.log)
	if err != nil {
		return err
	}
	s.onClose(func(context.Context) error { return p.Close() })
	s.producer = p
	return nil
}

func (s *stack) checkpointStore(dir string) training.CheckpointStore {
	local := &training.FileCheckpointStore{Dir: dir}
	if s.artifacts == nil {
		return local
	}
	return &training.MirroredCheckpointStore{
		Primary: local,
		Mirrors: []training.CheckpointStore{&training.ObjectCheckpointStore{Store: s.artifacts, Prefix: checkpointPrefix}},
		Logger:  s.log,
	}
}

func (s *stack) reportWriter() *training.ReportWriter {
	return &training.ReportWriter{Mirror: s.artifacts, MirrorPrefix: reportPrefix, Logger: s.log}
}

func (s *stack) eventPublisher() training.EventPublisher {
	if s.producer == nil {
		return training.NopPublisher{}
	}
	return training.NewKafkaPublisher(s.producer, s.cfg.Kafka.Topic)
}

func (s *stack) factory() *molnet.Factory {
	return molnet.NewFactory(s.source, s.log, s.metrics)
}

// newRand seeds from seed, or from the clock when seed is 0.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		return dataset.NewRand()
	}
	return dataset.NewSeededRand(seed)
}

// datasetRequest maps the training section of cfg onto a factory request.
func datasetRequest(cfg *config.Config, log logging.Logger, rng *rand.Rand) (molnet.Request, error) {
	tc := cfg.Training
	splitter, err := molnet.NewSplitter(tc.Splitter, tc.SplitSeed, log)
	if err != nil {
		return molnet.Request{}, err
	}
	return molnet.Request{
		Name:                  tc.Dataset,
		Splitter:              splitter,
		Fractions:             molnet.Fractions{Train: tc.FracTrain, Valid: tc.FracValid, Test: tc.FracTest},
		Radius:                cfg.Featurizer.Radius,
		Size:                  cfg.Featurizer.Size,
		TripletLoss:           tc.TripletLoss,
		Oversample:            tc.Oversample,
		UseFixedTrainTriplets: tc.FixedTrainTriplets,
		FixedSeed:             tc.FixedSeed,
		PerRowAnchorLabels:    tc.PerRowAnchorLabels,
		Rand:                  rng,
	}, nil
}
