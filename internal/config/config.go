// Package config defines the configuration structures for the CrossSiameseNet
// training pipeline.  This file holds plain data types and validation only;
// loading lives in loader.go and defaults in defaults.go.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
)

// FeaturizerConfig parameterises the circular fingerprint featurizer.
type FeaturizerConfig struct {
	Radius int `mapstructure:"radius"`
	Size   int `mapstructure:"size"`
}

// S3SourceConfig points at the public bucket the MoleculeNet CSV files are
// served from.  Credentials are optional; an empty pair means anonymous access.
type S3SourceConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// DataConfig selects where raw dataset files come from.
type DataConfig struct {
	Source   string         `mapstructure:"source"` // "s3" | "local"
	LocalDir string         `mapstructure:"local_dir"`
	S3       S3SourceConfig `mapstructure:"s3"`
	Timeout  time.Duration  `mapstructure:"timeout"`
}

// RedisConfig holds parameters for the raw dataset cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TTL          time.Duration `mapstructure:"ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// StorageConfig holds the MinIO bucket that checkpoints and reports are mirrored to.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// KafkaConfig holds the producer settings for training events.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TrainingConfig drives dataset construction and the training loop.
type TrainingConfig struct {
	Dataset            string  `mapstructure:"dataset"`
	Epochs             int     `mapstructure:"epochs"`
	BatchSize          int     `mapstructure:"batch_size"`
	LearningRate       float64 `mapstructure:"learning_rate"`
	Margin             float64 `mapstructure:"margin"`
	EmbeddingDim       int     `mapstructure:"embedding_dim"`
	CheckpointsDir     string  `mapstructure:"checkpoints_dir"`
	TripletLoss        bool    `mapstructure:"triplet_loss"`
	Oversample         bool    `mapstructure:"oversample"`
	FixedTrainTriplets bool    `mapstructure:"fixed_train_triplets"`
	FixedSeed          *int64  `mapstructure:"fixed_seed"`
	CumulativeSeeds    bool    `mapstructure:"cumulative_seeds"`
	PerRowAnchorLabels bool    `mapstructure:"per_row_anchor_labels"`
	Splitter           string  `mapstructure:"splitter"` // "random" | "index" | "scaffold" | "none"
	SplitSeed          int64   `mapstructure:"split_seed"`
	FracTrain          float64 `mapstructure:"frac_train"`
	FracValid          float64 `mapstructure:"frac_valid"`
	FracTest           float64 `mapstructure:"frac_test"`
	Seed               int64   `mapstructure:"seed"`
}

// Config is the root configuration structure.
type Config struct {
	Log        logging.LogConfig `mapstructure:"log"`
	Featurizer FeaturizerConfig  `mapstructure:"featurizer"`
	Data       DataConfig        `mapstructure:"data"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Storage    StorageConfig     `mapstructure:"storage"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Training   TrainingConfig    `mapstructure:"training"`
}

// Validate performs semantic validation of the fully-populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Featurizer.Radius < 0 {
		return fmt.Errorf("config: featurizer.radius must be >= 0, got %d", c.Featurizer.Radius)
	}
	if c.Featurizer.Size < 1 {
		return fmt.Errorf("config: featurizer.size must be >= 1, got %d", c.Featurizer.Size)
	}

	switch c.Data.Source {
	case "s3":
		if c.Data.S3.Endpoint == "" || c.Data.S3.Bucket == "" {
			return fmt.Errorf("config: data.s3.endpoint and data.s3.bucket are required for source s3")
		}
	case "local":
		if c.Data.LocalDir == "" {
			return fmt.Errorf("config: data.local_dir is required for source local")
		}
	default:
		return fmt.Errorf("config: data.source %q is invalid; expected s3|local", c.Data.Source)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis is enabled")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}
	if c.Storage.Enabled && (c.Storage.Endpoint == "" || c.Storage.Bucket == "") {
		return fmt.Errorf("config: storage.endpoint and storage.bucket are required when storage is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka is enabled")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("config: metrics.addr is required when metrics are enabled")
	}

	return c.Training.validate()
}

func (t *TrainingConfig) validate() error {
	if t.Epochs < 1 {
		return fmt.Errorf("config: training.epochs must be >= 1, got %d", t.Epochs)
	}
	if t.BatchSize < 1 {
		return fmt.Errorf("config: training.batch_size must be >= 1, got %d", t.BatchSize)
	}
	if t.LearningRate <= 0 {
		return fmt.Errorf("config: training.learning_rate must be > 0, got %g", t.LearningRate)
	}
	if t.EmbeddingDim < 1 {
		return fmt.Errorf("config: training.embedding_dim must be >= 1, got %d", t.EmbeddingDim)
	}
	if t.CheckpointsDir == "" {
		return fmt.Errorf("config: training.checkpoints_dir is required")
	}
	if t.Oversample && t.FixedTrainTriplets {
		return fmt.Errorf("config: training.oversample and training.fixed_train_triplets cannot both be true")
	}
	switch t.Splitter {
	case "random", "index", "scaffold", "none":
	default:
		return fmt.Errorf("config: training.splitter %q is invalid; expected random|index|scaffold|none", t.Splitter)
	}
	if t.Splitter != "none" {
		sum := t.FracTrain + t.FracValid + t.FracTest
		if t.FracTrain <= 0 || t.FracValid < 0 || t.FracTest < 0 || sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("config: training split fractions must be non-negative and sum to 1, got %g/%g/%g",
				t.FracTrain, t.FracValid, t.FracTest)
		}
	}
	return nil
}
