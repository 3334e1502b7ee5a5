package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultFingerprintRadius = 4
	DefaultFingerprintSize   = 2048

	DefaultDataSource    = "s3"
	DefaultS3Endpoint    = "s3.us-west-1.amazonaws.com"
	DefaultS3Bucket      = "deepchemdata"
	DefaultS3Prefix      = "datasets/"
	DefaultS3Region      = "us-west-1"
	DefaultDataTimeout   = 5 * time.Minute
	DefaultLocalDataDir  = "./data"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisTTL       = 24 * time.Hour
	DefaultRedisKeyPrefix = "csn:"

	DefaultStorageEndpoint = "localhost:9000"
	DefaultStorageBucket   = "csn-artifacts"

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaTopic        = "csn.training.epochs"
	DefaultKafkaBatchSize    = 1
	DefaultKafkaBatchTimeout = 10 * time.Millisecond

	DefaultMetricsAddr      = ":9102"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "csn"

	DefaultEpochs         = 10
	DefaultBatchSize      = 64
	DefaultLearningRate   = 1e-5
	DefaultMargin         = 1.0
	DefaultEmbeddingDim   = 128
	DefaultCheckpointsDir = "./checkpoints"
	DefaultSplitter       = "random"
	DefaultFracTrain      = 0.8
	DefaultFracValid      = 0.1
	DefaultFracTest       = 0.1
)

// ApplyDefaults fills zero-value fields in cfg with the defaults above.  Values
// already set by the caller win.  Booleans cannot be told apart from "unset"
// here, so boolean defaults are only registered with viper in registerDefaults.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Featurizer.Radius == 0 {
		cfg.Featurizer.Radius = DefaultFingerprintRadius
	}
	if cfg.Featurizer.Size == 0 {
		cfg.Featurizer.Size = DefaultFingerprintSize
	}

	if cfg.Data.Source == "" {
		cfg.Data.Source = DefaultDataSource
	}
	if cfg.Data.LocalDir == "" {
		cfg.Data.LocalDir = DefaultLocalDataDir
	}
	if cfg.Data.S3.Endpoint == "" {
		cfg.Data.S3.Endpoint = DefaultS3Endpoint
	}
	if cfg.Data.S3.Bucket == "" {
		cfg.Data.S3.Bucket = DefaultS3Bucket
	}
	if cfg.Data.S3.Prefix == "" {
		cfg.Data.S3.Prefix = DefaultS3Prefix
	}
	if cfg.Data.S3.Region == "" {
		cfg.Data.S3.Region = DefaultS3Region
	}
	if cfg.Data.Timeout == 0 {
		cfg.Data.Timeout = DefaultDataTimeout
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if cfg.Storage.Endpoint == "" {
		cfg.Storage.Endpoint = DefaultStorageEndpoint
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = DefaultStorageBucket
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.BatchSize == 0 {
		cfg.Kafka.BatchSize = DefaultKafkaBatchSize
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = DefaultKafkaBatchTimeout
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	t := &cfg.Training
	if t.Epochs == 0 {
		t.Epochs = DefaultEpochs
	}
	if t.BatchSize == 0 {
		t.BatchSize = DefaultBatchSize
	}
	if t.LearningRate == 0 {
		t.LearningRate = DefaultLearningRate
	}
	if t.Margin == 0 {
		t.Margin = DefaultMargin
	}
	if t.EmbeddingDim == 0 {
		t.EmbeddingDim = DefaultEmbeddingDim
	}
	if t.CheckpointsDir == "" {
		t.CheckpointsDir = DefaultCheckpointsDir
	}
	if t.Splitter == "" {
		t.Splitter = DefaultSplitter
	}
	if t.FracTrain == 0 && t.FracValid == 0 && t.FracTest == 0 {
		t.FracTrain, t.FracValid, t.FracTest = DefaultFracTrain, DefaultFracValid, DefaultFracTest
	}
}

// registerDefaults makes every key known to v so AutomaticEnv can resolve
// CSN_* overrides during Unmarshal, including keys absent from the file.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("log.error_output_paths", []string{"stderr"})

	v.SetDefault("featurizer.radius", DefaultFingerprintRadius)
	v.SetDefault("featurizer.size", DefaultFingerprintSize)

	v.SetDefault("data.source", DefaultDataSource)
	v.SetDefault("data.local_dir", DefaultLocalDataDir)
	v.SetDefault("data.timeout", DefaultDataTimeout)
	v.SetDefault("data.s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("data.s3.bucket", DefaultS3Bucket)
	v.SetDefault("data.s3.prefix", DefaultS3Prefix)
	v.SetDefault("data.s3.region", DefaultS3Region)
	v.SetDefault("data.s3.use_ssl", true)
	v.SetDefault("data.s3.access_key", "")
	v.SetDefault("data.s3.secret_key", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.ttl", DefaultRedisTTL)
	v.SetDefault("redis.key_prefix", DefaultRedisKeyPrefix)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", DefaultStorageEndpoint)
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", DefaultStorageBucket)
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{DefaultKafkaBroker})
	v.SetDefault("kafka.topic", DefaultKafkaTopic)
	v.SetDefault("kafka.batch_size", DefaultKafkaBatchSize)
	v.SetDefault("kafka.batch_timeout", DefaultKafkaBatchTimeout)
	v.SetDefault("kafka.required_acks", -1)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", DefaultMetricsAddr)
	v.SetDefault("metrics.path", DefaultMetricsPath)
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)

	v.SetDefault("training.dataset", "")
	v.SetDefault("training.epochs", DefaultEpochs)
	v.SetDefault("training.batch_size", DefaultBatchSize)
	v.SetDefault("training.learning_rate", DefaultLearningRate)
	v.SetDefault("training.margin", DefaultMargin)
	v.SetDefault("training.embedding_dim", DefaultEmbeddingDim)
	v.SetDefault("training.checkpoints_dir", DefaultCheckpointsDir)
	v.SetDefault("training.triplet_loss", true)
	v.SetDefault("training.oversample", false)
	v.SetDefault("training.fixed_train_triplets", false)
	v.SetDefault("training.cumulative_seeds", false)
	v.SetDefault("training.per_row_anchor_labels", false)
	v.SetDefault("training.splitter", DefaultSplitter)
	v.SetDefault("training.split_seed", 0)
	v.SetDefault("training.frac_train", DefaultFracTrain)
	v.SetDefault("training.frac_valid", DefaultFracValid)
	v.SetDefault("training.frac_test", DefaultFracTest)
	v.SetDefault("training.seed", 0)
	// No default: nil means "seed from the clock".
	_ = v.BindEnv("training.fixed_seed")
}
