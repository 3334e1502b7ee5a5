package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/CrossSiameseNet/internal/config"
)

func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{"log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "text" }, "log.format"},
		{"fingerprint size", func(c *config.Config) { c.Featurizer.Size = 0 }, "featurizer.size"},
		{"negative radius", func(c *config.Config) { c.Featurizer.Radius = -1 }, "featurizer.radius"},
		{"data source", func(c *config.Config) { c.Data.Source = "ftp" }, "data.source"},
		{"local dir", func(c *config.Config) { c.Data.Source = "local"; c.Data.LocalDir = "" }, "data.local_dir"},
		{"redis addr", func(c *config.Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"storage bucket", func(c *config.Config) { c.Storage.Enabled = true; c.Storage.Bucket = "" }, "storage.bucket"},
		{"kafka brokers", func(c *config.Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"kafka topic", func(c *config.Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }, "kafka.topic"},
		{"metrics addr", func(c *config.Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "metrics.addr"},
		{"epochs", func(c *config.Config) { c.Training.Epochs = 0 }, "training.epochs"},
		{"batch size", func(c *config.Config) { c.Training.BatchSize = -2 }, "training.batch_size"},
		{"learning rate", func(c *config.Config) { c.Training.LearningRate = 0 }, "training.learning_rate"},
		{"checkpoints dir", func(c *config.Config) { c.Training.CheckpointsDir = "" }, "training.checkpoints_dir"},
		{"oversample with fixed", func(c *config.Config) {
			c.Training.Oversample = true
			c.Training.FixedTrainTriplets = true
		}, "fixed_train_triplets"},
		{"splitter", func(c *config.Config) { c.Training.Splitter = "stratified" }, "training.splitter"},
		{"fractions", func(c *config.Config) { c.Training.FracTrain = 0.9 }, "split fractions"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestConfig_Validate_NoSplitterIgnoresFractions(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Training.Splitter = "none"
	cfg.Training.FracTrain = 0
	assert.NoError(t, cfg.Validate())
}
