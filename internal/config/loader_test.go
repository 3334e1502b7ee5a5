package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
log:
  level: debug
  format: console
featurizer:
  radius: 2
  size: 1024
data:
  source: local
  local_dir: /tmp/molnet
redis:
  enabled: true
  addr: "redis:6379"
  ttl: 1h
training:
  dataset: hiv
  epochs: 3
  batch_size: 16
  triplet_loss: true
  fixed_train_triplets: true
  fixed_seed: 42
  splitter: random
  split_seed: 7
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Featurizer.Radius)
	assert.Equal(t, 1024, cfg.Featurizer.Size)
	assert.Equal(t, "local", cfg.Data.Source)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "hiv", cfg.Training.Dataset)
	assert.Equal(t, 3, cfg.Training.Epochs)
	require.NotNil(t, cfg.Training.FixedSeed)
	assert.Equal(t, int64(42), *cfg.Training.FixedSeed)
	assert.Equal(t, int64(7), cfg.Training.SplitSeed)
}

func TestLoad_DefaultsForUnsetKeys(t *testing.T) {
	path := createTempConfigFile(t, "training:\n  dataset: lipo\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultFingerprintRadius, cfg.Featurizer.Radius)
	assert.Equal(t, DefaultFingerprintSize, cfg.Featurizer.Size)
	assert.Equal(t, DefaultS3Bucket, cfg.Data.S3.Bucket)
	assert.True(t, cfg.Data.S3.UseSSL)
	assert.True(t, cfg.Training.TripletLoss)
	assert.Equal(t, DefaultLearningRate, cfg.Training.LearningRate)
	assert.Nil(t, cfg.Training.FixedSeed)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "training: [")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := createTempConfigFile(t, "training:\n  oversample: true\n  fixed_train_triplets: true\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "fixed_train_triplets")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("CSN_TRAINING_EPOCHS", "9")
	t.Setenv("CSN_FEATURIZER_SIZE", "512")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Training.Epochs)
	assert.Equal(t, 512, cfg.Featurizer.Size)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("CSN_TRAINING_DATASET", "tox21_NR-AR")
	t.Setenv("CSN_TRAINING_FIXED_SEED", "11")
	t.Setenv("CSN_KAFKA_ENABLED", "true")
	t.Setenv("CSN_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "tox21_NR-AR", cfg.Training.Dataset)
	require.NotNil(t, cfg.Training.FixedSeed)
	assert.Equal(t, int64(11), *cfg.Training.FixedSeed)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadOrEnv(t *testing.T) {
	cfg, err := LoadOrEnv("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEpochs, cfg.Training.Epochs)

	path := createTempConfigFile(t, validConfigYAML)
	cfg, err = LoadOrEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Training.Epochs)
}

func TestMustLoad(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	assert.NotPanics(t, func() { MustLoad(path) })
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
}

func TestWatch_InvokesCallbackOnChange(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	changed := make(chan *Config, 1)
	Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil)

	updated := validConfigYAML + "\nmetrics:\n  namespace: edited\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, "edited", c.Metrics.Namespace)
	case <-time.After(5 * time.Second):
		t.Skip("fsnotify event not delivered in time on this filesystem")
	}
}
