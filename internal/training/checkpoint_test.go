package training

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

func sampleCheckpoint() *Checkpoint {
	return &Checkpoint{
		Epoch:                     1,
		ModelStateDict:            StateDict{"linear.bias": {Shape: []int{2}, Data: []float64{0.1, 0.2}}},
		Dataset:                   "hiv",
		TrainLoss:                 []float64{0.9, 0.8},
		TestLoss:                  []float64{1.0, 0.95},
		UsedFixedTrainingTriplets: true,
		SaveDttm:                  "2024-03-01 10:11:12",
	}
}

func TestCheckpointName(t *testing.T) {
	assert.Equal(t, "tox21_NR-AR_3", CheckpointName("tox21_NR-AR", 3))
}

func TestFileCheckpointStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoints")
	store := &FileCheckpointStore{Dir: dir}

	loc, err := store.Save(context.Background(), "hiv_1", sampleCheckpoint())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hiv_1"), loc)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")

	got, err := store.Load(context.Background(), "hiv_1")
	require.NoError(t, err)
	assert.Equal(t, sampleCheckpoint(), got)

	_, err = store.Load(context.Background(), "hiv_9")
	assert.True(t, errors.IsCode(err, errors.ErrCodeCheckpointNotFound))
}

func TestReadCheckpointFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := ReadCheckpointFile(path)
	assert.True(t, errors.IsCode(err, errors.CodeCheckpointFailed))
}

func TestObjectCheckpointStore(t *testing.T) {
	objects := newMemObjectStore()
	store := &ObjectCheckpointStore{Store: objects, Prefix: "/runs/"}

	loc, err := store.Save(context.Background(), "hiv_1", sampleCheckpoint())
	require.NoError(t, err)
	assert.Equal(t, "runs/hiv_1", loc)
	assert.Equal(t, "application/json", objects.types["runs/hiv_1"])

	got, err := store.Load(context.Background(), "hiv_1")
	require.NoError(t, err)
	assert.Equal(t, sampleCheckpoint(), got)

	_, err = store.Load(context.Background(), "hiv_2")
	assert.True(t, errors.IsCode(err, errors.ErrCodeCheckpointNotFound))

	objects.failPut = errors.New(errors.ErrCodeStorageError, "down")
	_, err = store.Save(context.Background(), "hiv_2", sampleCheckpoint())
	assert.True(t, errors.IsCode(err, errors.CodeCheckpointFailed))
}

func TestMirroredCheckpointStore(t *testing.T) {
	objects := newMemObjectStore()
	store := &MirroredCheckpointStore{
		Primary: &FileCheckpointStore{Dir: t.TempDir()},
		Mirrors: []CheckpointStore{&ObjectCheckpointStore{Store: objects}},
	}
	assert.Equal(t, "file+s3", store.Kind())

	_, err := store.Save(context.Background(), "lipo_0", sampleCheckpoint())
	require.NoError(t, err)
	ok, _ := objects.Exists(context.Background(), "lipo_0")
	assert.True(t, ok)

	got, err := store.Load(context.Background(), "lipo_0")
	require.NoError(t, err)
	assert.Equal(t, "hiv", got.Dataset)

	objects.failPut = errors.New(errors.ErrCodeStorageError, "down")
	_, err = store.Save(context.Background(), "lipo_1", sampleCheckpoint())
	assert.Error(t, err)
}
