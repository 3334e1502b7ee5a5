package molnet

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/database/redis"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/storage/minio"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// countingSource serves fixed bytes and counts fetches.
type countingSource struct {
	data  []byte
	err   error
	calls atomic.Int32
}

func (s *countingSource) Kind() string { return "fake" }

func (s *countingSource) Fetch(_ context.Context, _ string) ([]byte, error) {
	s.calls.Add(1)
	return s.data, s.err
}

// mapObjectStore is an in-memory minio.ObjectStore.
type mapObjectStore struct {
	minio.ObjectStore
	objects map[string][]byte
}

func (m *mapObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m.objects[key]
	if !ok {
		return nil, errors.Wrap(minio.ErrObjectNotFound, errors.CodeUnknown, key)
	}
	return b, nil
}

func (m *mapObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.NotImplemented("open")
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "HIV.csv"), []byte("smiles,HIV_active\n"), 0o644))

	src := LocalSource{Dir: dir}
	data, err := src.Fetch(context.Background(), "HIV.csv")
	require.NoError(t, err)
	assert.Equal(t, "smiles,HIV_active\n", string(data))
	assert.Equal(t, "local", src.Kind())

	_, err = src.Fetch(context.Background(), "SAMPL.csv")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDatasetFetchFailed))
}

func TestObjectSource(t *testing.T) {
	src := ObjectSource{Store: &mapObjectStore{objects: map[string][]byte{"HIV.csv": []byte("x")}}}
	data, err := src.Fetch(context.Background(), "HIV.csv")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	_, err = src.Fetch(context.Background(), "missing.csv")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDatasetFetchFailed))
	assert.ErrorIs(t, err, minio.ErrObjectNotFound)
}

func newCachedSource(t *testing.T, inner Source, withLock bool) (*CachedSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), redis.Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	src := &CachedSource{
		Inner:  inner,
		Cache:  redis.NewCache(client, nil),
		TTL:    time.Hour,
		Logger: logging.NewNopLogger(),
	}
	if withLock {
		src.NewLock = func(name string) redis.Locker {
			return redis.NewMutex(client, "csn:", name, nil, redis.WithRetryDelay(10*time.Millisecond))
		}
	}
	return src, mr
}

func TestCachedSource_FetchesOnce(t *testing.T) {
	for _, withLock := range []bool{false, true} {
		inner := &countingSource{data: []byte("smiles,y\nC,1\n")}
		src, mr := newCachedSource(t, inner, withLock)

		for i := 0; i < 3; i++ {
			data, err := src.Fetch(context.Background(), "SAMPL.csv")
			require.NoError(t, err)
			assert.Equal(t, inner.data, data)
		}
		assert.Equal(t, int32(1), inner.calls.Load())
		assert.True(t, mr.Exists("csn:raw:SAMPL.csv"))
		assert.False(t, mr.Exists("csn:lock:fetch:SAMPL.csv"), "lock released")
		assert.Equal(t, "fake+cache", src.Kind())
	}
}

func TestCachedSource_InnerErrorNotCached(t *testing.T) {
	inner := &countingSource{err: errors.New(errors.CodeDatasetFetchFailed, "offline")}
	src, mr := newCachedSource(t, inner, true)

	_, err := src.Fetch(context.Background(), "HIV.csv")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDatasetFetchFailed))
	assert.False(t, mr.Exists("csn:raw:HIV.csv"))

	_, err = src.Fetch(context.Background(), "HIV.csv")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}
