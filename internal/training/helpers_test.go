package training

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/storage/minio"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// memObjectStore is an in-memory minio.ObjectStore.
type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failPut error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjectStore) Put(_ context.Context, key string, data []byte, contentType string, _ map[string]string) (*minio.ObjectInfo, error) {
	if m.failPut != nil {
		return nil, m.failPut
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return &minio.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memObjectStore) PutFile(ctx context.Context, key, path, contentType string) (*minio.ObjectInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = filepath.Base(path)
	}
	return m.Put(ctx, key, data, contentType, nil)
}

func (m *memObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, errors.Wrap(minio.ErrObjectNotFound, errors.CodeUnknown, key)
	}
	return b, nil
}

func (m *memObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	b, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(string(b))), nil
}

func (m *memObjectStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memObjectStore) List(_ context.Context, prefix string) ([]minio.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []minio.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, minio.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
