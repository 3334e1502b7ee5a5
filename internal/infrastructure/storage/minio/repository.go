package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// ErrObjectNotFound is returned (wrapped) when a key does not exist.
var ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")

// ObjectInfo describes one stored object.  Key is relative to the client prefix.
type ObjectInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ObjectStore is the artifact and dataset storage contract.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*ObjectInfo, error)
	PutFile(ctx context.Context, key, path, contentType string) (*ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

type repository struct {
	client *Client
	logger logging.Logger
}

// NewObjectStore returns an ObjectStore scoped to client's bucket and prefix.
func NewObjectStore(client *Client) ObjectStore {
	return &repository{client: client, logger: client.logger}
}

func (r *repository) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*ObjectInfo, error) {
	return r.put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType, metadata)
}

func (r *repository) PutFile(ctx context.Context, key, path, contentType string) (*ObjectInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "open upload source").WithDetail(path)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "stat upload source").WithDetail(path)
	}
	if key == "" {
		key = filepath.Base(path)
	}
	return r.put(ctx, key, f, st.Size(), contentType, nil)
}

func (r *repository) put(ctx context.Context, key string, body io.Reader, size int64, contentType string, metadata map[string]string) (*ObjectInfo, error) {
	if key == "" {
		return nil, errors.InvalidParam("object key is required")
	}
	if err := r.client.checkOpen(); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	start := time.Now()
	info, err := r.client.api.PutObject(ctx, r.client.Bucket(), r.client.Key(key), body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "put object").WithDetail(key)
	}
	r.logger.Debug("object uploaded",
		logging.String("key", key),
		logging.Int64("size", info.Size),
		logging.Duration("elapsed", time.Since(start)))
	return &ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ContentType:  contentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		Metadata:     metadata,
	}, nil
}

func (r *repository) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := r.client.checkOpen(); err != nil {
		return nil, err
	}
	rc, err := r.client.open(ctx, r.client.Bucket(), r.client.Key(key))
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.Wrap(ErrObjectNotFound, errors.CodeUnknown, fmt.Sprintf("%s/%s", r.client.Bucket(), r.client.Key(key)))
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "get object").WithDetail(key)
	}
	return rc, nil
}

func (r *repository) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := r.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "read object").WithDetail(key)
	}
	return data, nil
}

func (r *repository) Exists(ctx context.Context, key string) (bool, error) {
	if err := r.client.checkOpen(); err != nil {
		return false, err
	}
	_, err := r.client.api.StatObject(ctx, r.client.Bucket(), r.client.Key(key), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "stat object").WithDetail(key)
	}
	return true, nil
}

func (r *repository) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := r.client.checkOpen(); err != nil {
		return nil, err
	}
	base := r.client.Key("")
	ch := r.client.api.ListObjects(ctx, r.client.Bucket(), minio.ListObjectsOptions{
		Prefix:    r.client.Key(prefix),
		Recursive: true,
	})
	var out []ObjectInfo
	for obj := range ch {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "list objects")
		}
		key := obj.Key
		if base != "" && len(key) > len(base) && key[:len(base)] == base {
			key = key[len(base):]
		}
		out = append(out, ObjectInfo{
			Key:          key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

func (r *repository) Delete(ctx context.Context, key string) error {
	if err := r.client.checkOpen(); err != nil {
		return err
	}
	if err := r.client.api.RemoveObject(ctx, r.client.Bucket(), r.client.Key(key), minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "remove object").WithDetail(key)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
