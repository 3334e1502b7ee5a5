// Package minio wraps minio-go for the two object stores the pipeline talks
// to: the public bucket that serves raw MoleculeNet files and the artifact
// bucket that checkpoints and training reports are mirrored to.
package minio

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// ObjectAPI is the subset of *minio.Client used here.  It exists so tests can
// substitute a mock.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Config describes one bucket reachable through one endpoint.  Keys are
// resolved below Prefix.  Empty credentials select anonymous access.
type Config struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Prefix       string
	Region       string
	UseSSL       bool
	CreateBucket bool
}

// Anonymous reports whether requests are sent unsigned.
func (c Config) Anonymous() bool { return c.AccessKey == "" && c.SecretKey == "" }

// openFunc streams one object.  The default implementation goes through
// ObjectAPI.GetObject; tests swap it because *minio.Object cannot be faked.
type openFunc func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

// Client is a bucket-scoped MinIO/S3 client.
type Client struct {
	api    ObjectAPI
	open   openFunc
	cfg    Config
	logger logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient dials cfg.Endpoint.  When cfg.CreateBucket is set the bucket is
// created if missing; otherwise no request is issued until first use.
func NewClient(ctx context.Context, cfg Config, log logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint and bucket are required")
	}
	creds := credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	if cfg.Anonymous() {
		creds = credentials.New(&credentials.Static{Value: credentials.Value{SignerType: credentials.SignatureAnonymous}})
	}
	mc, err := minio.New(strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://"), &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "create minio client")
	}

	c := NewClientWithAPI(mc, cfg, log)
	if cfg.CreateBucket {
		if err := c.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewClientWithAPI builds a Client over an existing ObjectAPI.
func NewClientWithAPI(api ObjectAPI, cfg Config, log logging.Logger) *Client {
	c := &Client{
		api:    api,
		cfg:    cfg,
		logger: logging.OrDefault(log).Named("minio").With(logging.String("bucket", cfg.Bucket)),
	}
	c.open = c.getObject
	return c
}

func (c *Client) getObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := c.api.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces NoSuchKey before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// EnsureBucket creates the configured bucket when it does not exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	ok, err := c.api.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "check bucket")
	}
	if ok {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.cfg.Bucket, minio.MakeBucketOptions{Region: c.cfg.Region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "create bucket")
	}
	c.logger.Info("bucket created")
	return nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.cfg.Bucket }

// Key resolves name below the configured prefix.
func (c *Client) Key(name string) string {
	p := strings.Trim(c.cfg.Prefix, "/")
	name = strings.TrimLeft(name, "/")
	if p == "" {
		return name
	}
	return p + "/" + name
}

// Close marks the client closed.  minio-go holds no connections that need
// releasing beyond the shared http transport.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New(errors.ErrCodeStorageError, "minio client is closed")
	}
	return nil
}
