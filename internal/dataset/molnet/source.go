package molnet

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/database/redis"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/storage/minio"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Source returns the raw bytes of a catalog file.
type Source interface {
	Fetch(ctx context.Context, file string) ([]byte, error)
	Kind() string
}

// LocalSource reads files from a directory.
type LocalSource struct {
	Dir string
}

func (s LocalSource) Kind() string { return "local" }

func (s LocalSource) Fetch(ctx context.Context, file string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCanceled, "fetch dataset")
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, file))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatasetFetchFailed, "read dataset file").WithDetail(file)
	}
	return data, nil
}

// ObjectSource reads files from an S3-compatible bucket.
type ObjectSource struct {
	Store minio.ObjectStore
}

func (s ObjectSource) Kind() string { return "s3" }

func (s ObjectSource) Fetch(ctx context.Context, file string) ([]byte, error) {
	data, err := s.Store.Get(ctx, file)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatasetFetchFailed, "download dataset").WithDetail(file)
	}
	return data, nil
}

// CachedSource serves files from Redis and falls back to Inner.  When
// NewLock is set, a cross-process lock keeps concurrent misses from
// downloading the same file twice.
type CachedSource struct {
	Inner   Source
	Cache   redis.Cache
	TTL     time.Duration
	NewLock func(name string) redis.Locker
	Metrics *prometheus.TrainingMetrics
	Logger  logging.Logger
}

func (s *CachedSource) Kind() string { return s.Inner.Kind() + "+cache" }

func cacheKey(file string) string { return "raw:" + file }

func (s *CachedSource) Fetch(ctx context.Context, file string) ([]byte, error) {
	log := logging.OrDefault(s.Logger)
	metrics := prometheus.OrNop(s.Metrics)

	loaded := false
	data, err := s.Cache.GetOrLoad(ctx, cacheKey(file), s.TTL, func(ctx context.Context) ([]byte, error) {
		loaded = true
		if s.NewLock == nil {
			return s.Inner.Fetch(ctx, file)
		}
		lock := s.NewLock("fetch:" + file)
		if err := lock.Lock(ctx); err != nil {
			log.Warn("dataset fetch lock unavailable, fetching without it", logging.String("file", file), logging.Err(err))
			return s.Inner.Fetch(ctx, file)
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				log.Warn("failed to release dataset fetch lock", logging.String("file", file), logging.Err(err))
			}
		}()
		// Another process may have filled the cache while we waited.
		if b, err := s.Cache.GetBytes(ctx, cacheKey(file)); err == nil {
			return b, nil
		}
		return s.Inner.Fetch(ctx, file)
	})
	if err != nil {
		return nil, err
	}

	result := "hit"
	if loaded {
		result = "miss"
	}
	metrics.CacheLookupsTotal.WithLabelValues(result).Inc()
	log.Debug("dataset cache lookup", logging.String("file", file), logging.String("result", result))
	return data, nil
}
