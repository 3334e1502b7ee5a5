package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// Locker is a best-effort cross-process mutex.
type Locker interface {
	Lock(ctx context.Context) error
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

type LockOption func(*lockConfig)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

func WithRetryDelay(delay time.Duration) LockOption {
	return func(c *lockConfig) { c.retryDelay = delay }
}

func WithRetryCount(count int) LockOption {
	return func(c *lockConfig) { c.retryCount = count }
}

type lockConfig struct {
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

type mutex struct {
	client *Client
	key    string
	value  string
	config lockConfig
	logger logging.Logger
}

// NewMutex returns a lock on "<prefix>lock:<name>".  Each Mutex carries a
// random owner token so only its holder can release it.
func NewMutex(client *Client, prefix, name string, log logging.Logger, opts ...LockOption) Locker {
	cfg := lockConfig{
		ttl:        2 * time.Minute,
		retryDelay: 250 * time.Millisecond,
		retryCount: 480,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &mutex{
		client: client,
		key:    prefix + "lock:" + name,
		value:  uuid.New().String(),
		config: cfg,
		logger: logging.OrDefault(log).Named("lock"),
	}
}

func (m *mutex) TryLock(ctx context.Context) (bool, error) {
	rdb, err := m.client.Underlying()
	if err != nil {
		return false, err
	}
	ok, err := rdb.SetNX(ctx, m.key, m.value, m.config.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "set lock").WithDetail(m.key)
	}
	return ok, nil
}

// Lock retries TryLock up to retryCount times, retryDelay apart.
func (m *mutex) Lock(ctx context.Context) error {
	for i := 0; ; i++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			m.logger.Debug("lock acquired", logging.String("key", m.key), logging.Int("attempts", i+1))
			return nil
		}
		if i >= m.config.retryCount {
			return ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrCodeCanceled, "wait for lock")
		case <-time.After(m.config.retryDelay):
		}
	}
}

func (m *mutex) Unlock(ctx context.Context) error {
	rdb, err := m.client.Underlying()
	if err != nil {
		return err
	}
	res, err := unlockScript.Run(ctx, rdb, []string{m.key}, m.value).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "release lock").WithDetail(m.key)
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}
