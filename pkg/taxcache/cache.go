package taxcache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

// ErrMiss is returned by a Store when a key doesn't exist.
var ErrMiss = errors.New("taxcache: miss")

// Store is the key-value backend behind a Cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Cache keeps JSON encoded taxonomy lists under fixed keys. A Cache without a
// store is valid and misses on every read.
type Cache struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Disabled returns a cache that never stores anything.
func Disabled() *Cache {
	return &Cache{}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

// Load decodes the list stored under key into dst. It returns false when the
// cache is disabled, the key is missing, or the stored value can't be decoded.
// Corrupt values are dropped so the next write replaces them.
func (c *Cache) Load(ctx context.Context, key string, dst interface{}) bool {
	if !c.Enabled() {
		return false
	}
	log := logger.FromContext(ctx)

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Warn("taxonomy cache read failed", logger.Data{"key": key, "error": err.Error()})
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Warn("dropping corrupt taxonomy cache entry", logger.Data{"key": key, "error": err.Error()})
		_ = c.store.Del(ctx, key)
		return false
	}
	return true
}

// Save stores v under key. Failures are logged and otherwise ignored.
func (c *Cache) Save(ctx context.Context, key string, v interface{}) {
	if !c.Enabled() {
		return
	}
	log := logger.FromContext(ctx)

	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn("failed to encode taxonomy cache entry", logger.Data{"key": key, "error": err.Error()})
		return
	}
	if err := c.store.Set(ctx, key, string(raw), c.ttl); err != nil {
		log.Warn("taxonomy cache write failed", logger.Data{"key": key, "error": err.Error()})
	}
}

func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		logger.FromContext(ctx).Warn("taxonomy cache invalidation failed", logger.Data{"keys": keys, "error": err.Error()})
	}
}

// Ping checks the backing store. A disabled cache returns nil.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return errors.WithStack(c.store.Ping(ctx))
}

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to the Redis instance described by url.
func NewRedisStore(url string) (Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	return &redisStore{rdb: redis.NewClient(opts)}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, errors.WithStack(err)
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.WithStack(s.rdb.Set(ctx, key, value, ttl).Err())
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	return errors.WithStack(s.rdb.Del(ctx, keys...).Err())
}

func (s *redisStore) Ping(ctx context.Context) error {
	return errors.WithStack(s.rdb.Ping(ctx).Err())
}

func (s *redisStore) Close() error {
	return errors.WithStack(s.rdb.Close())
}
