package permission

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go-workflow/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// GrantSource loads the active grants from storage.
type GrantSource interface {
	ListActive(ctx context.Context) ([]Grant, error)
}

// SnapshotCache serves grant snapshots without hitting storage on every
// permission check. Writers call Invalidate after changing grants.
type SnapshotCache interface {
	Get(ctx context.Context) (*Snapshot, error)
	Invalidate(ctx context.Context) error
}

// NewSnapshotCache keeps snapshots in process, or in Redis when REDIS_URL
// is set so that every replica sees grant changes within one TTL.
func NewSnapshotCache(lc fx.Lifecycle, cfg *config.Config, source GrantRepository, log *zap.Logger) (SnapshotCache, error) {
	if cfg.RedisURL == "" {
		return NewMemoryCache(source, cfg.GrantCacheTTL), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	log.Info("grant snapshots cached in redis", zap.String("addr", opts.Addr))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedisCache(client, source, cfg.GrantCacheTTL, log), nil
}

type MemoryCache struct {
	source GrantSource
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	snap     *Snapshot
	loadedAt time.Time
}

func NewMemoryCache(source GrantSource, ttl time.Duration) *MemoryCache {
	return &MemoryCache{source: source, ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return c.snap, nil
	}
	grants, err := c.source.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	c.snap = NewSnapshot(grants)
	c.loadedAt = c.now()
	return c.snap, nil
}

func (c *MemoryCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
	return nil
}

const redisSnapshotKey = "workflow:grants:snapshot"

type RedisCache struct {
	client *redis.Client
	source GrantSource
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisCache(client *redis.Client, source GrantSource, ttl time.Duration, log *zap.Logger) *RedisCache {
	return &RedisCache{client: client, source: source, ttl: ttl, log: log}
}

// Get falls back to storage when Redis is unavailable.
func (c *RedisCache) Get(ctx context.Context) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, redisSnapshotKey).Bytes()
	switch {
	case err == nil:
		var grants []Grant
		if err := json.Unmarshal(raw, &grants); err == nil {
			return NewSnapshot(grants), nil
		}
		c.log.Warn("discarding unreadable grant snapshot", zap.Error(err))
	case err != redis.Nil:
		c.log.Warn("redis unavailable, loading grants from storage", zap.Error(err))
	}

	grants, err := c.source.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(grants); err == nil {
		if err := c.client.Set(ctx, redisSnapshotKey, payload, c.ttl).Err(); err != nil {
			c.log.Warn("could not store grant snapshot", zap.Error(err))
		}
	}
	return NewSnapshot(grants), nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, redisSnapshotKey).Err()
}
