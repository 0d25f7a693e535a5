package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/tasksheet/pkg/model"
	"github.com/harrisonrobin/tasksheet/pkg/repo"
)

// Repository wraps a ledger repository with a Redis read-through cache of the
// last loaded snapshot. Writes always go to the base repository and drop the
// cached copy whether or not they succeed.
type Repository struct {
	base  repo.Repository
	redis *redis.Client
	key   string
	ttl   time.Duration
}

// New creates a caching repository storing snapshots under name for ttl.
func New(base repo.Repository, client *redis.Client, name string, ttl time.Duration) *Repository {
	if base == nil {
		panic("cache.New: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Repository{base: base, redis: client, key: cacheKey(name), ttl: ttl}
}

func (c *Repository) Load(ctx context.Context) (repo.Snapshot, error) {
	if snap, ok := c.loadFromCache(ctx); ok {
		return snap, nil
	}
	snap, err := c.base.Load(ctx)
	if err != nil {
		return snap, err
	}
	c.store(ctx, snap)
	return snap, nil
}

func (c *Repository) ReplaceAll(ctx context.Context, tasks []model.Task, expected string) (string, error) {
	version, err := c.base.ReplaceAll(ctx, tasks, expected)
	// A failed write may mean the cached snapshot is already stale, and the
	// caller's next step is a reload that has to reach the store.
	c.evict(ctx)
	if err != nil {
		return "", err
	}
	return version, nil
}

func (c *Repository) loadFromCache(ctx context.Context) (repo.Snapshot, bool) {
	if c.redis == nil {
		return repo.Snapshot{}, false
	}
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warnf("ledger cache read failed, using store: %v", err)
			_ = c.redis.Del(ctx, c.key).Err()
		}
		return repo.Snapshot{}, false
	}
	var snap repo.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		_ = c.redis.Del(ctx, c.key).Err()
		return repo.Snapshot{}, false
	}
	if snap.Tasks == nil {
		snap.Tasks = []model.Task{}
	}
	return snap, true
}

func (c *Repository) store(ctx context.Context, snap repo.Snapshot) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		log.Warnf("ledger cache write failed: %v", err)
	}
}

func (c *Repository) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, c.key).Result()
}

func cacheKey(name string) string {
	return "ledger:" + name
}

var _ repo.Repository = (*Repository)(nil)
