// Package progresscache backs the §6 "GET /video/{videoId}" read path with
// a cache in front of the progress-document row, in the teacher's
// internal/realtime/bus idiom: a Redis-backed implementation when REDIS_ADDR
// is configured (for multi-instance deployments so every instance's polling
// GET sees the latest writer's snapshot without a DB round trip on every
// request), falling back to an in-memory map for a single-process run.
package progresscache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/types"
)

// Cache is a best-effort read-through cache: a miss or error here must
// never fail the request, the caller always has the database row as the
// source of truth and falls back to it.
type Cache interface {
	Get(ctx context.Context, videoID string) (*types.ProgressDocument, bool)
	Set(ctx context.Context, videoID string, doc *types.ProgressDocument, ttl time.Duration)
}

// New returns a Redis-backed cache when REDIS_ADDR is set, otherwise an
// in-memory cache scoped to this process.
func New(log *logger.Logger) Cache {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		if log != nil {
			log.Info("progresscache: REDIS_ADDR not set, using in-memory cache")
		}
		return newMemCache()
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 5 * time.Second})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		if log != nil {
			log.Warn("progresscache: redis ping failed, falling back to in-memory cache", "error", err)
		}
		return newMemCache()
	}
	if log != nil {
		log.Info("progresscache: using redis", "addr", addr)
	}
	return &redisCache{log: log.With("component", "progresscache"), rdb: rdb}
}

type redisCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func key(videoID string) string { return fmt.Sprintf("montage:progress:%s", videoID) }

func (c *redisCache) Get(ctx context.Context, videoID string) (*types.ProgressDocument, bool) {
	raw, err := c.rdb.Get(ctx, key(videoID)).Bytes()
	if err != nil {
		return nil, false
	}
	var doc types.ProgressDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.log.Warn("progresscache: corrupt cache entry, ignoring", "video_id", videoID, "error", err)
		return nil, false
	}
	return &doc, true
}

func (c *redisCache) Set(ctx context.Context, videoID string, doc *types.ProgressDocument, ttl time.Duration) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(videoID), raw, ttl).Err(); err != nil {
		c.log.Warn("progresscache: redis set failed", "video_id", videoID, "error", err)
	}
}

type memEntry struct {
	doc     *types.ProgressDocument
	expires time.Time
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]memEntry)}
}

func (c *memCache) Get(_ context.Context, videoID string) (*types.ProgressDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[videoID]
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.doc, true
}

func (c *memCache) Set(_ context.Context, videoID string, doc *types.ProgressDocument, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[videoID] = memEntry{doc: doc, expires: time.Now().Add(ttl)}
}
