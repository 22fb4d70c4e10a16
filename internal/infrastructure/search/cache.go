package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

// KV is the minimal key-value contract used for caching search hits.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Cached memoizes successful hits. Misses and errors are never cached.
type Cached struct {
	next   ports.WebSearcher
	kv     KV
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next ports.WebSearcher, kv KV, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, kv: kv, ttl: ttl, logger: logger}
}

func (c *Cached) Search(ctx context.Context, query string) (domain.SearchHit, bool, error) {
	key := cacheKey(query)
	if raw, ok, err := c.kv.Get(ctx, key); err != nil {
		c.logger.Warn("search_cache_get_failed", "error", err)
	} else if ok {
		var hit domain.SearchHit
		if err := json.Unmarshal([]byte(raw), &hit); err == nil && hit.Text != "" {
			return hit, true, nil
		}
	}

	hit, found, err := c.next.Search(ctx, query)
	if err != nil || !found {
		return hit, found, err
	}
	if raw, err := json.Marshal(hit); err == nil {
		if err := c.kv.Set(ctx, key, string(raw), c.ttl); err != nil {
			c.logger.Warn("search_cache_set_failed", "error", err)
		}
	}
	return hit, true, nil
}

func cacheKey(query string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.Join(strings.Fields(query), " "))))
	return "websearch:" + hex.EncodeToString(sum[:])
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(ctx context.Context, url string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisKV{client: client}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
