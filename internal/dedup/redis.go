package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key written by RedisCache.
const DefaultNamespace = "torspider"

// RedisCache is a Cache backed by Redis sets, one key per set.
// Several crawler processes pointed at the same Redis share one visited set.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

// NewRedisCache wraps an existing client. Keys are "<namespace>:<set>".
func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisCache{client: client, namespace: namespace}
}

// OpenRedis connects to the Redis server at rawURL ("redis://[:password@]host:port/db")
// and checks that it answers.
func OpenRedis(ctx context.Context, rawURL, namespace string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	c := NewRedisCache(redis.NewClient(opts), namespace)
	if err := c.Ping(ctx); err != nil {
		_ = c.client.Close()
		return nil, err
	}
	return c, nil
}

// Set returns the named set.
func (c *RedisCache) Set(name string) Set {
	return &redisSet{client: c.client, key: c.namespace + ":" + name}
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return Unavailable("ping", err)
	}
	return nil
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

type redisSet struct {
	client *redis.Client
	key    string
}

// AddIfAbsent uses SADD, which reports the number of members actually added.
func (s *redisSet) AddIfAbsent(ctx context.Context, member string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, member).Result()
	if err != nil {
		return false, Unavailable("sadd "+s.key, err)
	}
	return added == 1, nil
}

func (s *redisSet) Contains(ctx context.Context, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, member).Result()
	if err != nil {
		return false, Unavailable("sismember "+s.key, err)
	}
	return ok, nil
}

func (s *redisSet) Remove(ctx context.Context, member string) error {
	if err := s.client.SRem(ctx, s.key, member).Err(); err != nil {
		return Unavailable("srem "+s.key, err)
	}
	return nil
}

func (s *redisSet) Pop(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := s.client.SPopN(ctx, s.key, int64(n)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, Unavailable("spop "+s.key, err)
	}
	return members, nil
}

func (s *redisSet) Len(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, Unavailable("scard "+s.key, err)
	}
	return n, nil
}
