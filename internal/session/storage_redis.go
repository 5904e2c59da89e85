package session

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisOpTimeout bounds each storage operation so the synchronous Storage
// contract holds even when redis is slow.
const redisOpTimeout = 3 * time.Second

// redisKeyPrefix namespaces session keys in a shared redis instance.
const redisKeyPrefix = "tierdash:"

// RedisStorage is a redis-backed Storage, for deployments where sessions
// must survive the local filesystem (kiosks, ephemeral containers).
type RedisStorage struct {
	client *redis.Client
}

// RedisConfig configures the redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStorage creates a redis-backed store. The connection is
// verified with a ping.
func NewRedisStorage(cfg RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStorage{client: client}, nil
}

func (r *RedisStorage) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	v, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		// An unreachable store reads as absent; the caller falls back
		// to an unauthenticated session.
		return "", false
	}
	return v, true
}

func (r *RedisStorage) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.client.Set(ctx, redisKeyPrefix+key, value, 0).Err()
}

func (r *RedisStorage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Close releases the redis connection.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
