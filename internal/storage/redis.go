package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tradesxbt/config"
)

type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects using cfg.URL, falling back to localhost when the URL
// does not parse, and pings once.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	r := newRedis(cfg)
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return r, nil
}

func newRedis(cfg config.RedisConfig) *Redis {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opt = &redis.Options{Addr: "localhost:6379", DB: cfg.DB}
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	return &Redis{client: redis.NewClient(opt), prefix: cfg.Prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
