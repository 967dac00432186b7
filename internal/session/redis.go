package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RedisRevoker struct {
	redisdb *redis.Client
}

func NewRedisRevoker(cfg RedisConfig) *RedisRevoker {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &RedisRevoker{redisdb: redisdb}
}

func revocationKey(jti string) string {
	return "session:revoked:" + jti
}

func (r *RedisRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// token already expired; nothing to remember
		return nil
	}

	return r.redisdb.Set(ctx, revocationKey(jti), "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.redisdb.Exists(ctx, revocationKey(jti)).Result()

	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// Ping checks redis connectivity for readiness probes.

func (r *RedisRevoker) Ping(ctx context.Context) error {
	return r.redisdb.Ping(ctx).Err()
}

// Close closes the underlying client.

func (r *RedisRevoker) Close() error {
	return r.redisdb.Close()
}
