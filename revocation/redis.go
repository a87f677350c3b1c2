package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces denylist entries in a shared redis instance.
const keyPrefix = "authcore:revoked:"

// Redis is a Denylist backed by a shared redis instance, for
// deployments running more than one authcore process.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a redis-backed denylist.
func NewRedis(addr, password string, db int) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing redis client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Ping verifies connectivity at startup.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Revoke implements Denylist. The entry expires with the token.
func (r *Redis) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, keyPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked implements Denylist.
func (r *Redis) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
