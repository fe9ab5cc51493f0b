package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyRepository remembers the outcome of a submission under the
// caller's Idempotency-Key.
type IdempotencyRepository interface {
	Get(ctx context.Context, scope, key string) ([]byte, bool, error)
	Save(ctx context.Context, scope, key string, value []byte) error
}

type redisIdempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyRepository(client *redis.Client, ttl time.Duration) IdempotencyRepository {
	return &redisIdempotencyRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *redisIdempotencyRepository) getKey(scope, key string) string {
	return fmt.Sprintf("idem:workflow:%s:%s", scope, key)
}

func (r *redisIdempotencyRepository) Get(ctx context.Context, scope, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.getKey(scope, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *redisIdempotencyRepository) Save(ctx context.Context, scope, key string, value []byte) error {
	return r.client.Set(ctx, r.getKey(scope, key), value, r.ttl).Err()
}
