package challenge

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Cache = (*Redis)(nil)

const redisKeyPrefix = "2fa_temp:"

// Redis is a Cache backed by a Redis instance, for deployments where login
// and verification may land on different replicas. Redis drops expired keys
// itself, so it cannot distinguish an expired token from an unknown one; both
// surface as ErrNotFound.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis connects a cache to the given Redis address.
func NewRedis(addr, password string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})}
}

func (r *Redis) Put(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, redisKeyPrefix+token, userID, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (r *Redis) Resolve(ctx context.Context, token string) (int64, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// Consume relies on GETDEL for the atomic check-and-delete.
func (r *Redis) Consume(ctx context.Context, token string) (int64, error) {
	val, err := r.client.GetDel(ctx, redisKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (r *Redis) Invalidate(ctx context.Context, token string) error {
	return r.client.Del(ctx, redisKeyPrefix+token).Err()
}
