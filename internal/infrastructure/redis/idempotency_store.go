package redisstore

import (
	"context"
	"time"

	"booking-service/internal/application"

	"github.com/redis/go-redis/v9"
)

var _ application.IdempotencyStore = (*Store)(nil)

const idempotencyPrefix = "booking:idem:"

// Store remembers idempotency keys of booking requests for TTL.
type Store struct {
	Client redis.Cmdable
	TTL    time.Duration
}

func New(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

func (s *Store) TryReserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.Client.SetNX(ctx, idempotencyPrefix+key, "1", s.TTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.Client.Del(ctx, idempotencyPrefix+key).Err()
}
