package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisIdempotencyStore struct {
	client *redis.Client
}

// NewRedisIdempotencyStore creates an IdempotencyStore backed by Redis
// SETNX semantics, so concurrent re-delivery of the same key never
// double-applies an event.
func NewRedisIdempotencyStore(client *redis.Client) IdempotencyStore {
	return &redisIdempotencyStore{client: client}
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, householdID, productID, key, payloadHash string, ttl time.Duration) (bool, bool, error) {
	redisKey := idempotencyRedisKey(householdID, productID, key)

	ok, err := s.client.SetNX(ctx, redisKey, payloadHash, ttl).Result()
	if err != nil {
		return false, false, err
	}
	if ok {
		return true, true, nil
	}

	existing, err := s.client.Get(ctx, redisKey).Result()
	if err != nil {
		return false, false, err
	}
	return false, existing == payloadHash, nil
}

func idempotencyRedisKey(householdID, productID, key string) string {
	return fmt.Sprintf("predictor:idem:%s:%s:%s", householdID, productID, key)
}
