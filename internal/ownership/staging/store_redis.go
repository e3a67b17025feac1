package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"titleledger/internal/ownership/models"
	id "titleledger/pkg/domain"
	"titleledger/pkg/platform/sentinel"
)

const stagingKeyPrefix = "transfer-staging:"

// RedisStore is a Redis-backed staging store. This is the production
// implementation; expiry is delegated to Redis key TTLs so multiple
// instances share staging state without a sweeper.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed staging store. The client lifecycle is
// managed by the caller.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func stagingKey(unitID id.UnitID) string {
	return stagingKeyPrefix + unitID.String()
}

// Put stages the distribution as JSON with atomic set-with-expiry.
func (s *RedisStore) Put(ctx context.Context, dist *models.StagedDistribution, ttl time.Duration) error {
	payload, err := json.Marshal(dist)
	if err != nil {
		return fmt.Errorf("marshal staged distribution: %w", err)
	}
	return s.client.Set(ctx, stagingKey(dist.UnitID), payload, ttl).Err()
}

// Get loads the staged distribution for the unit. An absent or expired key
// maps to sentinel.ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, unitID id.UnitID) (*models.StagedDistribution, error) {
	payload, err := s.client.Get(ctx, stagingKey(unitID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var dist models.StagedDistribution
	if err := json.Unmarshal(payload, &dist); err != nil {
		return nil, fmt.Errorf("unmarshal staged distribution: %w", err)
	}
	return &dist, nil
}

// Delete removes the staged entry, if any.
func (s *RedisStore) Delete(ctx context.Context, unitID id.UnitID) error {
	return s.client.Del(ctx, stagingKey(unitID)).Err()
}
