package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// LoadUserStats retrieves the statistics document for userID.
func (s *RedisStore) LoadUserStats(ctx context.Context, userID string) (*models.UserStatistics, storage.Version, error) {
	fields, err := s.client.HGetAll(ctx, s.statsKey(userID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user statistics: %w", err)
	}
	if len(fields) == 0 {
		return nil, 0, storage.ErrNotFound
	}

	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse statistics version: %w", err)
	}
	stats := &models.UserStatistics{}
	if err := json.Unmarshal([]byte(fields[fieldData]), stats); err != nil {
		return nil, 0, fmt.Errorf("failed to decode user statistics: %w", err)
	}
	return stats, storage.Version(version), nil
}

// SaveUserStats writes the statistics document if its version equals expected.
func (s *RedisStore) SaveUserStats(ctx context.Context, stats *models.UserStatistics, expected storage.Version) (storage.Version, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return 0, fmt.Errorf("failed to encode user statistics: %w", err)
	}

	key := s.statsKey(stats.UserID)
	next := expected + 1
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Int64()
		switch {
		case errors.Is(err, redis.Nil):
			current = int64(storage.NoVersion)
		case err != nil:
			return fmt.Errorf("failed to read statistics version: %w", err)
		}
		if storage.Version(current) != expected {
			return storage.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldVersion, int64(next), fieldData, data)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return 0, txConflict(err)
	}
	return next, nil
}
