package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// LoadUserStats retrieves the statistics document for userID.
func (s *PostgresStore) LoadUserStats(ctx context.Context, userID string) (*models.UserStatistics, storage.Version, error) {
	var (
		data    []byte
		version int64
	)
	err := s.pool.QueryRow(ctx,
		"SELECT data, version FROM user_statistics WHERE user_id = $1",
		userID,
	).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user statistics: %w", err)
	}

	stats := &models.UserStatistics{}
	if err := json.Unmarshal(data, stats); err != nil {
		return nil, 0, fmt.Errorf("failed to decode user statistics: %w", err)
	}
	return stats, storage.Version(version), nil
}

// SaveUserStats writes the statistics document if its version equals expected.
func (s *PostgresStore) SaveUserStats(ctx context.Context, stats *models.UserStatistics, expected storage.Version) (storage.Version, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return 0, fmt.Errorf("failed to encode user statistics: %w", err)
	}

	if expected == storage.NoVersion {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO user_statistics (user_id, data, updated_at, version) VALUES ($1, $2, $3, 1)
			 ON CONFLICT (user_id) DO NOTHING`,
			stats.UserID, data, stats.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert user statistics: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return 0, storage.ErrConflict
		}
		return 1, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE user_statistics SET data = $1, updated_at = $2, version = version + 1
		 WHERE user_id = $3 AND version = $4`,
		data, stats.UpdatedAt, stats.UserID, int64(expected),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update user statistics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, storage.ErrConflict
	}
	return expected + 1, nil
}
