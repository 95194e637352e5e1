package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// LoadUserStats retrieves the statistics document for userID.
func (s *SQLiteStore) LoadUserStats(ctx context.Context, userID string) (*models.UserStatistics, storage.Version, error) {
	var (
		data    string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT data, version FROM user_statistics WHERE user_id = ?",
		userID,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user statistics: %w", err)
	}

	stats := &models.UserStatistics{}
	if err := json.Unmarshal([]byte(data), stats); err != nil {
		return nil, 0, fmt.Errorf("failed to decode user statistics: %w", err)
	}
	return stats, storage.Version(version), nil
}

// SaveUserStats writes the statistics document if its version equals expected.
// With storage.NoVersion the row is inserted and must not exist yet.
func (s *SQLiteStore) SaveUserStats(ctx context.Context, stats *models.UserStatistics, expected storage.Version) (storage.Version, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return 0, fmt.Errorf("failed to encode user statistics: %w", err)
	}

	if expected == storage.NoVersion {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO user_statistics (user_id, data, updated_at, version) VALUES (?, ?, ?, 1)
			 ON CONFLICT (user_id) DO NOTHING`,
			stats.UserID, string(data), toUnix(stats.UpdatedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert user statistics: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return 0, storage.ErrConflict
		}
		return 1, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_statistics SET data = ?, updated_at = ?, version = version + 1
		 WHERE user_id = ? AND version = ?`,
		string(data), toUnix(stats.UpdatedAt), stats.UserID, int64(expected),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update user statistics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return 0, storage.ErrConflict
	}
	return expected + 1, nil
}
