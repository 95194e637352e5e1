package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// SaveRestaurant inserts or replaces a restaurant.
func (s *SQLiteStore) SaveRestaurant(ctx context.Context, r *models.Restaurant) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Menu == nil {
		r.Menu = []models.MenuItem{}
	}

	menu, err := json.Marshal(r.Menu)
	if err != nil {
		return fmt.Errorf("failed to encode menu: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO restaurants (id, name, cuisine, delivery_fee_cents, menu, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, cuisine = excluded.cuisine,
		 delivery_fee_cents = excluded.delivery_fee_cents, menu = excluded.menu`,
		r.ID, r.Name, r.Cuisine, models.ToCents(r.DeliveryFee), string(menu), toUnix(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save restaurant: %w", err)
	}
	return nil
}

// GetRestaurant retrieves a restaurant by ID.
func (s *SQLiteStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, cuisine, delivery_fee_cents, menu, created_at FROM restaurants WHERE id = ?",
		id,
	)
	r, err := scanRestaurant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}
	return r, nil
}

// ListRestaurants returns all restaurants ordered by name.
func (s *SQLiteStore) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, cuisine, delivery_fee_cents, menu, created_at FROM restaurants ORDER BY name, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	restaurants := []*models.Restaurant{}
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		restaurants = append(restaurants, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate restaurants: %w", err)
	}
	return restaurants, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRestaurant(row scanner) (*models.Restaurant, error) {
	var (
		r         models.Restaurant
		feeCents  int64
		menu      string
		createdAt int64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Cuisine, &feeCents, &menu, &createdAt); err != nil {
		return nil, err
	}
	r.DeliveryFee = models.FromCents(feeCents)
	r.CreatedAt = fromUnix(createdAt)
	if err := json.Unmarshal([]byte(menu), &r.Menu); err != nil {
		return nil, fmt.Errorf("failed to decode menu: %w", err)
	}
	return &r, nil
}
