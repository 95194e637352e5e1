package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// SaveRestaurant inserts or replaces a restaurant.
func (s *PostgresStore) SaveRestaurant(ctx context.Context, r *models.Restaurant) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO restaurants (id, name, cuisine, delivery_fee_cents, menu, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, cuisine = EXCLUDED.cuisine,
		 delivery_fee_cents = EXCLUDED.delivery_fee_cents, menu = EXCLUDED.menu`,
		r.ID, r.Name, r.Cuisine, models.ToCents(r.DeliveryFee), menu, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save restaurant: %w", err)
	}
	return nil
}

// GetRestaurant retrieves a restaurant by ID.
func (s *PostgresStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, name, cuisine, delivery_fee_cents, menu, created_at FROM restaurants WHERE id = $1",
		id,
	)
	r, err := scanRestaurant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}
	return r, nil
}

// ListRestaurants returns all restaurants ordered by name.
func (s *PostgresStore) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, cuisine, delivery_fee_cents, menu, created_at FROM restaurants ORDER BY name, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	restaurants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Restaurant, error) {
		return scanRestaurant(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect restaurants: %w", err)
	}
	return restaurants, nil
}

func scanRestaurant(row pgx.Row) (*models.Restaurant, error) {
	var (
		r        models.Restaurant
		feeCents int64
		menu     []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Cuisine, &feeCents, &menu, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.DeliveryFee = models.FromCents(feeCents)
	r.CreatedAt = r.CreatedAt.UTC()
	if err := json.Unmarshal(menu, &r.Menu); err != nil {
		return nil, fmt.Errorf("failed to decode menu: %w", err)
	}
	return &r, nil
}
