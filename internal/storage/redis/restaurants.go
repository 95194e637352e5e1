package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// SaveRestaurant inserts or replaces a restaurant.
func (s *RedisStore) SaveRestaurant(ctx context.Context, r *models.Restaurant) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Menu == nil {
		r.Menu = []models.MenuItem{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode restaurant: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.restaurantKey(r.ID), data, 0)
		pipe.SAdd(ctx, s.restaurantsKey(), r.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save restaurant: %w", err)
	}
	return nil
}

// GetRestaurant retrieves a restaurant by ID.
func (s *RedisStore) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	data, err := s.client.Get(ctx, s.restaurantKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}
	r := &models.Restaurant{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to decode restaurant: %w", err)
	}
	return r, nil
}

// ListRestaurants returns all restaurants ordered by name.
func (s *RedisStore) ListRestaurants(ctx context.Context) ([]*models.Restaurant, error) {
	ids, err := s.client.SMembers(ctx, s.restaurantsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	restaurants := []*models.Restaurant{}
	if len(ids) == 0 {
		return restaurants, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.restaurantKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load restaurants: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		r := &models.Restaurant{}
		if err := json.Unmarshal([]byte(raw), r); err != nil {
			return nil, fmt.Errorf("failed to decode restaurant: %w", err)
		}
		restaurants = append(restaurants, r)
	}

	sort.Slice(restaurants, func(i, j int) bool {
		if restaurants[i].Name != restaurants[j].Name {
			return restaurants[i].Name < restaurants[j].Name
		}
		return restaurants[i].ID < restaurants[j].ID
	})
	return restaurants, nil
}
