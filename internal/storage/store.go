// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/grouporder/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional save finds a different
	// version than the caller expected, or a create finds the record present.
	ErrConflict = errors.New("version conflict")
)

// Version is an optimistic-concurrency token. A record starts at version 1
// and every successful save increments it by one.
type Version int64

// NoVersion is passed to SaveUserStats to create a record that must not exist yet.
const NoVersion Version = 0

// Default and maximum page sizes for ListOrders.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// OrderFilter narrows ListOrders. Zero values mean "any".
type OrderFilter struct {
	Status    models.Status
	CreatedBy string
	Limit     int
	Offset    int
}

// Normalize clamps Limit and Offset into their valid ranges.
func (f OrderFilter) Normalize() OrderFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// RestaurantCatalog reads and writes the restaurants orders are placed with.
type RestaurantCatalog interface {
	// GetRestaurant returns ErrNotFound for unknown IDs.
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)

	// ListRestaurants returns every restaurant ordered by name.
	ListRestaurants(ctx context.Context) ([]*models.Restaurant, error)

	// SaveRestaurant inserts or replaces a restaurant. The ID is generated when empty.
	SaveRestaurant(ctx context.Context, r *models.Restaurant) error
}

// OrderStore persists group orders with version-conditioned writes.
type OrderStore interface {
	// CreateOrder persists a new order at version 1.
	// Returns ErrConflict if an order with the same ID exists.
	CreateOrder(ctx context.Context, order *models.GroupOrder) error

	// LoadOrder returns the order and its current version, or ErrNotFound.
	LoadOrder(ctx context.Context, id string) (*models.GroupOrder, Version, error)

	// SaveOrder replaces the stored order if its version still equals expected.
	// Returns the new version, ErrConflict if the version moved, or ErrNotFound.
	SaveOrder(ctx context.Context, order *models.GroupOrder, expected Version) (Version, error)

	// ListOrders returns one page of orders, newest first, plus the total
	// number of orders matching the filter.
	ListOrders(ctx context.Context, filter OrderFilter) ([]*models.GroupOrder, int, error)
}

// StatsStore persists per-user statistics with version-conditioned writes.
type StatsStore interface {
	// LoadUserStats returns the statistics and their version, or ErrNotFound.
	LoadUserStats(ctx context.Context, userID string) (*models.UserStatistics, Version, error)

	// SaveUserStats writes stats if the stored version equals expected.
	// With expected == NoVersion the record must not exist yet.
	SaveUserStats(ctx context.Context, stats *models.UserStatistics, expected Version) (Version, error)
}

// Store defines the interface for all storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, Redis)
// without changing the engine.
type Store interface {
	RestaurantCatalog
	OrderStore
	StatsStore

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
