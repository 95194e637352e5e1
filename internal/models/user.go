package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserStatistics holds one user's ordering history.
// It is created on the user's first join and updated on every later join.
type UserStatistics struct {
	// UserID is the owning user.
	UserID string `json:"user_id"`

	// TotalOrders counts successful joins.
	TotalOrders int `json:"total_orders"`

	// TotalSpent sums the participant total amount at each join.
	TotalSpent decimal.Decimal `json:"total_spent"`

	// FavoriteRestaurants is sorted by OrderCount descending, stable on ties,
	// and bounded to the configured top-N.
	FavoriteRestaurants []RestaurantStat `json:"favorite_restaurants"`

	// MostOrderedItems is sorted by Quantity descending, stable on ties,
	// and bounded to the configured top-N. Entries are unique by Name.
	MostOrderedItems []ItemStat `json:"most_ordered_items"`

	// PaymentHistory has one record per order the user joined, oldest first.
	PaymentHistory []PaymentRecord `json:"payment_history"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RestaurantStat aggregates a user's orders at one restaurant.
type RestaurantStat struct {
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	OrderCount   int             `json:"order_count"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
}

// ItemStat aggregates how much of one item (by name) a user ordered.
type ItemStat struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// NewUserStatistics returns empty statistics for userID.
func NewUserStatistics(userID string) *UserStatistics {
	return &UserStatistics{
		UserID:              userID,
		TotalSpent:          decimal.Zero,
		FavoriteRestaurants: []RestaurantStat{},
		MostOrderedItems:    []ItemStat{},
		PaymentHistory:      []PaymentRecord{},
	}
}
