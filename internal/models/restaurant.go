package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant is a catalog entry orders are placed with.
type Restaurant struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Cuisine string `json:"cuisine" yaml:"cuisine"`

	// DeliveryFee is the default fee for new group orders.
	DeliveryFee decimal.Decimal `json:"delivery_fee" yaml:"delivery_fee"`

	Menu      []MenuItem `json:"menu" yaml:"menu"`
	CreatedAt time.Time  `json:"created_at" yaml:"-"`
}

// MenuItem is an informational menu entry. Orders do not have to match it.
type MenuItem struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description"`
	Category    string          `json:"category" yaml:"category"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
}
