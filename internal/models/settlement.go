package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tells whether a participant has settled with the creator.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// PaymentRecord is one entry in a user's payment history.
type PaymentRecord struct {
	// OrderID is the group order this record belongs to.
	OrderID string `json:"order_id"`

	// RestaurantName is a snapshot for display.
	RestaurantName string `json:"restaurant_name"`

	// Amount is the participant's subtotal (items only).
	Amount decimal.Decimal `json:"amount"`

	// DeliveryFee is the participant's fee share when last updated.
	DeliveryFee decimal.Decimal `json:"delivery_fee"`

	Status PaymentStatus `json:"status"`

	// PaidAt is set while Status is PaymentPaid.
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// OrderSummary aggregates settlement figures across an order's participants.
type OrderSummary struct {
	ParticipantCount int             `json:"participant_count"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	FeeShares        decimal.Decimal `json:"fee_shares"`
	Total            decimal.Decimal `json:"total"`
	TotalAmountPaid  decimal.Decimal `json:"total_amount_paid"`
	TotalChange      decimal.Decimal `json:"total_change"`
	AllPaid          bool            `json:"all_paid"`
}

// Balance is what one participant still owes the creator, or is owed back.
type Balance struct {
	ParticipantID string          `json:"participant_id"`
	UserID        string          `json:"user_id"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	ChangeDue     decimal.Decimal `json:"change_due"`
}
