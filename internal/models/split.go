package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant is one user's entry in a GroupOrder.
// There is at most one entry per user per order.
type Participant struct {
	// ID is the unique identifier for the entry (UUID format).
	// It survives a re-join by the same user.
	ID string `json:"id"`

	// UserID is the participating user.
	UserID string `json:"user_id"`

	// UserName is the display name at join time.
	UserName string `json:"user_name"`

	// Items are the line items this participant ordered.
	Items []LineItem `json:"items"`

	// SpecialInstructions is free text for the restaurant.
	SpecialInstructions string `json:"special_instructions"`

	// Subtotal is Σ(unit price × quantity) over Items. Derived.
	Subtotal decimal.Decimal `json:"subtotal"`

	// FeeShare is this participant's portion of the delivery fee. Derived.
	FeeShare decimal.Decimal `json:"fee_share"`

	// TotalAmount is Subtotal + FeeShare. Derived.
	TotalAmount decimal.Decimal `json:"total_amount"`

	// AmountPaid is the amount the creator recorded as received.
	AmountPaid decimal.Decimal `json:"amount_paid"`

	// Paid is AmountPaid >= TotalAmount. Derived.
	Paid bool `json:"paid"`

	// Change is max(0, AmountPaid − TotalAmount). Derived.
	Change decimal.Decimal `json:"change"`

	// JoinedAt is when the user first joined the order.
	JoinedAt time.Time `json:"joined_at"`
}

// LineItem is a single item a participant ordered.
type LineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Note      string          `json:"note,omitempty"`
}

// Amount returns UnitPrice × Quantity.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}
