package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GroupOrder is a shared delivery order that several users attach their own
// items to. The delivery fee is fixed at creation and split among participants.
type GroupOrder struct {
	// ID is the unique identifier for the order (UUID format).
	ID string `json:"id"`

	// RestaurantID references the catalog restaurant the order is placed with.
	RestaurantID string `json:"restaurant_id"`

	// RestaurantName is a snapshot of the restaurant name at creation time.
	RestaurantName string `json:"restaurant_name"`

	// CreatedBy is the user ID of the creator. Only the creator may close,
	// deliver or record payments.
	CreatedBy string `json:"created_by"`

	// CreatorRoom is the creator's room or location tag used for hand-off.
	CreatorRoom string `json:"creator_room"`

	// DeliveryTime is the scheduled delivery time.
	DeliveryTime time.Time `json:"delivery_time"`

	// DeliveryFee is the total fee split among participants. Immutable.
	DeliveryFee decimal.Decimal `json:"delivery_fee"`

	// Message is free text from the creator.
	Message string `json:"message"`

	// Status is the lifecycle state. Change it only through Transition.
	Status Status `json:"status"`

	// Participants in join order. Position matters for fee remainder tie-breaks.
	Participants []Participant `json:"participants"`

	// DeliveredAt is set when the order is marked delivered.
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	// CreatorChange is Σ amount paid − (Σ subtotal + delivery fee).
	// Positive means the creator collected a surplus. Derived.
	CreatorChange decimal.Decimal `json:"creator_change"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindParticipant returns the index of the participant with the given ID, or -1.
func (o *GroupOrder) FindParticipant(participantID string) int {
	for i := range o.Participants {
		if o.Participants[i].ID == participantID {
			return i
		}
	}
	return -1
}

// FindParticipantByUser returns the index of the user's entry, or -1.
func (o *GroupOrder) FindParticipantByUser(userID string) int {
	for i := range o.Participants {
		if o.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

// IsCreator reports whether userID created the order.
func (o *GroupOrder) IsCreator(userID string) bool {
	return userID != "" && o.CreatedBy == userID
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (o *GroupOrder) Clone() *GroupOrder {
	if o == nil {
		return nil
	}
	c := *o
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	c.Participants = make([]Participant, len(o.Participants))
	for i, p := range o.Participants {
		c.Participants[i] = p
		c.Participants[i].Items = append([]LineItem(nil), p.Items...)
	}
	return &c
}
