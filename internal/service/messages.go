package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/orders"
)

// Money fields are decimal strings on the wire ("12.50"); plain JSON numbers
// are accepted on input.

type CreateOrderRequest struct {
	RestaurantID string    `json:"restaurant_id" validate:"required,max=64"`
	DeliveryTime time.Time `json:"delivery_time" validate:"required"`

	// DeliveryFee overrides the restaurant's default when present.
	DeliveryFee *decimal.Decimal `json:"delivery_fee,omitempty"`

	CreatorRoom string `json:"creator_room,omitempty" validate:"max=64"`
	Message     string `json:"message,omitempty" validate:"max=500"`
}

type JoinOrderRequest struct {
	OrderID             string            `json:"order_id" validate:"required"`
	Items               []models.LineItem `json:"items"`
	SpecialInstructions string            `json:"special_instructions,omitempty" validate:"max=500"`
}

type LeaveOrderRequest struct {
	OrderID       string `json:"order_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
}

// OrderRequest addresses a single order (close, deliver, get).
type OrderRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

type RecordPaymentRequest struct {
	OrderID       string          `json:"order_id" validate:"required"`
	ParticipantID string          `json:"participant_id" validate:"required"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
}

type ListOrdersRequest struct {
	Status string `json:"status,omitempty" validate:"omitempty,oneof=open closed delivered"`
	Mine   bool   `json:"mine,omitempty"`
	Limit  int    `json:"limit,omitempty" validate:"min=0,max=100"`
	Offset int    `json:"offset,omitempty" validate:"min=0"`
}

type GetUserStatisticsRequest struct {
	// UserID defaults to the caller.
	UserID string `json:"user_id,omitempty" validate:"max=64"`
}

type ListRestaurantsRequest struct{}

// OrderView is an order with its settlement summary and balances.
type OrderView struct {
	Order    *models.GroupOrder  `json:"order"`
	Summary  models.OrderSummary `json:"summary"`
	Balances []models.Balance    `json:"balances"`
}

type OrderResponse struct {
	Order OrderView `json:"order"`
}

type JoinOrderResponse struct {
	Order       OrderView          `json:"order"`
	Participant models.Participant `json:"participant"`
}

type ListOrdersResponse struct {
	Orders []*models.GroupOrder `json:"orders"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

type GetUserStatisticsResponse struct {
	Statistics *models.UserStatistics `json:"statistics"`
}

type ListRestaurantsResponse struct {
	Restaurants []*models.Restaurant `json:"restaurants"`
}

func newOrderView(order *models.GroupOrder) OrderView {
	v := orders.NewOrderView(order)
	return OrderView{
		Order:    v.Order,
		Summary:  v.Summary,
		Balances: v.Balances,
	}
}
