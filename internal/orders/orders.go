package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/grouporder/internal/apperr"
	"github.com/mmynk/grouporder/internal/calculator"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// CreateOrderInput is the caller-supplied part of a new order.
type CreateOrderInput struct {
	RestaurantID string
	DeliveryTime time.Time

	// DeliveryFee overrides the restaurant's default fee when set.
	DeliveryFee *decimal.Decimal

	// CreatorRoom defaults to the actor's room.
	CreatorRoom string
	Message     string
}

// JoinOrderInput is one user's selection for an order.
type JoinOrderInput struct {
	OrderID             string
	Items               []models.LineItem
	SpecialInstructions string
}

// OrderView is an order together with its settlement figures.
type OrderView struct {
	Order    *models.GroupOrder
	Summary  models.OrderSummary
	Balances []models.Balance
}

// ListFilter narrows ListOrders. Mine restricts to orders the actor created.
type ListFilter struct {
	Status models.Status
	Mine   bool
	Limit  int
	Offset int
}

// CreateOrder opens a new group order at a catalog restaurant.
func (e *Engine) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (_ *models.GroupOrder, err error) {
	defer e.observe("create", &err)

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.RestaurantID) == "" {
		return nil, apperr.Validation("restaurant_id is required").WithDetails(map[string]string{"restaurant_id": "required"})
	}

	now := e.clock()
	earliest := now.Add(e.minLead)
	if in.DeliveryTime.Before(earliest) {
		return nil, apperr.Validation(fmt.Sprintf("delivery_time must be at least %s in the future", e.minLead)).
			WithDetails(map[string]string{"delivery_time": "too soon"})
	}

	restaurant, err := e.store.GetRestaurant(ctx, in.RestaurantID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("restaurant %s not found", in.RestaurantID)
	}
	if err != nil {
		return nil, apperr.Unavailable(err, "failed to load restaurant")
	}

	fee := restaurant.DeliveryFee
	if in.DeliveryFee != nil {
		fee = *in.DeliveryFee
	}
	if err := validateMoney("delivery_fee", fee); err != nil {
		return nil, err
	}

	room := in.CreatorRoom
	if room == "" {
		room = actor.Room
	}

	order := &models.GroupOrder{
		ID:             uuid.New().String(),
		RestaurantID:   restaurant.ID,
		RestaurantName: restaurant.Name,
		CreatedBy:      actor.UserID,
		CreatorRoom:    room,
		DeliveryTime:   in.DeliveryTime.UTC(),
		DeliveryFee:    fee,
		Message:        in.Message,
		Status:         models.StatusOpen,
		Participants:   []models.Participant{},
		CreatorChange:  decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = e.store.CreateOrder(ctx, order)
	if errors.Is(err, storage.ErrConflict) {
		return nil, apperr.Conflict("order %s already exists", order.ID)
	}
	if err != nil {
		return nil, apperr.Unavailable(err, "failed to create order")
	}

	e.logger.Info("Order created",
		"order_id", order.ID,
		"user_id", actor.UserID,
		"restaurant_id", order.RestaurantID,
		"delivery_fee", order.DeliveryFee.StringFixed(2),
	)
	return order, nil
}

// JoinOrder adds the actor to an open order, or replaces their existing entry
// in place. It returns the saved order and the actor's settled participant.
func (e *Engine) JoinOrder(ctx context.Context, actor Actor, in JoinOrderInput) (_ *models.GroupOrder, _ *models.Participant, err error) {
	defer e.observe("join", &err)

	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}

	order, err := e.mutateOrder(ctx, in.OrderID, func(order *models.GroupOrder) error {
		if order.Status != models.StatusOpen {
			return apperr.State("order %s is %s; only open orders accept participants", order.ID, order.Status)
		}
		if err := validateItems(in.Items); err != nil {
			return err
		}

		items := append([]models.LineItem(nil), in.Items...)
		if i := order.FindParticipantByUser(actor.UserID); i >= 0 {
			p := &order.Participants[i]
			p.UserName = actor.Name
			p.Items = items
			p.SpecialInstructions = in.SpecialInstructions
			p.AmountPaid = decimal.Zero
			return nil
		}
		order.Participants = append(order.Participants, models.Participant{
			ID:                  uuid.New().String(),
			UserID:              actor.UserID,
			UserName:            actor.Name,
			Items:               items,
			SpecialInstructions: in.SpecialInstructions,
			AmountPaid:          decimal.Zero,
			JoinedAt:            e.clock(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	p := order.Participants[order.FindParticipantByUser(actor.UserID)]
	e.metrics.ObserveParticipants(len(order.Participants))
	e.logger.Info("Participant joined",
		"order_id", order.ID,
		"user_id", actor.UserID,
		"participant_id", p.ID,
		"participants", len(order.Participants),
		"total_amount", p.TotalAmount.StringFixed(2),
	)

	e.afterCommit(ctx, "order_placed", order.ID, actor.UserID, func(ctx context.Context) error {
		return e.mutateStats(ctx, actor.UserID, true, func(stats *models.UserStatistics) bool {
			calculator.RecordOrderPlaced(stats, calculator.OrderPlaced{
				RestaurantID:   order.RestaurantID,
				RestaurantName: order.RestaurantName,
				Items:          p.Items,
				TotalAmount:    p.TotalAmount,
			}, e.topN)
			calculator.UpsertPaymentRecord(stats, models.PaymentRecord{
				OrderID:        order.ID,
				RestaurantName: order.RestaurantName,
				Amount:         p.Subtotal,
				DeliveryFee:    p.FeeShare,
				Status:         models.PaymentUnpaid,
			})
			return true
		})
	})

	return order, &p, nil
}

// LeaveOrder removes a participant in any status and re-splits the fee over
// the rest. Only the participant's own user or the order's creator may do this.
func (e *Engine) LeaveOrder(ctx context.Context, actor Actor, orderID, participantID string) (_ *models.GroupOrder, err error) {
	defer e.observe("leave", &err)

	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var leaverID string
	order, err := e.mutateOrder(ctx, orderID, func(order *models.GroupOrder) error {
		i := order.FindParticipant(participantID)
		if i < 0 {
			return apperr.NotFound("participant %s not found in order %s", participantID, orderID)
		}
		p := order.Participants[i]
		if p.UserID != actor.UserID && !order.IsCreator(actor.UserID) {
			return apperr.Authorization("only the participant or the order creator can remove a participant")
		}
		leaverID = p.UserID
		order.Participants = append(order.Participants[:i], order.Participants[i+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Participant left",
		"order_id", order.ID,
		"participant_id", participantID,
		"user_id", leaverID,
		"removed_by", actor.UserID,
		"participants", len(order.Participants),
	)

	e.afterCommit(ctx, "payment_removed", order.ID, leaverID, func(ctx context.Context) error {
		return e.mutateStats(ctx, leaverID, false, func(stats *models.UserStatistics) bool {
			return calculator.RemovePaymentRecord(stats, order.ID)
		})
	})

	return order, nil
}

// CloseOrder stops an open order from accepting participants. Creator only.
func (e *Engine) CloseOrder(ctx context.Context, actor Actor, orderID string) (_ *models.GroupOrder, err error) {
	defer e.observe("close", &err)
	return e.transition(ctx, actor, orderID, models.StatusClosed)
}

// DeliverOrder marks an order delivered. Creator only.
func (e *Engine) DeliverOrder(ctx context.Context, actor Actor, orderID string) (_ *models.GroupOrder, err error) {
	defer e.observe("deliver", &err)
	return e.transition(ctx, actor, orderID, models.StatusDelivered)
}

func (e *Engine) transition(ctx context.Context, actor Actor, orderID string, next models.Status) (*models.GroupOrder, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var from models.Status
	order, err := e.mutateOrder(ctx, orderID, func(order *models.GroupOrder) error {
		if !order.IsCreator(actor.UserID) {
			return apperr.Authorization("only the order creator can change its status")
		}
		from = order.Status
		return order.Transition(next, e.clock())
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Order status changed",
		"order_id", order.ID,
		"user_id", actor.UserID,
		"from", from,
		"to", order.Status,
	)
	return order, nil
}

// GetOrder returns an order with its summary and per-participant balances.
func (e *Engine) GetOrder(ctx context.Context, actor Actor, orderID string) (_ *OrderView, err error) {
	defer e.observe("get", &err)

	if err := requireActor(actor); err != nil {
		return nil, err
	}

	order, _, err := e.store.LoadOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("order %s not found", orderID)
	}
	if err != nil {
		return nil, apperr.Unavailable(err, "failed to load order")
	}
	return NewOrderView(order), nil
}

// NewOrderView derives the summary and balances for order.
func NewOrderView(order *models.GroupOrder) *OrderView {
	return &OrderView{
		Order:    order,
		Summary:  calculator.Summarize(order),
		Balances: calculator.Balances(order),
	}
}

// ListOrders returns one page of orders, newest first, and the total match count.
func (e *Engine) ListOrders(ctx context.Context, actor Actor, filter ListFilter) (_ []*models.GroupOrder, _ int, err error) {
	defer e.observe("list", &err)

	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, apperr.Validation(fmt.Sprintf("unknown status %q", filter.Status)).
			WithDetails(map[string]string{"status": "one of open, closed, delivered"})
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, apperr.Validation("limit and offset cannot be negative")
	}

	storeFilter := storage.OrderFilter{
		Status: filter.Status,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if filter.Mine {
		storeFilter.CreatedBy = actor.UserID
	}

	orders, total, err := e.store.ListOrders(ctx, storeFilter)
	if err != nil {
		return nil, 0, apperr.Unavailable(err, "failed to list orders")
	}
	return orders, total, nil
}

// ListRestaurants returns the restaurant catalog.
func (e *Engine) ListRestaurants(ctx context.Context) (_ []*models.Restaurant, err error) {
	defer e.observe("list_restaurants", &err)

	restaurants, err := e.store.ListRestaurants(ctx)
	if err != nil {
		return nil, apperr.Unavailable(err, "failed to list restaurants")
	}
	return restaurants, nil
}

func validateItems(items []models.LineItem) error {
	if len(items) == 0 {
		return apperr.Validation("at least one item is required").WithDetails(map[string]string{"items": "required"})
	}
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case strings.TrimSpace(item.Name) == "":
			return apperr.Validation(field + ".name is required").WithDetails(map[string]string{field + ".name": "required"})
		case item.Quantity <= 0:
			return apperr.Validation(field + ".quantity must be greater than zero").WithDetails(map[string]string{field + ".quantity": "must be > 0"})
		}
		if err := validateMoney(field+".unit_price", item.UnitPrice); err != nil {
			return err
		}
		if item.Amount().GreaterThan(models.MaxAmount) {
			return apperr.Validation(field + " amount exceeds the maximum of " + models.MaxAmount.StringFixed(2)).
				WithDetails(map[string]string{field: "too large"})
		}
	}
	if calculator.Subtotal(items).GreaterThan(models.MaxAmount) {
		return apperr.Validation("items subtotal exceeds the maximum of " + models.MaxAmount.StringFixed(2)).
			WithDetails(map[string]string{"items": "too large"})
	}
	return nil
}

func validateMoney(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.Validation(field + " cannot be negative").WithDetails(map[string]string{field: "must be >= 0"})
	}
	if !models.IsMinorUnits(amount) {
		return apperr.Validation(field + " has more than two decimal places").WithDetails(map[string]string{field: "too precise"})
	}
	if amount.GreaterThan(models.MaxAmount) {
		return apperr.Validation(field + " exceeds the maximum of " + models.MaxAmount.StringFixed(2)).WithDetails(map[string]string{field: "too large"})
	}
	return nil
}
