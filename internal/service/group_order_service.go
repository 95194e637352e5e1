// Package service exposes the group order engine over connect RPC.
package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/grouporder/internal/auth"
	"github.com/mmynk/grouporder/internal/middleware"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/orders"
	"github.com/mmynk/grouporder/internal/storage"
)

var _ GroupOrderServiceHandler = (*GroupOrderService)(nil)

// GroupOrderService implements GroupOrderServiceHandler on top of the engine.
type GroupOrderService struct {
	engine *orders.Engine
}

// NewGroupOrderService creates a new GroupOrderService.
func NewGroupOrderService(engine *orders.Engine) *GroupOrderService {
	return &GroupOrderService{engine: engine}
}

// actor returns the authenticated caller, or an Unauthenticated error.
func actor(ctx context.Context) (orders.Actor, error) {
	id, ok := middleware.CurrentUser(ctx)
	if !ok {
		return orders.Actor{}, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return orders.Actor{
		UserID:  id.UserID,
		Name:    id.Name,
		Room:    id.Room,
		IsAdmin: id.IsAdmin,
	}, nil
}

// CreateOrder opens a new group order.
func (s *GroupOrderService) CreateOrder(ctx context.Context, req *connect.Request[CreateOrderRequest]) (*connect.Response[OrderResponse], error) {
	who, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateOrder request received",
		"user_id", who.UserID,
		"restaurant_id", req.Msg.RestaurantID,
		"delivery_time", req.Msg.DeliveryTime,
	)

	if err := validateRequest(req.Msg); err != nil {
		return nil, fail("CreateOrder", err, "user_id", who.UserID)
	}

	order, err := s.engine.CreateOrder(ctx, who, orders.CreateOrderInput{
		RestaurantID: req.Msg.RestaurantID,
		DeliveryTime: req.Msg.DeliveryTime,
		DeliveryFee:  req.Msg.DeliveryFee,
		CreatorRoom:  req.Msg.CreatorRoom,
		Message:      req.Msg.Message,
	})
	if err != nil {
		return nil, fail("CreateOrder", err, "user_id", who.UserID, "restaurant_id", req.Msg.RestaurantID)
	}

	return connect.NewResponse(&OrderResponse{Order: newOrderView(order)}), nil
}

// JoinOrder adds the caller to an open order or replaces their items.
func (s *GroupOrderService) JoinOrder(ctx context.Context, req *connect.Request[JoinOrderRequest]) (*connect.Response[JoinOrderResponse], error) {
	who, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("JoinOrder request received",
		"user_id", who.UserID,
		"order_id", req.Msg.OrderID,
		"items_count", len(req.Msg.Items),
	)

	if err := validateRequest(req.Msg); err != nil {
		return nil, fail("JoinOrder", err, "user_id", who.UserID)
	}

	order, p, err := s.engine.JoinOrder(ctx, who, orders.JoinOrderInput{
		OrderID:             req.Msg.OrderID,
		Items:               req.Msg.Items,
		SpecialInstructions: req.Msg.SpecialInstructions,
	})
	if err != nil {
		return nil, fail("JoinOrder", err, "user_id", who.UserID, "order_id", req.Msg.OrderID)
	}

	return connect.NewResponse(&JoinOrderResponse{
		Order:       newOrderView(order),
		Participant: *p,
	}), nil
}

// LeaveOrder removes a participant from an order.
func (s *GroupOrderService) LeaveOrder(ctx context.Context, req *connect.Request[LeaveOrderRequest]) (*connect.Response[OrderResponse], error) {
	who, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("LeaveOrder request received",
		"user_id", who.UserID,
		"order_id", req.Msg.OrderID,
		"participant_id", req.Msg.ParticipantID,
	)

	if err := validateRequest(req.Msg); err != nil {
		return nil, fail("LeaveOrder", err, "user_id", who.UserID)
	}

	order, err := s.engine.LeaveOrder(ctx, who, req.Msg.OrderID, req.Msg.ParticipantID)
	if err != nil {
		return nil, fail("LeaveOrder", err, "user_id", who.UserID, "order_id", req.Msg.OrderID)
	}

	return connect.NewResponse(&OrderResponse{Order: newOrderView(order)}), nil
}

// CloseOrder stops an order from accepting participants.
func (s *GroupOrderService) CloseOrder(ctx context.Context, req *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error) {
	return s.transition(ctx, "CloseOrder", req.Msg, s.engine.CloseOrder)
}

// DeliverOrder marks an order delivered.
func (s *GroupOrderService) DeliverOrder(ctx context.Context, req *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error) {
	return s.transition(ctx, "DeliverOrder", req.Msg, s.engine.DeliverOrder)
}

func (s *GroupOrderService) transition(
	ctx context.Context,
	method string,
	msg *OrderRequest,
	apply func(context.Context, orders.Actor, string) (*models.GroupOrder, error),
) (*connect.Response[OrderResponse], error) {
	who, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info(method+" request received", "user_id", who.UserID, "order_id", msg.OrderID)

	if err := validateRequest(msg); err != nil {
		return nil, fail(method, err, "user_id", who.UserID)
	}

	order, err := apply(ctx, who, msg.OrderID)
	if err != nil {
		return nil, fail(method, err, "user_id", who.UserID, "order_id", msg.OrderID)
	}

	return connect.NewResponse(&OrderResponse{Order: newOrderView(order)}), nil
}

// RecordPayment sets the amount a participant has paid the creator.
func (s *GroupOrderService) RecordPayment(ctx context.Context, req *connect.Request[RecordPaymentRequest]) (*connect.Response[OrderResponse], error) {
	who, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RecordPayment request received",
		"user_id", who.UserID,
		"order_id", req.Msg.OrderID,
		"participant_id", req.Msg.ParticipantID,
		"amount_paid", req.Msg.AmountPaid.String(),
	)

	if err := validateRequest(req.Msg); err != nil {
		return nil, fail("RecordPayment", err, "user_id", who.UserID)
	}

	order, err := s.engine.RecordPayment(ctx, who, req.Msg.OrderID, req.Msg.ParticipantID, req.Msg.AmountPaid)
	if err != nil {
		return nil, fail("RecordPayment", err, "user_id", who.UserID, "order_id", req.Msg.OrderID)
	}

	return connect.NewResponse(&OrderResponse{Order: newOrderView(order)}), nil
}

// GetOrder returns an order with its summary and balances.
func (s *GroupOrderService) GetOrder(ctx context.Context, req *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error) {
	who, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("GetOrder request received", "user_id", who.UserID, "order_id", req.Msg.OrderID)

	if err := validateRequest(req.Msg); err != nil {
		return nil, fail("GetOrder", err, "user_id", who.UserID)
	}

	view, err := s.engine.GetOrder(ctx, who, req.Msg.OrderID)
	if err != nil {
		return nil, fail("GetOrder", err, "user_id", who.UserID, "order_id", req.Msg.OrderID)
	}

	return connect.NewResponse(&OrderResponse{Order: OrderView{
		Order:    view.Order,
		Summary:  view.Summary,
		Balances: view.Balances,
	}}), nil
}

// ListOrders returns a page of orders, newest first.
func (s *GroupOrderService) ListOrders(ctx context.Context, req *connect.Request[ListOrdersRequest]) (*connect.Response[ListOrdersResponse], error) {
	who, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("ListOrders request received",
		"user_id", who.UserID,
		"status", req.Msg.Status,
		"mine", req.Msg.Mine,
		"limit", req.Msg.Limit,
		"offset", req.Msg.Offset,
	)

	if err := validateRequest(req.Msg); err != nil {
		return nil, fail("ListOrders", err, "user_id", who.UserID)
	}

	list, total, err := s.engine.ListOrders(ctx, who, orders.ListFilter{
		Status: models.Status(req.Msg.Status),
		Mine:   req.Msg.Mine,
		Limit:  req.Msg.Limit,
		Offset: req.Msg.Offset,
	})
	if err != nil {
		return nil, fail("ListOrders", err, "user_id", who.UserID)
	}

	page := storage.OrderFilter{Limit: req.Msg.Limit, Offset: req.Msg.Offset}.Normalize()
	if list == nil {
		list = []*models.GroupOrder{}
	}
	return connect.NewResponse(&ListOrdersResponse{
		Orders: list,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}), nil
}

// GetUserStatistics returns a user's statistics and payment history.
func (s *GroupOrderService) GetUserStatistics(ctx context.Context, req *connect.Request[GetUserStatisticsRequest]) (*connect.Response[GetUserStatisticsResponse], error) {
	who, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("GetUserStatistics request received", "user_id", who.UserID, "target_user_id", req.Msg.UserID)

	if err := validateRequest(req.Msg); err != nil {
		return nil, fail("GetUserStatistics", err, "user_id", who.UserID)
	}

	stats, err := s.engine.GetUserStatistics(ctx, who, req.Msg.UserID)
	if err != nil {
		return nil, fail("GetUserStatistics", err, "user_id", who.UserID, "target_user_id", req.Msg.UserID)
	}

	return connect.NewResponse(&GetUserStatisticsResponse{Statistics: stats}), nil
}

// ListRestaurants returns the restaurant catalog.
func (s *GroupOrderService) ListRestaurants(ctx context.Context, req *connect.Request[ListRestaurantsRequest]) (*connect.Response[ListRestaurantsResponse], error) {
	who, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("ListRestaurants request received", "user_id", who.UserID)

	restaurants, err := s.engine.ListRestaurants(ctx)
	if err != nil {
		return nil, fail("ListRestaurants", err, "user_id", who.UserID)
	}
	if restaurants == nil {
		restaurants = []*models.Restaurant{}
	}

	return connect.NewResponse(&ListRestaurantsResponse{Restaurants: restaurants}), nil
}
