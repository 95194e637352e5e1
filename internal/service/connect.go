package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// GroupOrderServiceName is the fully-qualified name of the service.
const GroupOrderServiceName = "grouporder.v1.GroupOrderService"

// Procedure paths, one per RPC.
const (
	GroupOrderServiceCreateOrderProcedure       = "/grouporder.v1.GroupOrderService/CreateOrder"
	GroupOrderServiceJoinOrderProcedure         = "/grouporder.v1.GroupOrderService/JoinOrder"
	GroupOrderServiceLeaveOrderProcedure        = "/grouporder.v1.GroupOrderService/LeaveOrder"
	GroupOrderServiceCloseOrderProcedure        = "/grouporder.v1.GroupOrderService/CloseOrder"
	GroupOrderServiceDeliverOrderProcedure      = "/grouporder.v1.GroupOrderService/DeliverOrder"
	GroupOrderServiceRecordPaymentProcedure     = "/grouporder.v1.GroupOrderService/RecordPayment"
	GroupOrderServiceGetOrderProcedure          = "/grouporder.v1.GroupOrderService/GetOrder"
	GroupOrderServiceListOrdersProcedure        = "/grouporder.v1.GroupOrderService/ListOrders"
	GroupOrderServiceGetUserStatisticsProcedure = "/grouporder.v1.GroupOrderService/GetUserStatistics"
	GroupOrderServiceListRestaurantsProcedure   = "/grouporder.v1.GroupOrderService/ListRestaurants"
)

// JSONCodec marshals plain Go structs with encoding/json. It replaces
// connect's built-in "json" codec, which only accepts protobuf messages.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// GroupOrderServiceHandler is implemented by the server.
type GroupOrderServiceHandler interface {
	CreateOrder(context.Context, *connect.Request[CreateOrderRequest]) (*connect.Response[OrderResponse], error)
	JoinOrder(context.Context, *connect.Request[JoinOrderRequest]) (*connect.Response[JoinOrderResponse], error)
	LeaveOrder(context.Context, *connect.Request[LeaveOrderRequest]) (*connect.Response[OrderResponse], error)
	CloseOrder(context.Context, *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error)
	DeliverOrder(context.Context, *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error)
	RecordPayment(context.Context, *connect.Request[RecordPaymentRequest]) (*connect.Response[OrderResponse], error)
	GetOrder(context.Context, *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error)
	ListOrders(context.Context, *connect.Request[ListOrdersRequest]) (*connect.Response[ListOrdersResponse], error)
	GetUserStatistics(context.Context, *connect.Request[GetUserStatisticsRequest]) (*connect.Response[GetUserStatisticsResponse], error)
	ListRestaurants(context.Context, *connect.Request[ListRestaurantsRequest]) (*connect.Response[ListRestaurantsResponse], error)
}

// NewGroupOrderServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewGroupOrderServiceHandler(svc GroupOrderServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	readOpts := append([]connect.HandlerOption{connect.WithIdempotency(connect.IdempotencyNoSideEffects)}, opts...)

	handlers := map[string]http.Handler{
		GroupOrderServiceCreateOrderProcedure:       connect.NewUnaryHandler(GroupOrderServiceCreateOrderProcedure, svc.CreateOrder, opts...),
		GroupOrderServiceJoinOrderProcedure:         connect.NewUnaryHandler(GroupOrderServiceJoinOrderProcedure, svc.JoinOrder, opts...),
		GroupOrderServiceLeaveOrderProcedure:        connect.NewUnaryHandler(GroupOrderServiceLeaveOrderProcedure, svc.LeaveOrder, opts...),
		GroupOrderServiceCloseOrderProcedure:        connect.NewUnaryHandler(GroupOrderServiceCloseOrderProcedure, svc.CloseOrder, opts...),
		GroupOrderServiceDeliverOrderProcedure:      connect.NewUnaryHandler(GroupOrderServiceDeliverOrderProcedure, svc.DeliverOrder, opts...),
		GroupOrderServiceRecordPaymentProcedure:     connect.NewUnaryHandler(GroupOrderServiceRecordPaymentProcedure, svc.RecordPayment, opts...),
		GroupOrderServiceGetOrderProcedure:          connect.NewUnaryHandler(GroupOrderServiceGetOrderProcedure, svc.GetOrder, readOpts...),
		GroupOrderServiceListOrdersProcedure:        connect.NewUnaryHandler(GroupOrderServiceListOrdersProcedure, svc.ListOrders, readOpts...),
		GroupOrderServiceGetUserStatisticsProcedure: connect.NewUnaryHandler(GroupOrderServiceGetUserStatisticsProcedure, svc.GetUserStatistics, readOpts...),
		GroupOrderServiceListRestaurantsProcedure:   connect.NewUnaryHandler(GroupOrderServiceListRestaurantsProcedure, svc.ListRestaurants, readOpts...),
	}

	return "/" + GroupOrderServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// GroupOrderServiceClient is a typed client for the service.
type GroupOrderServiceClient interface {
	CreateOrder(context.Context, *connect.Request[CreateOrderRequest]) (*connect.Response[OrderResponse], error)
	JoinOrder(context.Context, *connect.Request[JoinOrderRequest]) (*connect.Response[JoinOrderResponse], error)
	LeaveOrder(context.Context, *connect.Request[LeaveOrderRequest]) (*connect.Response[OrderResponse], error)
	CloseOrder(context.Context, *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error)
	DeliverOrder(context.Context, *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error)
	RecordPayment(context.Context, *connect.Request[RecordPaymentRequest]) (*connect.Response[OrderResponse], error)
	GetOrder(context.Context, *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error)
	ListOrders(context.Context, *connect.Request[ListOrdersRequest]) (*connect.Response[ListOrdersResponse], error)
	GetUserStatistics(context.Context, *connect.Request[GetUserStatisticsRequest]) (*connect.Response[GetUserStatisticsResponse], error)
	ListRestaurants(context.Context, *connect.Request[ListRestaurantsRequest]) (*connect.Response[ListRestaurantsResponse], error)
}

type groupOrderServiceClient struct {
	createOrder       *connect.Client[CreateOrderRequest, OrderResponse]
	joinOrder         *connect.Client[JoinOrderRequest, JoinOrderResponse]
	leaveOrder        *connect.Client[LeaveOrderRequest, OrderResponse]
	closeOrder        *connect.Client[OrderRequest, OrderResponse]
	deliverOrder      *connect.Client[OrderRequest, OrderResponse]
	recordPayment     *connect.Client[RecordPaymentRequest, OrderResponse]
	getOrder          *connect.Client[OrderRequest, OrderResponse]
	listOrders        *connect.Client[ListOrdersRequest, ListOrdersResponse]
	getUserStatistics *connect.Client[GetUserStatisticsRequest, GetUserStatisticsResponse]
	listRestaurants   *connect.Client[ListRestaurantsRequest, ListRestaurantsResponse]
}

// NewGroupOrderServiceClient constructs a client for the service at baseURL
// (for example, http://localhost:8080).
func NewGroupOrderServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) GroupOrderServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &groupOrderServiceClient{
		createOrder:       connect.NewClient[CreateOrderRequest, OrderResponse](httpClient, baseURL+GroupOrderServiceCreateOrderProcedure, opts...),
		joinOrder:         connect.NewClient[JoinOrderRequest, JoinOrderResponse](httpClient, baseURL+GroupOrderServiceJoinOrderProcedure, opts...),
		leaveOrder:        connect.NewClient[LeaveOrderRequest, OrderResponse](httpClient, baseURL+GroupOrderServiceLeaveOrderProcedure, opts...),
		closeOrder:        connect.NewClient[OrderRequest, OrderResponse](httpClient, baseURL+GroupOrderServiceCloseOrderProcedure, opts...),
		deliverOrder:      connect.NewClient[OrderRequest, OrderResponse](httpClient, baseURL+GroupOrderServiceDeliverOrderProcedure, opts...),
		recordPayment:     connect.NewClient[RecordPaymentRequest, OrderResponse](httpClient, baseURL+GroupOrderServiceRecordPaymentProcedure, opts...),
		getOrder:          connect.NewClient[OrderRequest, OrderResponse](httpClient, baseURL+GroupOrderServiceGetOrderProcedure, opts...),
		listOrders:        connect.NewClient[ListOrdersRequest, ListOrdersResponse](httpClient, baseURL+GroupOrderServiceListOrdersProcedure, opts...),
		getUserStatistics: connect.NewClient[GetUserStatisticsRequest, GetUserStatisticsResponse](httpClient, baseURL+GroupOrderServiceGetUserStatisticsProcedure, opts...),
		listRestaurants:   connect.NewClient[ListRestaurantsRequest, ListRestaurantsResponse](httpClient, baseURL+GroupOrderServiceListRestaurantsProcedure, opts...),
	}
}

func (c *groupOrderServiceClient) CreateOrder(ctx context.Context, req *connect.Request[CreateOrderRequest]) (*connect.Response[OrderResponse], error) {
	return c.createOrder.CallUnary(ctx, req)
}

func (c *groupOrderServiceClient) JoinOrder(ctx context.Context, req *connect.Request[JoinOrderRequest]) (*connect.Response[JoinOrderResponse], error) {
	return c.joinOrder.CallUnary(ctx, req)
}

func (c *groupOrderServiceClient) LeaveOrder(ctx context.Context, req *connect.Request[LeaveOrderRequest]) (*connect.Response[OrderResponse], error) {
	return c.leaveOrder.CallUnary(ctx, req)
}

func (c *groupOrderServiceClient) CloseOrder(ctx context.Context, req *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error) {
	return c.closeOrder.CallUnary(ctx, req)
}

func (c *groupOrderServiceClient) DeliverOrder(ctx context.Context, req *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error) {
	return c.deliverOrder.CallUnary(ctx, req)
}

func (c *groupOrderServiceClient) RecordPayment(ctx context.Context, req *connect.Request[RecordPaymentRequest]) (*connect.Response[OrderResponse], error) {
	return c.recordPayment.CallUnary(ctx, req)
}

func (c *groupOrderServiceClient) GetOrder(ctx context.Context, req *connect.Request[OrderRequest]) (*connect.Response[OrderResponse], error) {
	return c.getOrder.CallUnary(ctx, req)
}

func (c *groupOrderServiceClient) ListOrders(ctx context.Context, req *connect.Request[ListOrdersRequest]) (*connect.Response[ListOrdersResponse], error) {
	return c.listOrders.CallUnary(ctx, req)
}

func (c *groupOrderServiceClient) GetUserStatistics(ctx context.Context, req *connect.Request[GetUserStatisticsRequest]) (*connect.Response[GetUserStatisticsResponse], error) {
	return c.getUserStatistics.CallUnary(ctx, req)
}

func (c *groupOrderServiceClient) ListRestaurants(ctx context.Context, req *connect.Request[ListRestaurantsRequest]) (*connect.Response[ListRestaurantsResponse], error) {
	return c.listRestaurants.CallUnary(ctx, req)
}
