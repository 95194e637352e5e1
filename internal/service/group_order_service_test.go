package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/mmynk/grouporder/internal/apperr"
	"github.com/mmynk/grouporder/internal/auth"
	"github.com/mmynk/grouporder/internal/metrics"
	"github.com/mmynk/grouporder/internal/middleware"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/orders"
	"github.com/mmynk/grouporder/internal/storage/sqlite"
)

type testServer struct {
	url        string
	jwtManager *auth.JWTManager
}

// setupTestServer runs the service behind the same interceptor chain as the
// server, backed by a temporary SQLite database with one restaurant.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	err = store.SaveRestaurant(context.Background(), &models.Restaurant{
		ID:          "luigis",
		Name:        "Luigi's",
		Cuisine:     "italian",
		DeliveryFee: decimal.RequireFromString("5.00"),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed restaurant: %v", err)
	}

	m := metrics.New(prometheus.NewRegistry())
	engine := orders.New(store, orders.Options{Metrics: m})
	jwtManager := auth.NewJWTManager("test-secret", "grouporder", time.Hour)

	path, handler := NewGroupOrderServiceHandler(
		NewGroupOrderService(engine),
		connect.WithInterceptors(
			middleware.MetricsInterceptor(m),
			middleware.RequireAuth(jwtManager),
			middleware.LoggingInterceptor(nil),
		),
	)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{url: server.URL, jwtManager: jwtManager}
}

// withToken attaches a bearer token to every outgoing call.
func withToken(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token != "" {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

func (s *testServer) client(t *testing.T, id auth.Identity) GroupOrderServiceClient {
	t.Helper()
	token := ""
	if id.UserID != "" {
		var err error
		token, err = s.jwtManager.Generate(id)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
	}
	return NewGroupOrderServiceClient(http.DefaultClient, s.url, connect.WithInterceptors(withToken(token)))
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func expectCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect.Error, got %T", err)
	}
	if connectErr.Code() != want {
		t.Errorf("expected %v, got %v (%s)", want, connectErr.Code(), connectErr.Message())
	}
}

func createOrder(t *testing.T, client GroupOrderServiceClient) *models.GroupOrder {
	t.Helper()
	resp, err := client.CreateOrder(context.Background(), connect.NewRequest(&CreateOrderRequest{
		RestaurantID: "luigis",
		DeliveryTime: time.Now().Add(2 * time.Hour),
		Message:      "Friday lunch",
	}))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	return resp.Msg.Order.Order
}

func TestGroupOrderFlow(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.client(t, auth.Identity{UserID: "alice", Name: "Alice", Room: "4B"})
	bob := srv.client(t, auth.Identity{UserID: "bob", Name: "Bob", Room: "2A"})
	carol := srv.client(t, auth.Identity{UserID: "carol", Name: "Carol"})

	order := createOrder(t, alice)
	if order.ID == "" {
		t.Fatal("expected non-empty order ID")
	}
	if order.CreatorRoom != "4B" {
		t.Errorf("creator room: expected '4B', got '%s'", order.CreatorRoom)
	}
	if !order.DeliveryFee.Equal(money("5.00")) {
		t.Errorf("delivery fee: expected 5.00, got %s", order.DeliveryFee)
	}

	joins := []struct {
		client GroupOrderServiceClient
		item   models.LineItem
	}{
		{alice, models.LineItem{Name: "Pizza", UnitPrice: money("10.00"), Quantity: 1}},
		{bob, models.LineItem{Name: "Pasta", UnitPrice: money("6.00"), Quantity: 1}},
		{carol, models.LineItem{Name: "Salad", UnitPrice: money("4.50"), Quantity: 1}},
	}
	var participants []models.Participant
	for _, j := range joins {
		resp, err := j.client.JoinOrder(ctx, connect.NewRequest(&JoinOrderRequest{
			OrderID: order.ID,
			Items:   []models.LineItem{j.item},
		}))
		if err != nil {
			t.Fatalf("JoinOrder failed: %v", err)
		}
		participants = append(participants, resp.Msg.Participant)
	}

	got, err := bob.GetOrder(ctx, connect.NewRequest(&OrderRequest{OrderID: order.ID}))
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	wantShares := []string{"1.67", "1.67", "1.66"}
	for i, p := range got.Msg.Order.Order.Participants {
		if !p.FeeShare.Equal(money(wantShares[i])) {
			t.Errorf("participant %d fee share: expected %s, got %s", i, wantShares[i], p.FeeShare)
		}
	}
	if !got.Msg.Order.Summary.Total.Equal(money("25.50")) {
		t.Errorf("summary total: expected 25.50, got %s", got.Msg.Order.Summary.Total)
	}
	if len(got.Msg.Order.Balances) != 3 {
		t.Errorf("expected 3 balances, got %d", len(got.Msg.Order.Balances))
	}

	paid, err := alice.RecordPayment(ctx, connect.NewRequest(&RecordPaymentRequest{
		OrderID:       order.ID,
		ParticipantID: participants[1].ID,
		AmountPaid:    money("10.00"),
	}))
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	bobEntry := paid.Msg.Order.Order.Participants[1]
	if !bobEntry.Paid || !bobEntry.Change.Equal(money("2.33")) {
		t.Errorf("expected bob paid with 2.33 change, got paid=%v change=%s", bobEntry.Paid, bobEntry.Change)
	}
	if !paid.Msg.Order.Order.CreatorChange.Equal(money("-15.50")) {
		t.Errorf("creator change: expected -15.50, got %s", paid.Msg.Order.Order.CreatorChange)
	}

	_, err = bob.CloseOrder(ctx, connect.NewRequest(&OrderRequest{OrderID: order.ID}))
	expectCode(t, err, connect.CodePermissionDenied)

	closed, err := alice.CloseOrder(ctx, connect.NewRequest(&OrderRequest{OrderID: order.ID}))
	if err != nil {
		t.Fatalf("CloseOrder failed: %v", err)
	}
	if closed.Msg.Order.Order.Status != models.StatusClosed {
		t.Errorf("expected closed, got %s", closed.Msg.Order.Order.Status)
	}

	_, err = carol.JoinOrder(ctx, connect.NewRequest(&JoinOrderRequest{
		OrderID: order.ID,
		Items:   []models.LineItem{{Name: "Soda", UnitPrice: money("1.00"), Quantity: 1}},
	}))
	expectCode(t, err, connect.CodeFailedPrecondition)

	delivered, err := alice.DeliverOrder(ctx, connect.NewRequest(&OrderRequest{OrderID: order.ID}))
	if err != nil {
		t.Fatalf("DeliverOrder failed: %v", err)
	}
	if delivered.Msg.Order.Order.DeliveredAt == nil {
		t.Error("expected DeliveredAt to be set")
	}

	stats, err := bob.GetUserStatistics(ctx, connect.NewRequest(&GetUserStatisticsRequest{}))
	if err != nil {
		t.Fatalf("GetUserStatistics failed: %v", err)
	}
	if stats.Msg.Statistics.TotalOrders != 1 {
		t.Errorf("expected 1 order, got %d", stats.Msg.Statistics.TotalOrders)
	}
	if len(stats.Msg.Statistics.PaymentHistory) != 1 || stats.Msg.Statistics.PaymentHistory[0].Status != models.PaymentPaid {
		t.Errorf("expected one paid record, got %+v", stats.Msg.Statistics.PaymentHistory)
	}

	_, err = carol.GetUserStatistics(ctx, connect.NewRequest(&GetUserStatisticsRequest{UserID: "bob"}))
	expectCode(t, err, connect.CodePermissionDenied)
}

func TestLeaveOrder(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.client(t, auth.Identity{UserID: "alice", Name: "Alice"})
	bob := srv.client(t, auth.Identity{UserID: "bob", Name: "Bob"})

	order := createOrder(t, alice)
	joined, err := bob.JoinOrder(ctx, connect.NewRequest(&JoinOrderRequest{
		OrderID: order.ID,
		Items:   []models.LineItem{{Name: "Pizza", UnitPrice: money("10.00"), Quantity: 1}},
	}))
	if err != nil {
		t.Fatalf("JoinOrder failed: %v", err)
	}

	resp, err := bob.LeaveOrder(ctx, connect.NewRequest(&LeaveOrderRequest{
		OrderID:       order.ID,
		ParticipantID: joined.Msg.Participant.ID,
	}))
	if err != nil {
		t.Fatalf("LeaveOrder failed: %v", err)
	}
	if len(resp.Msg.Order.Order.Participants) != 0 {
		t.Errorf("expected no participants, got %d", len(resp.Msg.Order.Order.Participants))
	}

	_, err = bob.LeaveOrder(ctx, connect.NewRequest(&LeaveOrderRequest{
		OrderID:       order.ID,
		ParticipantID: joined.Msg.Participant.ID,
	}))
	expectCode(t, err, connect.CodeNotFound)
}

func TestErrorMapping(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.client(t, auth.Identity{UserID: "alice", Name: "Alice"})
	anonymous := srv.client(t, auth.Identity{})

	_, err := anonymous.ListRestaurants(ctx, connect.NewRequest(&ListRestaurantsRequest{}))
	expectCode(t, err, connect.CodeUnauthenticated)

	_, err = alice.GetOrder(ctx, connect.NewRequest(&OrderRequest{OrderID: "nonexistent-id"}))
	expectCode(t, err, connect.CodeNotFound)

	_, err = alice.GetOrder(ctx, connect.NewRequest(&OrderRequest{}))
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = alice.CreateOrder(ctx, connect.NewRequest(&CreateOrderRequest{
		RestaurantID: "luigis",
		DeliveryTime: time.Now().Add(5 * time.Minute),
	}))
	expectCode(t, err, connect.CodeInvalidArgument)

	_, err = alice.CreateOrder(ctx, connect.NewRequest(&CreateOrderRequest{
		RestaurantID: "nowhere",
		DeliveryTime: time.Now().Add(2 * time.Hour),
	}))
	expectCode(t, err, connect.CodeNotFound)

	_, err = alice.ListOrders(ctx, connect.NewRequest(&ListOrdersRequest{Status: "cancelled"}))
	expectCode(t, err, connect.CodeInvalidArgument)

	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		if kind := connectErr.Meta().Get(HeaderErrorKind); kind != string(apperr.KindValidation) {
			t.Errorf("expected %s kind header, got %q", apperr.KindValidation, kind)
		}
	}
}

func TestListOrdersAndRestaurants(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	alice := srv.client(t, auth.Identity{UserID: "alice", Name: "Alice"})
	bob := srv.client(t, auth.Identity{UserID: "bob", Name: "Bob"})

	createOrder(t, alice)
	createOrder(t, alice)
	createOrder(t, bob)

	all, err := bob.ListOrders(ctx, connect.NewRequest(&ListOrdersRequest{}))
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if all.Msg.Total != 3 || len(all.Msg.Orders) != 3 {
		t.Errorf("expected 3 orders, got total=%d len=%d", all.Msg.Total, len(all.Msg.Orders))
	}
	if all.Msg.Limit != 20 {
		t.Errorf("expected default limit 20, got %d", all.Msg.Limit)
	}

	mine, err := bob.ListOrders(ctx, connect.NewRequest(&ListOrdersRequest{Mine: true, Status: "open"}))
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if mine.Msg.Total != 1 || mine.Msg.Orders[0].CreatedBy != "bob" {
		t.Errorf("expected bob's single order, got %+v", mine.Msg.Orders)
	}

	restaurants, err := bob.ListRestaurants(ctx, connect.NewRequest(&ListRestaurantsRequest{}))
	if err != nil {
		t.Fatalf("ListRestaurants failed: %v", err)
	}
	if len(restaurants.Msg.Restaurants) != 1 || restaurants.Msg.Restaurants[0].Name != "Luigi's" {
		t.Errorf("unexpected restaurants: %+v", restaurants.Msg.Restaurants)
	}
}

func TestToConnectError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  connect.Code
		wantMsg   string
		retryable bool
	}{
		{
			name:     "validation with details",
			err:      apperr.Validation("bad input").WithDetails(map[string]string{"b": "y", "a": "x"}),
			wantCode: connect.CodeInvalidArgument,
			wantMsg:  "bad input (a: x; b: y)",
		},
		{
			name:     "state",
			err:      apperr.State("order is closed"),
			wantCode: connect.CodeFailedPrecondition,
			wantMsg:  "order is closed",
		},
		{
			name:      "conflict",
			err:       apperr.Conflict("gave up"),
			wantCode:  connect.CodeAborted,
			wantMsg:   "gave up",
			retryable: true,
		},
		{
			name:      "unavailable hides cause",
			err:       apperr.Unavailable(errors.New("dial tcp 10.0.0.1:5432"), "failed to load order"),
			wantCode:  connect.CodeUnavailable,
			wantMsg:   "storage unavailable",
			retryable: true,
		},
		{
			name:     "unclassified",
			err:      errors.New("boom"),
			wantCode: connect.CodeInternal,
			wantMsg:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toConnectError(tt.err)
			if got.Code() != tt.wantCode {
				t.Errorf("code: expected %v, got %v", tt.wantCode, got.Code())
			}
			if got.Message() != tt.wantMsg {
				t.Errorf("message: expected %q, got %q", tt.wantMsg, got.Message())
			}
			if retryable := got.Meta().Get(HeaderRetryable) == "true"; retryable != tt.retryable {
				t.Errorf("retryable: expected %v, got %v", tt.retryable, retryable)
			}
		})
	}
}
