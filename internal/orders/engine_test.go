package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/grouporder/internal/apperr"
	"github.com/mmynk/grouporder/internal/metrics"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
	"github.com/mmynk/grouporder/internal/storage/sqlite"
	"github.com/mmynk/grouporder/internal/storage/storetest"
)

var (
	alice = Actor{UserID: "alice", Name: "Alice", Room: "4B"}
	bob   = Actor{UserID: "bob", Name: "Bob", Room: "2A"}
	carol = Actor{UserID: "carol", Name: "Carol", Room: "3C"}
	admin = Actor{UserID: "root", Name: "Admin", IsAdmin: true}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, got.Equal(d(want)), "expected %s, got %s %v", want, got.StringFixed(2), msgAndArgs)
}

// flakyStore wraps a real store and injects failures.
type flakyStore struct {
	storage.Store

	mu            sync.Mutex
	saveConflicts int
	saveCalls     int
	loadErr       error
	statsErr      error
	afterSave     func()
}

func (f *flakyStore) LoadOrder(ctx context.Context, id string) (*models.GroupOrder, storage.Version, error) {
	f.mu.Lock()
	err := f.loadErr
	f.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	return f.Store.LoadOrder(ctx, id)
}

func (f *flakyStore) SaveOrder(ctx context.Context, order *models.GroupOrder, expected storage.Version) (storage.Version, error) {
	f.mu.Lock()
	f.saveCalls++
	if f.saveConflicts != 0 {
		if f.saveConflicts > 0 {
			f.saveConflicts--
		}
		f.mu.Unlock()
		return 0, storage.ErrConflict
	}
	afterSave := f.afterSave
	f.mu.Unlock()
	version, err := f.Store.SaveOrder(ctx, order, expected)
	if err == nil && afterSave != nil {
		afterSave()
	}
	return version, err
}

func (f *flakyStore) SaveUserStats(ctx context.Context, stats *models.UserStatistics, expected storage.Version) (storage.Version, error) {
	f.mu.Lock()
	err := f.statsErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.Store.SaveUserStats(ctx, stats, expected)
}

type harness struct {
	engine *Engine
	store  *flakyStore
	reg    *prometheus.Registry
	now    time.Time
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.SaveRestaurant(context.Background(), &models.Restaurant{
		ID:          "luigis",
		Name:        "Luigi's",
		Cuisine:     "italian",
		DeliveryFee: d("5.00"),
		Menu:        []models.MenuItem{{Name: "Pizza", Category: "mains", Price: d("10.00")}},
		CreatedAt:   storetest.BaseTime,
	}))

	h := &harness{
		store: &flakyStore{Store: db},
		reg:   prometheus.NewRegistry(),
		now:   storetest.BaseTime,
	}
	opts.Now = func() time.Time { return h.now }
	opts.Metrics = metrics.New(h.reg)
	h.engine = New(h.store, opts)
	return h
}

func (h *harness) createOrder(t *testing.T, creator Actor) *models.GroupOrder {
	t.Helper()
	order, err := h.engine.CreateOrder(context.Background(), creator, CreateOrderInput{
		RestaurantID: "luigis",
		DeliveryTime: h.now.Add(time.Hour),
		Message:      "lunch at noon",
	})
	require.NoError(t, err)
	return order
}

func (h *harness) join(t *testing.T, actor Actor, orderID string, items ...models.LineItem) *models.Participant {
	t.Helper()
	_, p, err := h.engine.JoinOrder(context.Background(), actor, JoinOrderInput{OrderID: orderID, Items: items})
	require.NoError(t, err)
	return p
}

func item(name, price string, qty int) models.LineItem {
	return models.LineItem{Name: name, UnitPrice: d(price), Quantity: qty}
}

func TestCreateOrder(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	order := h.createOrder(t, alice)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.StatusOpen, order.Status)
	assert.Equal(t, "Luigi's", order.RestaurantName)
	assert.Equal(t, "4B", order.CreatorRoom)
	assert.Empty(t, order.Participants)
	requireMoney(t, "5.00", order.DeliveryFee)
	requireMoney(t, "0", order.CreatorChange)

	fee := d("3.50")
	custom, err := h.engine.CreateOrder(ctx, alice, CreateOrderInput{
		RestaurantID: "luigis",
		DeliveryTime: h.now.Add(DefaultMinLeadTime),
		DeliveryFee:  &fee,
		CreatorRoom:  "lobby",
	})
	require.NoError(t, err)
	requireMoney(t, "3.50", custom.DeliveryFee)
	assert.Equal(t, "lobby", custom.CreatorRoom)

	view, err := h.engine.GetOrder(ctx, bob, custom.ID)
	require.NoError(t, err)
	storetest.RequireOrderEqual(t, custom, view.Order)
}

func TestCreateOrderRejections(t *testing.T) {
	h := newHarness(t, Options{})
	negative, fractional := d("-1.00"), d("1.005")
	huge, overflow := models.MaxAmount.Add(d("0.01")), d("184467440737095521.16")

	tests := []struct {
		name  string
		actor Actor
		in    CreateOrderInput
		want  error
	}{
		{
			name:  "anonymous",
			actor: Actor{},
			in:    CreateOrderInput{RestaurantID: "luigis", DeliveryTime: h.now.Add(time.Hour)},
			want:  apperr.ErrAuthorization,
		},
		{
			name:  "missing restaurant",
			actor: alice,
			in:    CreateOrderInput{DeliveryTime: h.now.Add(time.Hour)},
			want:  apperr.ErrValidation,
		},
		{
			name:  "delivery too soon",
			actor: alice,
			in:    CreateOrderInput{RestaurantID: "luigis", DeliveryTime: h.now.Add(10 * time.Minute)},
			want:  apperr.ErrValidation,
		},
		{
			name:  "delivery in the past",
			actor: alice,
			in:    CreateOrderInput{RestaurantID: "luigis", DeliveryTime: h.now.Add(-time.Hour)},
			want:  apperr.ErrValidation,
		},
		{
			name:  "unknown restaurant",
			actor: alice,
			in:    CreateOrderInput{RestaurantID: "nowhere", DeliveryTime: h.now.Add(time.Hour)},
			want:  apperr.ErrNotFound,
		},
		{
			name:  "negative fee",
			actor: alice,
			in:    CreateOrderInput{RestaurantID: "luigis", DeliveryTime: h.now.Add(time.Hour), DeliveryFee: &negative},
			want:  apperr.ErrValidation,
		},
		{
			name:  "fee above the maximum",
			actor: alice,
			in:    CreateOrderInput{RestaurantID: "luigis", DeliveryTime: h.now.Add(time.Hour), DeliveryFee: &huge},
			want:  apperr.ErrValidation,
		},
		{
			name:  "fee overflowing minor units",
			actor: alice,
			in:    CreateOrderInput{RestaurantID: "luigis", DeliveryTime: h.now.Add(time.Hour), DeliveryFee: &overflow},
			want:  apperr.ErrValidation,
		},
		{
			name:  "fee below a cent",
			actor: alice,
			in:    CreateOrderInput{RestaurantID: "luigis", DeliveryTime: h.now.Add(time.Hour), DeliveryFee: &fractional},
			want:  apperr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.CreateOrder(context.Background(), tt.actor, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}

	orders, total, err := h.engine.ListOrders(context.Background(), alice, ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestJoinSplitsFeeInJoinOrder(t *testing.T) {
	h := newHarness(t, Options{})
	order := h.createOrder(t, alice)

	h.join(t, alice, order.ID, item("Pizza", "10.00", 1))
	h.join(t, bob, order.ID, item("Pasta", "6.00", 1))
	p := h.join(t, carol, order.ID, item("Salad", "4.50", 1))

	requireMoney(t, "1.66", p.FeeShare)
	requireMoney(t, "6.16", p.TotalAmount)

	view, err := h.engine.GetOrder(context.Background(), alice, order.ID)
	require.NoError(t, err)
	got := view.Order
	require.Len(t, got.Participants, 3)
	assert.Equal(t, []string{"alice", "bob", "carol"}, []string{
		got.Participants[0].UserID, got.Participants[1].UserID, got.Participants[2].UserID,
	})
	requireMoney(t, "11.67", got.Participants[0].TotalAmount)
	requireMoney(t, "7.67", got.Participants[1].TotalAmount)
	requireMoney(t, "6.16", got.Participants[2].TotalAmount)
	requireMoney(t, "-25.50", got.CreatorChange)

	assert.Equal(t, 3, view.Summary.ParticipantCount)
	requireMoney(t, "20.50", view.Summary.Subtotal)
	requireMoney(t, "5.00", view.Summary.FeeShares)
	requireMoney(t, "25.50", view.Summary.Total)
	assert.False(t, view.Summary.AllPaid)
	require.Len(t, view.Balances, 3)
	requireMoney(t, "11.67", view.Balances[0].Outstanding)
}

func TestRejoinReplacesEntryInPlace(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	order := h.createOrder(t, alice)

	first := h.join(t, bob, order.ID, item("Pizza", "10.00", 1))
	h.join(t, carol, order.ID, item("Salad", "4.50", 1))

	_, err := h.engine.RecordPayment(ctx, alice, order.ID, first.ID, d("20.00"))
	require.NoError(t, err)

	again := h.join(t, bob, order.ID, item("Calzone", "8.00", 2))
	assert.Equal(t, first.ID, again.ID)
	requireMoney(t, "0", again.AmountPaid)
	assert.False(t, again.Paid)
	requireMoney(t, "16.00", again.Subtotal)
	requireMoney(t, "18.50", again.TotalAmount)

	view, err := h.engine.GetOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	require.Len(t, view.Order.Participants, 2)
	assert.Equal(t, first.ID, view.Order.Participants[0].ID)
	assert.Equal(t, first.JoinedAt, view.Order.Participants[0].JoinedAt)
}

func TestJoinRejections(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	order := h.createOrder(t, alice)

	tests := []struct {
		name  string
		items []models.LineItem
	}{
		{name: "no items"},
		{name: "blank name", items: []models.LineItem{item(" ", "1.00", 1)}},
		{name: "zero quantity", items: []models.LineItem{item("Pizza", "1.00", 0)}},
		{name: "negative price", items: []models.LineItem{item("Pizza", "-1.00", 1)}},
		{name: "sub-cent price", items: []models.LineItem{item("Pizza", "1.001", 1)}},
		{name: "price above the maximum", items: []models.LineItem{item("Pizza", "1000000000.01", 1)}},
		{name: "line amount above the maximum", items: []models.LineItem{item("Pizza", "600000000.00", 2)}},
		{name: "subtotal above the maximum", items: []models.LineItem{item("Pizza", "600000000.00", 1), item("Pasta", "600000000.00", 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.engine.JoinOrder(ctx, bob, JoinOrderInput{OrderID: order.ID, Items: tt.items})
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, _, err := h.engine.JoinOrder(ctx, bob, JoinOrderInput{OrderID: "missing", Items: []models.LineItem{item("Pizza", "1.00", 1)}})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = h.engine.CloseOrder(ctx, alice, order.ID)
	require.NoError(t, err)

	// State is checked before the items.
	_, _, err = h.engine.JoinOrder(ctx, bob, JoinOrderInput{OrderID: order.ID})
	require.ErrorIs(t, err, apperr.ErrState)

	view, err := h.engine.GetOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Order.Participants)
}

func TestLeaveOrder(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	order := h.createOrder(t, alice)

	pb := h.join(t, bob, order.ID, item("Pizza", "10.00", 1))
	pc := h.join(t, carol, order.ID, item("Salad", "4.50", 1))

	_, err := h.engine.LeaveOrder(ctx, carol, order.ID, pb.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = h.engine.LeaveOrder(ctx, bob, order.ID, "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	left, err := h.engine.LeaveOrder(ctx, bob, order.ID, pb.ID)
	require.NoError(t, err)
	require.Len(t, left.Participants, 1)
	requireMoney(t, "5.00", left.Participants[0].FeeShare)
	requireMoney(t, "9.50", left.Participants[0].TotalAmount)

	stats, err := h.engine.GetUserStatistics(ctx, bob, "")
	require.NoError(t, err)
	assert.Empty(t, stats.PaymentHistory)
	assert.Equal(t, 1, stats.TotalOrders)

	_, err = h.engine.LeaveOrder(ctx, alice, order.ID, pc.ID)
	require.NoError(t, err)
}

func TestLeaveClosedOrderResplitsFee(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	order := h.createOrder(t, alice)

	h.join(t, alice, order.ID, item("Pasta", "8.00", 1))
	pb := h.join(t, bob, order.ID, item("Pizza", "10.00", 1))
	h.join(t, carol, order.ID, item("Salad", "4.50", 1))

	_, err := h.engine.CloseOrder(ctx, alice, order.ID)
	require.NoError(t, err)

	left, err := h.engine.LeaveOrder(ctx, bob, order.ID, pb.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, left.Status)
	require.Len(t, left.Participants, 2)
	requireMoney(t, "2.50", left.Participants[0].FeeShare)
	requireMoney(t, "2.50", left.Participants[1].FeeShare)
	requireMoney(t, "-17.50", left.CreatorChange)

	_, err = h.engine.DeliverOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	delivered, err := h.engine.LeaveOrder(ctx, alice, order.ID, left.Participants[1].ID)
	require.NoError(t, err)
	require.Len(t, delivered.Participants, 1)
	requireMoney(t, "5.00", delivered.Participants[0].FeeShare)
}

func TestCreatorCanRemoveParticipant(t *testing.T) {
	h := newHarness(t, Options{})
	order := h.createOrder(t, alice)
	pb := h.join(t, bob, order.ID, item("Pizza", "10.00", 1))

	got, err := h.engine.LeaveOrder(context.Background(), alice, order.ID, pb.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Participants)
	requireMoney(t, "0", got.CreatorChange)
}

func TestLifecycle(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	order := h.createOrder(t, alice)

	_, err := h.engine.CloseOrder(ctx, bob, order.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	closed, err := h.engine.CloseOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)

	_, err = h.engine.CloseOrder(ctx, alice, order.ID)
	require.ErrorIs(t, err, apperr.ErrState)

	h.now = h.now.Add(2 * time.Hour)
	delivered, err := h.engine.DeliverOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
	assert.True(t, delivered.DeliveredAt.Equal(h.now))

	// Authorization is checked before state.
	_, err = h.engine.DeliverOrder(ctx, bob, order.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	_, err = h.engine.DeliverOrder(ctx, alice, order.ID)
	require.ErrorIs(t, err, apperr.ErrState)
	_, err = h.engine.CloseOrder(ctx, alice, order.ID)
	require.ErrorIs(t, err, apperr.ErrState)

	direct := h.createOrder(t, alice)
	direct, err = h.engine.DeliverOrder(ctx, alice, direct.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, direct.Status)

	_, err = h.engine.CloseOrder(ctx, alice, "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordPayment(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	order := h.createOrder(t, alice)

	pa := h.join(t, alice, order.ID, item("Pizza", "10.00", 1))
	pb := h.join(t, bob, order.ID, item("Pasta", "6.00", 1))
	h.join(t, carol, order.ID, item("Salad", "4.50", 1))

	got, err := h.engine.RecordPayment(ctx, alice, order.ID, pb.ID, d("10.00"))
	require.NoError(t, err)
	p := got.Participants[got.FindParticipant(pb.ID)]
	assert.True(t, p.Paid)
	requireMoney(t, "2.33", p.Change)
	requireMoney(t, "-15.50", got.CreatorChange)

	// Recording the same amount again changes nothing.
	again, err := h.engine.RecordPayment(ctx, alice, order.ID, pb.ID, d("10.00"))
	require.NoError(t, err)
	requireMoney(t, "-15.50", again.CreatorChange)

	got, err = h.engine.RecordPayment(ctx, alice, order.ID, pa.ID, d("11.00"))
	require.NoError(t, err)
	p = got.Participants[got.FindParticipant(pa.ID)]
	assert.False(t, p.Paid)
	requireMoney(t, "0", p.Change)

	stats, err := h.engine.GetUserStatistics(ctx, bob, "bob")
	require.NoError(t, err)
	require.Len(t, stats.PaymentHistory, 1)
	rec := stats.PaymentHistory[0]
	assert.Equal(t, order.ID, rec.OrderID)
	assert.Equal(t, models.PaymentPaid, rec.Status)
	require.NotNil(t, rec.PaidAt)
	requireMoney(t, "6.00", rec.Amount)
	requireMoney(t, "1.67", rec.DeliveryFee)

	// Lowering the amount below the total flips the record back.
	_, err = h.engine.RecordPayment(ctx, alice, order.ID, pb.ID, d("1.00"))
	require.NoError(t, err)
	stats, err = h.engine.GetUserStatistics(ctx, bob, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentUnpaid, stats.PaymentHistory[0].Status)
	assert.Nil(t, stats.PaymentHistory[0].PaidAt)
}

func TestRecordPaymentRejections(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	order := h.createOrder(t, alice)
	pb := h.join(t, bob, order.ID, item("Pizza", "10.00", 1))

	tests := []struct {
		name          string
		actor         Actor
		participantID string
		amount        string
		want          error
	}{
		{name: "not creator", actor: bob, participantID: pb.ID, amount: "5.00", want: apperr.ErrAuthorization},
		{name: "not creator with bad amount", actor: bob, participantID: pb.ID, amount: "-5.00", want: apperr.ErrAuthorization},
		{name: "negative", actor: alice, participantID: pb.ID, amount: "-0.01", want: apperr.ErrValidation},
		{name: "sub-cent", actor: alice, participantID: pb.ID, amount: "0.001", want: apperr.ErrValidation},
		{name: "above the maximum", actor: alice, participantID: pb.ID, amount: "184467440737095521.16", want: apperr.ErrValidation},
		{name: "unknown participant", actor: alice, participantID: "missing", amount: "5.00", want: apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.RecordPayment(ctx, tt.actor, order.ID, tt.participantID, d(tt.amount))
			require.ErrorIs(t, err, tt.want)
		})
	}

	// Payments are allowed after delivery.
	_, err := h.engine.DeliverOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	_, err = h.engine.RecordPayment(ctx, alice, order.ID, pb.ID, d("15.00"))
	require.NoError(t, err)
}

func TestUserStatistics(t *testing.T) {
	h := newHarness(t, Options{TopN: 2})
	ctx := context.Background()

	for range 3 {
		order := h.createOrder(t, alice)
		h.join(t, bob, order.ID, item("Pizza", "10.00", 2), item("Soda", "1.50", 1))
	}

	stats, err := h.engine.GetUserStatistics(ctx, bob, "")
	require.NoError(t, err)
	assert.Equal(t, "bob", stats.UserID)
	assert.Equal(t, 3, stats.TotalOrders)
	requireMoney(t, "79.50", stats.TotalSpent)
	require.Len(t, stats.FavoriteRestaurants, 1)
	assert.Equal(t, 3, stats.FavoriteRestaurants[0].OrderCount)
	require.Len(t, stats.MostOrderedItems, 2)
	assert.Equal(t, "Pizza", stats.MostOrderedItems[0].Name)
	assert.Equal(t, 6, stats.MostOrderedItems[0].Quantity)
	assert.Len(t, stats.PaymentHistory, 3)

	_, err = h.engine.GetUserStatistics(ctx, carol, "bob")
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	byAdmin, err := h.engine.GetUserStatistics(ctx, admin, "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, byAdmin.TotalOrders)

	_, err = h.engine.GetUserStatistics(ctx, carol, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListOrders(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	var ids []string
	for i := range 3 {
		h.now = storetest.BaseTime.Add(time.Duration(i) * time.Minute)
		ids = append(ids, h.createOrder(t, alice).ID)
	}
	h.now = h.now.Add(time.Minute)
	ids = append(ids, h.createOrder(t, bob).ID)

	_, err := h.engine.CloseOrder(ctx, alice, ids[0])
	require.NoError(t, err)

	all, total, err := h.engine.ListOrders(ctx, carol, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, all, 2)
	assert.Equal(t, ids[3], all[0].ID)

	mine, total, err := h.engine.ListOrders(ctx, alice, ListFilter{Mine: true, Status: models.StatusOpen})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, mine, 2)
	assert.Equal(t, ids[2], mine[0].ID)
	assert.Equal(t, ids[1], mine[1].ID)

	_, _, err = h.engine.ListOrders(ctx, alice, ListFilter{Status: "cancelled"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, _, err = h.engine.ListOrders(ctx, alice, ListFilter{Offset: -1})
	require.ErrorIs(t, err, apperr.ErrValidation)

	restaurants, err := h.engine.ListRestaurants(ctx)
	require.NoError(t, err)
	require.Len(t, restaurants, 1)
	assert.Equal(t, "luigis", restaurants[0].ID)
}

func TestSaveConflictIsRetried(t *testing.T) {
	h := newHarness(t, Options{})
	order := h.createOrder(t, alice)

	h.store.saveConflicts = 2
	h.join(t, bob, order.ID, item("Pizza", "10.00", 1))
	assert.Equal(t, 3, h.store.saveCalls)

	expected := `
# HELP grouporder_save_conflicts_total Optimistic-concurrency conflicts seen while saving.
# TYPE grouporder_save_conflicts_total counter
grouporder_save_conflicts_total{record="order"} 2
`
	require.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(expected), "grouporder_save_conflicts_total"))
}

func TestSaveConflictGivesUp(t *testing.T) {
	h := newHarness(t, Options{MaxSaveAttempts: 4})
	order := h.createOrder(t, alice)

	h.store.saveConflicts = -1
	_, _, err := h.engine.JoinOrder(context.Background(), bob, JoinOrderInput{
		OrderID: order.ID,
		Items:   []models.LineItem{item("Pizza", "10.00", 1)},
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 4, h.store.saveCalls)

	h.store.saveConflicts = 0
	view, err := h.engine.GetOrder(context.Background(), alice, order.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Order.Participants)

	_, err = h.engine.GetUserStatistics(context.Background(), bob, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStatsFailureDoesNotFailJoin(t *testing.T) {
	h := newHarness(t, Options{})
	order := h.createOrder(t, alice)

	h.store.statsErr = errors.New("disk full")
	p := h.join(t, bob, order.ID, item("Pizza", "10.00", 1))
	requireMoney(t, "15.00", p.TotalAmount)

	expected := `
# HELP grouporder_stats_update_failures_total User statistics updates that failed after the order was committed.
# TYPE grouporder_stats_update_failures_total counter
grouporder_stats_update_failures_total 1
`
	require.NoError(t, testutil.GatherAndCompare(h.reg, strings.NewReader(expected), "grouporder_stats_update_failures_total"))

	h.store.statsErr = nil
	_, err := h.engine.GetUserStatistics(context.Background(), bob, "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStatsUpdateSurvivesCallerCancel(t *testing.T) {
	h := newHarness(t, Options{})
	order := h.createOrder(t, alice)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.store.afterSave = cancel

	_, _, err := h.engine.JoinOrder(ctx, bob, JoinOrderInput{OrderID: order.ID, Items: []models.LineItem{item("Pizza", "10.00", 1)}})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	stats, err := h.engine.GetUserStatistics(context.Background(), bob, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalOrders)
	require.Len(t, stats.PaymentHistory, 1)
	assert.Equal(t, order.ID, stats.PaymentHistory[0].OrderID)
}

func TestStorageFailureIsUnavailable(t *testing.T) {
	h := newHarness(t, Options{})
	order := h.createOrder(t, alice)

	h.store.loadErr = errors.New("connection reset")
	_, err := h.engine.CloseOrder(context.Background(), alice, order.ID)
	require.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Zero(t, h.store.saveCalls)

	_, err = h.engine.GetOrder(context.Background(), alice, order.ID)
	require.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestConcurrentJoins(t *testing.T) {
	h := newHarness(t, Options{MaxSaveAttempts: 100})
	order := h.createOrder(t, alice)

	const joiners = 10
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := range joiners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := Actor{UserID: fmt.Sprintf("user-%d", i), Name: fmt.Sprintf("User %d", i)}
			_, _, err := h.engine.JoinOrder(context.Background(), actor, JoinOrderInput{
				OrderID: order.ID,
				Items:   []models.LineItem{item("Pizza", "10.00", 1)},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	view, err := h.engine.GetOrder(context.Background(), alice, order.ID)
	require.NoError(t, err)
	require.Len(t, view.Order.Participants, joiners)

	fees := decimal.Zero
	for _, p := range view.Order.Participants {
		fees = fees.Add(p.FeeShare)
		requireMoney(t, "0.50", p.FeeShare)
	}
	requireMoney(t, "5.00", fees)
	requireMoney(t, "-105.00", view.Order.CreatorChange)
}
