// Package storetest holds the conformance suite every storage.Store runs.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Run exercises the full storage.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Restaurants", func(t *testing.T) { testRestaurants(t, newStore(t)) })
	t.Run("OrderRoundTrip", func(t *testing.T) { testOrderRoundTrip(t, newStore(t)) })
	t.Run("OrderNotFound", func(t *testing.T) { testOrderNotFound(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("SaveVersioning", func(t *testing.T) { testSaveVersioning(t, newStore(t)) })
	t.Run("SaveReplacesParticipants", func(t *testing.T) { testSaveReplacesParticipants(t, newStore(t)) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrentSaves(t, newStore(t)) })
	t.Run("ListOrders", func(t *testing.T) { testListOrders(t, newStore(t)) })
	t.Run("UserStats", func(t *testing.T) { testUserStats(t, newStore(t)) })
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// BaseTime is a whole-second UTC instant every backend round-trips exactly.
var BaseTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// NewOrder returns a fully populated order with two participants.
func NewOrder(createdBy string, createdAt time.Time) *models.GroupOrder {
	return &models.GroupOrder{
		ID:             uuid.New().String(),
		RestaurantID:   "r-1",
		RestaurantName: "Luigi's",
		CreatedBy:      createdBy,
		CreatorRoom:    "B-204",
		DeliveryTime:   createdAt.Add(time.Hour),
		DeliveryFee:    d("5.00"),
		Message:        "lunch at noon",
		Status:         models.StatusOpen,
		Participants: []models.Participant{
			{
				ID:       uuid.New().String(),
				UserID:   "u-1",
				UserName: "Ada",
				Items: []models.LineItem{
					{Name: "Pizza", UnitPrice: d("10.00"), Quantity: 2, Note: "extra cheese"},
					{Name: "Soda", UnitPrice: d("1.50"), Quantity: 1},
				},
				SpecialInstructions: "no onions",
				Subtotal:            d("21.50"),
				FeeShare:            d("2.50"),
				TotalAmount:         d("24.00"),
				AmountPaid:          d("25.00"),
				Paid:                true,
				Change:              d("1.00"),
				JoinedAt:            createdAt.Add(time.Minute),
			},
			{
				ID:          uuid.New().String(),
				UserID:      "u-2",
				UserName:    "Grace",
				Items:       []models.LineItem{{Name: "Salad", UnitPrice: d("8.25"), Quantity: 1}},
				Subtotal:    d("8.25"),
				FeeShare:    d("2.50"),
				TotalAmount: d("10.75"),
				AmountPaid:  decimal.Zero,
				Change:      decimal.Zero,
				JoinedAt:    createdAt.Add(2 * time.Minute),
			},
		},
		CreatorChange: d("-9.75"),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

// RequireOrderEqual compares orders field by field, treating decimals by value
// and times by instant.
func RequireOrderEqual(t *testing.T, want, got *models.GroupOrder) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.RestaurantID, got.RestaurantID)
	assert.Equal(t, want.RestaurantName, got.RestaurantName)
	assert.Equal(t, want.CreatedBy, got.CreatedBy)
	assert.Equal(t, want.CreatorRoom, got.CreatorRoom)
	assert.True(t, want.DeliveryTime.Equal(got.DeliveryTime), "delivery time %v != %v", want.DeliveryTime, got.DeliveryTime)
	assertDecimal(t, "delivery fee", want.DeliveryFee, got.DeliveryFee)
	assert.Equal(t, want.Message, got.Message)
	assert.Equal(t, want.Status, got.Status)
	assertDecimal(t, "creator change", want.CreatorChange, got.CreatorChange)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created at %v != %v", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated at %v != %v", want.UpdatedAt, got.UpdatedAt)
	if want.DeliveredAt == nil {
		assert.Nil(t, got.DeliveredAt)
	} else {
		require.NotNil(t, got.DeliveredAt)
		assert.True(t, want.DeliveredAt.Equal(*got.DeliveredAt))
	}

	require.Len(t, got.Participants, len(want.Participants))
	for i, wp := range want.Participants {
		gp := got.Participants[i]
		assert.Equal(t, wp.ID, gp.ID)
		assert.Equal(t, wp.UserID, gp.UserID)
		assert.Equal(t, wp.UserName, gp.UserName)
		assert.Equal(t, wp.SpecialInstructions, gp.SpecialInstructions)
		assertDecimal(t, "subtotal", wp.Subtotal, gp.Subtotal)
		assertDecimal(t, "fee share", wp.FeeShare, gp.FeeShare)
		assertDecimal(t, "total amount", wp.TotalAmount, gp.TotalAmount)
		assertDecimal(t, "amount paid", wp.AmountPaid, gp.AmountPaid)
		assertDecimal(t, "change", wp.Change, gp.Change)
		assert.Equal(t, wp.Paid, gp.Paid)
		assert.True(t, wp.JoinedAt.Equal(gp.JoinedAt))

		require.Len(t, gp.Items, len(wp.Items))
		for j, wi := range wp.Items {
			gi := gp.Items[j]
			assert.Equal(t, wi.Name, gi.Name)
			assert.Equal(t, wi.Quantity, gi.Quantity)
			assert.Equal(t, wi.Note, gi.Note)
			assertDecimal(t, "unit price", wi.UnitPrice, gi.UnitPrice)
		}
	}
}

func assertDecimal(t *testing.T, field string, want, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Equal(got), "%s: want %s, got %s", field, want, got)
}

func testRestaurants(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	_, err := store.GetRestaurant(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	r := &models.Restaurant{
		Name:        "Luigi's",
		Cuisine:     "italian",
		DeliveryFee: d("4.50"),
		Menu: []models.MenuItem{
			{Name: "Pizza", Category: "mains", Price: d("10.00")},
		},
	}
	require.NoError(t, store.SaveRestaurant(ctx, r))
	require.NotEmpty(t, r.ID)
	require.NoError(t, store.SaveRestaurant(ctx, &models.Restaurant{Name: "Annapurna", Cuisine: "nepali", DeliveryFee: d("3.00")}))

	got, err := store.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Luigi's", got.Name)
	assertDecimal(t, "delivery fee", d("4.50"), got.DeliveryFee)
	require.Len(t, got.Menu, 1)
	assertDecimal(t, "price", d("10.00"), got.Menu[0].Price)

	r.DeliveryFee = d("5.00")
	require.NoError(t, store.SaveRestaurant(ctx, r))
	got, err = store.GetRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assertDecimal(t, "delivery fee", d("5.00"), got.DeliveryFee)

	all, err := store.ListRestaurants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Annapurna", all[0].Name)
	assert.Equal(t, "Luigi's", all[1].Name)
}

func testOrderRoundTrip(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	order := NewOrder("creator", BaseTime)
	require.NoError(t, store.CreateOrder(ctx, order))

	got, version, err := store.LoadOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.Version(1), version)
	RequireOrderEqual(t, order, got)
}

func testOrderNotFound(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	_, _, err := store.LoadOrder(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.SaveOrder(ctx, NewOrder("creator", BaseTime), 1)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testCreateDuplicate(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	order := NewOrder("creator", BaseTime)
	require.NoError(t, store.CreateOrder(ctx, order))
	require.ErrorIs(t, store.CreateOrder(ctx, order), storage.ErrConflict)
}

func testSaveVersioning(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	order := NewOrder("creator", BaseTime)
	require.NoError(t, store.CreateOrder(ctx, order))

	order.Status = models.StatusClosed
	v2, err := store.SaveOrder(ctx, order, 1)
	require.NoError(t, err)
	assert.Equal(t, storage.Version(2), v2)

	// A writer still holding version 1 must lose.
	order.Message = "stale"
	_, err = store.SaveOrder(ctx, order, 1)
	require.ErrorIs(t, err, storage.ErrConflict)

	got, version, err := store.LoadOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, v2, version)
	assert.Equal(t, models.StatusClosed, got.Status)
	assert.Equal(t, "lunch at noon", got.Message)

	delivered := BaseTime.Add(3 * time.Hour)
	got.Status = models.StatusDelivered
	got.DeliveredAt = &delivered
	v3, err := store.SaveOrder(ctx, got, version)
	require.NoError(t, err)
	assert.Equal(t, storage.Version(3), v3)

	final, _, err := store.LoadOrder(ctx, order.ID)
	require.NoError(t, err)
	RequireOrderEqual(t, got, final)
}

func testSaveReplacesParticipants(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	order := NewOrder("creator", BaseTime)
	require.NoError(t, store.CreateOrder(ctx, order))

	// Drop the first participant, edit the second and append a third.
	order.Participants = order.Participants[1:]
	order.Participants[0].Items = append(order.Participants[0].Items, models.LineItem{Name: "Bread", UnitPrice: d("2.00"), Quantity: 3})
	order.Participants = append(order.Participants, models.Participant{
		ID:          uuid.New().String(),
		UserID:      "u-3",
		UserName:    "Linus",
		Items:       []models.LineItem{{Name: "Soup", UnitPrice: d("6.00"), Quantity: 1}},
		Subtotal:    d("6.00"),
		FeeShare:    d("2.50"),
		TotalAmount: d("8.50"),
		AmountPaid:  decimal.Zero,
		Change:      decimal.Zero,
		JoinedAt:    BaseTime.Add(5 * time.Minute),
	})
	_, err := store.SaveOrder(ctx, order, 1)
	require.NoError(t, err)

	got, _, err := store.LoadOrder(ctx, order.ID)
	require.NoError(t, err)
	RequireOrderEqual(t, order, got)

	order.Participants = nil
	_, err = store.SaveOrder(ctx, order, 2)
	require.NoError(t, err)
	got, _, err = store.LoadOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Participants)
}

func testConcurrentSaves(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	order := NewOrder("creator", BaseTime)
	require.NoError(t, store.CreateOrder(ctx, order))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := order.Clone()
			o.Message = fmt.Sprintf("writer %d", i)
			_, err := store.SaveOrder(ctx, o, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, storage.ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)

	_, version, err := store.LoadOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.Version(2), version)
}

func testListOrders(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	var ids []string
	for i := range 5 {
		createdBy := "alice"
		if i%2 == 1 {
			createdBy = "bob"
		}
		o := NewOrder(createdBy, BaseTime.Add(time.Duration(i)*time.Minute))
		if i == 4 {
			o.Status = models.StatusClosed
		}
		require.NoError(t, store.CreateOrder(ctx, o))
		ids = append(ids, o.ID)
	}

	all, total, err := store.ListOrders(ctx, storage.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, all, 5)
	assert.Equal(t, ids[4], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[4].ID)
	assert.Len(t, all[0].Participants, 2)

	page, total, err := store.ListOrders(ctx, storage.OrderFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	open, total, err := store.ListOrders(ctx, storage.OrderFilter{Status: models.StatusOpen})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, open, 4)

	bobs, total, err := store.ListOrders(ctx, storage.OrderFilter{CreatedBy: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, o := range bobs {
		assert.Equal(t, "bob", o.CreatedBy)
	}

	aliceClosed, total, err := store.ListOrders(ctx, storage.OrderFilter{CreatedBy: "alice", Status: models.StatusClosed})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, aliceClosed, 1)
	assert.Equal(t, ids[4], aliceClosed[0].ID)
}

func testUserStats(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	_, _, err := store.LoadUserStats(ctx, "u-1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	stats := models.NewUserStatistics("u-1")
	stats.TotalOrders = 1
	stats.TotalSpent = d("24.00")
	stats.MostOrderedItems = []models.ItemStat{{Name: "Pizza", Quantity: 2, TotalSpent: d("20.00")}}
	stats.PaymentHistory = []models.PaymentRecord{{OrderID: "o-1", Amount: d("21.50"), DeliveryFee: d("2.50"), Status: models.PaymentUnpaid}}
	stats.UpdatedAt = BaseTime

	v, err := store.SaveUserStats(ctx, stats, storage.NoVersion)
	require.NoError(t, err)
	assert.Equal(t, storage.Version(1), v)

	// Creating twice conflicts.
	_, err = store.SaveUserStats(ctx, stats, storage.NoVersion)
	require.ErrorIs(t, err, storage.ErrConflict)

	got, v, err := store.LoadUserStats(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, storage.Version(1), v)
	assert.Equal(t, 1, got.TotalOrders)
	assertDecimal(t, "total spent", d("24.00"), got.TotalSpent)
	require.Len(t, got.MostOrderedItems, 1)
	assert.Equal(t, 2, got.MostOrderedItems[0].Quantity)
	require.Len(t, got.PaymentHistory, 1)
	assert.Equal(t, "o-1", got.PaymentHistory[0].OrderID)

	got.TotalOrders = 2
	v2, err := store.SaveUserStats(ctx, got, v)
	require.NoError(t, err)
	assert.Equal(t, storage.Version(2), v2)

	_, err = store.SaveUserStats(ctx, got, v)
	require.ErrorIs(t, err, storage.ErrConflict)
}
