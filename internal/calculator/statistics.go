package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/grouporder/internal/models"
)

// DefaultTopN bounds the favorite restaurant and most ordered item lists.
const DefaultTopN = 5

// OrderPlaced describes one successful join for statistics purposes.
type OrderPlaced struct {
	RestaurantID   string
	RestaurantName string
	Items          []models.LineItem
	TotalAmount    decimal.Decimal
}

// RecordOrderPlaced folds one placed order into stats.
//
// Restaurants are matched by ID and items by name. After the upserts each list
// is stable-sorted descending (order count / quantity) and cut to topN, so an
// entry that falls out of the top loses its history.
func RecordOrderPlaced(stats *models.UserStatistics, placed OrderPlaced, topN int) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	stats.TotalOrders++
	stats.TotalSpent = stats.TotalSpent.Add(placed.TotalAmount)

	found := false
	for i := range stats.FavoriteRestaurants {
		r := &stats.FavoriteRestaurants[i]
		if r.RestaurantID == placed.RestaurantID {
			r.OrderCount++
			r.TotalSpent = r.TotalSpent.Add(placed.TotalAmount)
			found = true
			break
		}
	}
	if !found {
		stats.FavoriteRestaurants = append(stats.FavoriteRestaurants, models.RestaurantStat{
			RestaurantID: placed.RestaurantID,
			Name:         placed.RestaurantName,
			OrderCount:   1,
			TotalSpent:   placed.TotalAmount,
		})
	}

	for _, item := range placed.Items {
		found := false
		for i := range stats.MostOrderedItems {
			it := &stats.MostOrderedItems[i]
			if it.Name == item.Name {
				it.Quantity += item.Quantity
				it.TotalSpent = it.TotalSpent.Add(item.Amount())
				found = true
				break
			}
		}
		if !found {
			stats.MostOrderedItems = append(stats.MostOrderedItems, models.ItemStat{
				Name:       item.Name,
				Quantity:   item.Quantity,
				TotalSpent: item.Amount(),
			})
		}
	}

	sort.SliceStable(stats.FavoriteRestaurants, func(i, j int) bool {
		return stats.FavoriteRestaurants[i].OrderCount > stats.FavoriteRestaurants[j].OrderCount
	})
	sort.SliceStable(stats.MostOrderedItems, func(i, j int) bool {
		return stats.MostOrderedItems[i].Quantity > stats.MostOrderedItems[j].Quantity
	})

	if len(stats.FavoriteRestaurants) > topN {
		stats.FavoriteRestaurants = stats.FavoriteRestaurants[:topN]
	}
	if len(stats.MostOrderedItems) > topN {
		stats.MostOrderedItems = stats.MostOrderedItems[:topN]
	}
}

// UpsertPaymentRecord replaces the record for rec.OrderID or appends it.
func UpsertPaymentRecord(stats *models.UserStatistics, rec models.PaymentRecord) {
	for i := range stats.PaymentHistory {
		if stats.PaymentHistory[i].OrderID == rec.OrderID {
			stats.PaymentHistory[i] = rec
			return
		}
	}
	stats.PaymentHistory = append(stats.PaymentHistory, rec)
}

// MarkPayment refreshes the user's record for the participant's order from its
// current settlement state. It reports false if the user has no record for orderID.
func MarkPayment(stats *models.UserStatistics, orderID string, p models.Participant, now time.Time) bool {
	for i := range stats.PaymentHistory {
		rec := &stats.PaymentHistory[i]
		if rec.OrderID != orderID {
			continue
		}
		rec.Amount = p.Subtotal
		rec.DeliveryFee = p.FeeShare
		if p.Paid {
			rec.Status = models.PaymentPaid
			at := now
			rec.PaidAt = &at
		} else {
			rec.Status = models.PaymentUnpaid
			rec.PaidAt = nil
		}
		return true
	}
	return false
}

// RemovePaymentRecord drops the record for orderID. It reports whether one existed.
func RemovePaymentRecord(stats *models.UserStatistics, orderID string) bool {
	for i := range stats.PaymentHistory {
		if stats.PaymentHistory[i].OrderID == orderID {
			stats.PaymentHistory = append(stats.PaymentHistory[:i], stats.PaymentHistory[i+1:]...)
			return true
		}
	}
	return false
}
