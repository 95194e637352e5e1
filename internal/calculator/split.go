package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/grouporder/internal/models"
)

// SplitFee divides fee into n equal shares in minor units.
// Every share gets floor(fee/n); the remainder is handed out one minor unit at
// a time starting with index 0 (the earliest joiner), so the shares always sum
// to fee exactly. n == 0 returns no shares.
//
// Example: 5.00 over 3 participants -> [1.67, 1.67, 1.66]
func SplitFee(fee decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < 0 {
		return nil, fmt.Errorf("participant count cannot be negative: %d", n)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("delivery fee cannot be negative: %s", fee)
	}
	if !models.IsMinorUnits(fee) {
		return nil, fmt.Errorf("delivery fee %s is not a whole number of minor units", fee)
	}
	if !models.InCentsRange(fee) {
		return nil, fmt.Errorf("delivery fee %s is out of range", fee)
	}
	if n == 0 {
		return nil, nil
	}

	cents := models.ToCents(fee)
	base := cents / int64(n)
	remainder := cents - base*int64(n)

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		share := base
		if int64(i) < remainder {
			share++
		}
		shares[i] = models.FromCents(share)
	}
	return shares, nil
}

// Subtotal returns Σ(unit price × quantity) over items.
func Subtotal(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount())
	}
	return total
}

// Recompute refreshes every derived value on the order: participant subtotals,
// fee shares, totals, paid/change flags and the creator's change. Call it at
// the end of every mutation; nothing else keeps these values fresh.
func Recompute(order *models.GroupOrder) error {
	for i := range order.Participants {
		order.Participants[i].Subtotal = Subtotal(order.Participants[i].Items)
	}

	if len(order.Participants) == 0 {
		order.CreatorChange = decimal.Zero
		return nil
	}

	shares, err := SplitFee(order.DeliveryFee, len(order.Participants))
	if err != nil {
		return fmt.Errorf("failed to split delivery fee: %w", err)
	}

	for i := range order.Participants {
		p := &order.Participants[i]
		p.FeeShare = shares[i]
		p.TotalAmount = p.Subtotal.Add(p.FeeShare)
		settle(p)
	}

	order.CreatorChange = CreatorChange(order)
	return nil
}
