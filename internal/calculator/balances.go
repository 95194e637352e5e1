package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/grouporder/internal/models"
)

// ApplyPayment overwrites the amount participant i has paid and refreshes the
// settlement fields. Calling it twice with the same amount yields the same state.
func ApplyPayment(order *models.GroupOrder, i int, amountPaid decimal.Decimal) error {
	if i < 0 || i >= len(order.Participants) {
		return fmt.Errorf("participant index out of range: %d", i)
	}
	if amountPaid.IsNegative() {
		return fmt.Errorf("amount paid cannot be negative: %s", amountPaid)
	}

	p := &order.Participants[i]
	p.AmountPaid = amountPaid
	settle(p)

	order.CreatorChange = CreatorChange(order)
	return nil
}

// settle derives Paid and Change from AmountPaid and TotalAmount.
func settle(p *models.Participant) {
	p.Paid = p.AmountPaid.GreaterThanOrEqual(p.TotalAmount)
	p.Change = decimal.Max(decimal.Zero, p.AmountPaid.Sub(p.TotalAmount))
}

// CreatorChange returns Σ amount paid − (Σ subtotal + delivery fee).
// An order without participants has nothing to collect and returns zero.
func CreatorChange(order *models.GroupOrder) decimal.Decimal {
	if len(order.Participants) == 0 {
		return decimal.Zero
	}
	paid := decimal.Zero
	owed := order.DeliveryFee
	for _, p := range order.Participants {
		paid = paid.Add(p.AmountPaid)
		owed = owed.Add(p.Subtotal)
	}
	return paid.Sub(owed)
}

// Summarize aggregates settlement figures across all participants.
func Summarize(order *models.GroupOrder) models.OrderSummary {
	summary := models.OrderSummary{
		ParticipantCount: len(order.Participants),
		Subtotal:         decimal.Zero,
		FeeShares:        decimal.Zero,
		Total:            decimal.Zero,
		TotalAmountPaid:  decimal.Zero,
		TotalChange:      decimal.Zero,
		AllPaid:          true,
	}
	for _, p := range order.Participants {
		summary.Subtotal = summary.Subtotal.Add(p.Subtotal)
		summary.FeeShares = summary.FeeShares.Add(p.FeeShare)
		summary.Total = summary.Total.Add(p.TotalAmount)
		summary.TotalAmountPaid = summary.TotalAmountPaid.Add(p.AmountPaid)
		summary.TotalChange = summary.TotalChange.Add(p.Change)
		if !p.Paid {
			summary.AllPaid = false
		}
	}
	return summary
}

// Balances lists, per participant, what is still owed to the creator and what
// change the creator owes back. Participants are returned in join order.
func Balances(order *models.GroupOrder) []models.Balance {
	balances := make([]models.Balance, 0, len(order.Participants))
	for _, p := range order.Participants {
		balances = append(balances, models.Balance{
			ParticipantID: p.ID,
			UserID:        p.UserID,
			Outstanding:   decimal.Max(decimal.Zero, p.TotalAmount.Sub(p.AmountPaid)),
			ChangeDue:     p.Change,
		})
	}
	return balances
}
