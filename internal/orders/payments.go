package orders

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmynk/grouporder/internal/apperr"
	"github.com/mmynk/grouporder/internal/calculator"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// RecordPayment sets what a participant has paid the creator. The amount
// overwrites any earlier one, so repeating a call is harmless. Creator only.
func (e *Engine) RecordPayment(ctx context.Context, actor Actor, orderID, participantID string, amountPaid decimal.Decimal) (_ *models.GroupOrder, err error) {
	defer e.observe("record_payment", &err)

	if err := requireActor(actor); err != nil {
		return nil, err
	}

	order, err := e.mutateOrder(ctx, orderID, func(order *models.GroupOrder) error {
		if !order.IsCreator(actor.UserID) {
			return apperr.Authorization("only the order creator can record payments")
		}
		if err := validateMoney("amount_paid", amountPaid); err != nil {
			return err
		}
		i := order.FindParticipant(participantID)
		if i < 0 {
			return apperr.NotFound("participant %s not found in order %s", participantID, orderID)
		}
		return calculator.ApplyPayment(order, i, amountPaid)
	})
	if err != nil {
		return nil, err
	}

	p := order.Participants[order.FindParticipant(participantID)]
	e.logger.Info("Payment recorded",
		"order_id", order.ID,
		"participant_id", p.ID,
		"user_id", p.UserID,
		"amount_paid", p.AmountPaid.StringFixed(2),
		"paid", p.Paid,
		"change", p.Change.StringFixed(2),
		"creator_change", order.CreatorChange.StringFixed(2),
	)

	paidAt := e.clock()
	e.afterCommit(ctx, "payment_status", order.ID, p.UserID, func(ctx context.Context) error {
		return e.mutateStats(ctx, p.UserID, false, func(stats *models.UserStatistics) bool {
			if !calculator.MarkPayment(stats, order.ID, p, paidAt) {
				calculator.UpsertPaymentRecord(stats, models.PaymentRecord{
					OrderID:        order.ID,
					RestaurantName: order.RestaurantName,
				})
				calculator.MarkPayment(stats, order.ID, p, paidAt)
			}
			return true
		})
	})

	return order, nil
}

// GetUserStatistics returns a user's statistics and payment history. Users may
// read their own; reading anyone else's requires admin. An empty userID means
// the actor.
func (e *Engine) GetUserStatistics(ctx context.Context, actor Actor, userID string) (_ *models.UserStatistics, err error) {
	defer e.observe("get_stats", &err)

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if userID == "" {
		userID = actor.UserID
	}
	if userID != actor.UserID && !actor.IsAdmin {
		return nil, apperr.Authorization("only admins can read another user's statistics")
	}

	stats, _, err := e.store.LoadUserStats(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("no statistics for user %s", userID)
	}
	if err != nil {
		return nil, apperr.Unavailable(err, "failed to load user statistics")
	}
	return stats, nil
}
