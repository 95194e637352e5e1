package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateOrder persists a new order at version 1.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *models.GroupOrder) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM group_orders WHERE id = ?", order.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	if exists > 0 {
		return storage.ErrConflict
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_orders (id, restaurant_id, restaurant_name, created_by, creator_room,
		 delivery_time, delivery_fee_cents, message, status, delivered_at, creator_change_cents,
		 created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		order.ID, order.RestaurantID, order.RestaurantName, order.CreatedBy, order.CreatorRoom,
		toUnix(order.DeliveryTime), models.ToCents(order.DeliveryFee), order.Message, string(order.Status),
		deliveredAtArg(order), models.ToCents(order.CreatorChange),
		toUnix(order.CreatedAt), toUnix(order.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertParticipants(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadOrder retrieves an order with its participants and line items.
func (s *SQLiteStore) LoadOrder(ctx context.Context, id string) (*models.GroupOrder, storage.Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, version, err := loadOrder(ctx, tx, id)
	if err != nil {
		return nil, 0, err
	}
	return order, version, nil
}

// SaveOrder replaces the order if its stored version equals expected.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *models.GroupOrder, expected storage.Version) (storage.Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE group_orders SET restaurant_id = ?, restaurant_name = ?, created_by = ?, creator_room = ?,
		 delivery_time = ?, delivery_fee_cents = ?, message = ?, status = ?, delivered_at = ?,
		 creator_change_cents = ?, created_at = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		order.RestaurantID, order.RestaurantName, order.CreatedBy, order.CreatorRoom,
		toUnix(order.DeliveryTime), models.ToCents(order.DeliveryFee), order.Message, string(order.Status),
		deliveredAtArg(order), models.ToCents(order.CreatorChange), toUnix(order.CreatedAt), toUnix(order.UpdatedAt),
		order.ID, int64(expected),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM group_orders WHERE id = ?", order.ID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("failed to check order: %w", err)
		}
		if exists == 0 {
			return 0, storage.ErrNotFound
		}
		return 0, storage.ErrConflict
	}

	// Line items first; the participants delete would cascade, but only with
	// foreign keys enabled on this connection.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM line_items WHERE participant_id IN (SELECT id FROM participants WHERE order_id = ?)",
		order.ID,
	); err != nil {
		return 0, fmt.Errorf("failed to delete line items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM participants WHERE order_id = ?", order.ID); err != nil {
		return 0, fmt.Errorf("failed to delete participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, order); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return expected + 1, nil
}

// ListOrders returns one page of orders, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*models.GroupOrder, int, error) {
	filter = filter.Normalize()

	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM group_orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM group_orders"+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate orders: %w", err)
	}

	orders := make([]*models.GroupOrder, 0, len(ids))
	for _, id := range ids {
		order, _, err := loadOrder(ctx, tx, id)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	return orders, total, nil
}

func deliveredAtArg(order *models.GroupOrder) any {
	if order.DeliveredAt == nil {
		return nil
	}
	return toUnix(*order.DeliveredAt)
}

func insertParticipants(ctx context.Context, db execer, order *models.GroupOrder) error {
	for i := range order.Participants {
		p := &order.Participants[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		_, err := db.ExecContext(ctx,
			`INSERT INTO participants (id, order_id, position, user_id, user_name, special_instructions,
			 subtotal_cents, fee_share_cents, total_amount_cents, amount_paid_cents, paid, change_cents, joined_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, order.ID, i, p.UserID, p.UserName, p.SpecialInstructions,
			models.ToCents(p.Subtotal), models.ToCents(p.FeeShare), models.ToCents(p.TotalAmount),
			models.ToCents(p.AmountPaid), boolToInt(p.Paid), models.ToCents(p.Change), toUnix(p.JoinedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}

		for j, item := range p.Items {
			_, err = db.ExecContext(ctx,
				`INSERT INTO line_items (participant_id, position, name, unit_price_cents, quantity, note)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				p.ID, j, item.Name, models.ToCents(item.UnitPrice), item.Quantity, item.Note,
			)
			if err != nil {
				return fmt.Errorf("failed to insert line item: %w", err)
			}
		}
	}
	return nil
}

func loadOrder(ctx context.Context, db execer, id string) (*models.GroupOrder, storage.Version, error) {
	order := &models.GroupOrder{Participants: []models.Participant{}}
	var (
		status                             string
		deliveryTime, createdAt, updatedAt int64
		deliveredAt                        sql.NullInt64
		feeCents, changeCents, version     int64
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, restaurant_id, restaurant_name, created_by, creator_room, delivery_time,
		 delivery_fee_cents, message, status, delivered_at, creator_change_cents, created_at, updated_at, version
		 FROM group_orders WHERE id = ?`,
		id,
	).Scan(&order.ID, &order.RestaurantID, &order.RestaurantName, &order.CreatedBy, &order.CreatorRoom,
		&deliveryTime, &feeCents, &order.Message, &status, &deliveredAt, &changeCents,
		&createdAt, &updatedAt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get order: %w", err)
	}

	order.Status = models.Status(status)
	order.DeliveryTime = fromUnix(deliveryTime)
	order.DeliveryFee = models.FromCents(feeCents)
	order.CreatorChange = models.FromCents(changeCents)
	order.CreatedAt = fromUnix(createdAt)
	order.UpdatedAt = fromUnix(updatedAt)
	if deliveredAt.Valid {
		t := fromUnix(deliveredAt.Int64)
		order.DeliveredAt = &t
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, user_name, special_instructions, subtotal_cents, fee_share_cents,
		 total_amount_cents, amount_paid_cents, paid, change_cents, joined_at
		 FROM participants WHERE order_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get participants: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var (
			p                                                  models.Participant
			subtotal, feeShare, total, amountPaid, changeCents int64
			paid                                               int
			joinedAt                                           int64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.UserName, &p.SpecialInstructions,
			&subtotal, &feeShare, &total, &amountPaid, &paid, &changeCents, &joinedAt); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.Subtotal = models.FromCents(subtotal)
		p.FeeShare = models.FromCents(feeShare)
		p.TotalAmount = models.FromCents(total)
		p.AmountPaid = models.FromCents(amountPaid)
		p.Paid = paid != 0
		p.Change = models.FromCents(changeCents)
		p.JoinedAt = fromUnix(joinedAt)
		p.Items = []models.LineItem{}
		index[p.ID] = len(order.Participants)
		order.Participants = append(order.Participants, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate participants: %w", err)
	}

	itemRows, err := db.QueryContext(ctx,
		`SELECT li.participant_id, li.name, li.unit_price_cents, li.quantity, li.note
		 FROM line_items li JOIN participants p ON p.id = li.participant_id
		 WHERE p.order_id = ? ORDER BY li.participant_id, li.position`,
		id,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get line items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			participantID string
			item          models.LineItem
			priceCents    int64
		)
		if err := itemRows.Scan(&participantID, &item.Name, &priceCents, &item.Quantity, &item.Note); err != nil {
			return nil, 0, fmt.Errorf("failed to scan line item: %w", err)
		}
		item.UnitPrice = models.FromCents(priceCents)
		i, ok := index[participantID]
		if !ok {
			continue
		}
		order.Participants[i].Items = append(order.Participants[i].Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate line items: %w", err)
	}

	return order, storage.Version(version), nil
}
