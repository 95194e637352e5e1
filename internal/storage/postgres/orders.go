package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const orderColumns = `id, restaurant_id, restaurant_name, created_by, creator_room, delivery_time,
	delivery_fee_cents, message, status, delivered_at, creator_change_cents, created_at, updated_at, version`

// CreateOrder persists a new order at version 1.
func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.GroupOrder) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO group_orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
		 ON CONFLICT (id) DO NOTHING`,
		order.ID, order.RestaurantID, order.RestaurantName, order.CreatedBy, order.CreatorRoom,
		order.DeliveryTime, models.ToCents(order.DeliveryFee), order.Message, string(order.Status),
		order.DeliveredAt, models.ToCents(order.CreatorChange), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConflict
	}

	if err := insertParticipants(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadOrder retrieves an order with its participants and line items.
func (s *PostgresStore) LoadOrder(ctx context.Context, id string) (*models.GroupOrder, storage.Version, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	return loadOrder(ctx, tx, id)
}

// SaveOrder replaces the order if its stored version equals expected.
func (s *PostgresStore) SaveOrder(ctx context.Context, order *models.GroupOrder, expected storage.Version) (storage.Version, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE group_orders SET restaurant_id = $1, restaurant_name = $2, created_by = $3, creator_room = $4,
		 delivery_time = $5, delivery_fee_cents = $6, message = $7, status = $8, delivered_at = $9,
		 creator_change_cents = $10, created_at = $11, updated_at = $12, version = version + 1
		 WHERE id = $13 AND version = $14`,
		order.RestaurantID, order.RestaurantName, order.CreatedBy, order.CreatorRoom,
		order.DeliveryTime, models.ToCents(order.DeliveryFee), order.Message, string(order.Status),
		order.DeliveredAt, models.ToCents(order.CreatorChange), order.CreatedAt, order.UpdatedAt,
		order.ID, int64(expected),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM group_orders WHERE id = $1)", order.ID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("failed to check order: %w", err)
		}
		if !exists {
			return 0, storage.ErrNotFound
		}
		return 0, storage.ErrConflict
	}

	if _, err := tx.Exec(ctx, "DELETE FROM participants WHERE order_id = $1", order.ID); err != nil {
		return 0, fmt.Errorf("failed to delete participants: %w", err)
	}
	if err := insertParticipants(ctx, tx, order); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return expected + 1, nil
}

// ListOrders returns one page of orders, newest first.
func (s *PostgresStore) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*models.GroupOrder, int, error) {
	filter = filter.Normalize()

	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conds = append(conds, fmt.Sprintf("created_by = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM group_orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	pageArgs := append(args, filter.Limit, filter.Offset)
	rows, err := tx.Query(ctx,
		fmt.Sprintf("SELECT id FROM group_orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
			where, len(args)+1, len(args)+2),
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, 0, fmt.Errorf("failed to collect order ids: %w", err)
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

func insertParticipants(ctx context.Context, q querier, order *models.GroupOrder) error {
	if len(order.Participants) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range order.Participants {
		p := &order.Participants[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		batch.Queue(
			`INSERT INTO participants (id, order_id, position, user_id, user_name, special_instructions,
			 subtotal_cents, fee_share_cents, total_amount_cents, amount_paid_cents, paid, change_cents, joined_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.ID, order.ID, i, p.UserID, p.UserName, p.SpecialInstructions,
			models.ToCents(p.Subtotal), models.ToCents(p.FeeShare), models.ToCents(p.TotalAmount),
			models.ToCents(p.AmountPaid), p.Paid, models.ToCents(p.Change), p.JoinedAt,
		)
		for j, item := range p.Items {
			batch.Queue(
				`INSERT INTO line_items (participant_id, position, name, unit_price_cents, quantity, note)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				p.ID, j, item.Name, models.ToCents(item.UnitPrice), item.Quantity, item.Note,
			)
		}
	}

	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert participants: %w", err)
	}
	return nil
}

func loadOrder(ctx context.Context, q querier, id string) (*models.GroupOrder, storage.Version, error) {
	order := &models.GroupOrder{Participants: []models.Participant{}}
	var (
		status                string
		deliveredAt           *time.Time
		feeCents, changeCents int64
		version               int64
	)
	err := q.QueryRow(ctx, "SELECT "+orderColumns+" FROM group_orders WHERE id = $1", id).Scan(
		&order.ID, &order.RestaurantID, &order.RestaurantName, &order.CreatedBy, &order.CreatorRoom,
		&order.DeliveryTime, &feeCents, &order.Message, &status, &deliveredAt, &changeCents,
		&order.CreatedAt, &order.UpdatedAt, &version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get order: %w", err)
	}

	order.Status = models.Status(status)
	order.DeliveryFee = models.FromCents(feeCents)
	order.CreatorChange = models.FromCents(changeCents)
	order.DeliveryTime = order.DeliveryTime.UTC()
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	if deliveredAt != nil {
		t := deliveredAt.UTC()
		order.DeliveredAt = &t
	}

	rows, err := q.Query(ctx,
		`SELECT id, user_id, user_name, special_instructions, subtotal_cents, fee_share_cents,
		 total_amount_cents, amount_paid_cents, paid, change_cents, joined_at
		 FROM participants WHERE order_id = $1 ORDER BY position`,
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
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.UserName, &p.SpecialInstructions,
			&subtotal, &feeShare, &total, &amountPaid, &p.Paid, &changeCents, &p.JoinedAt); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.Subtotal = models.FromCents(subtotal)
		p.FeeShare = models.FromCents(feeShare)
		p.TotalAmount = models.FromCents(total)
		p.AmountPaid = models.FromCents(amountPaid)
		p.Change = models.FromCents(changeCents)
		p.JoinedAt = p.JoinedAt.UTC()
		p.Items = []models.LineItem{}
		index[p.ID] = len(order.Participants)
		order.Participants = append(order.Participants, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate participants: %w", err)
	}

	itemRows, err := q.Query(ctx,
		`SELECT li.participant_id, li.name, li.unit_price_cents, li.quantity, li.note
		 FROM line_items li JOIN participants p ON p.id = li.participant_id
		 WHERE p.order_id = $1 ORDER BY li.participant_id, li.position`,
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
		if i, ok := index[participantID]; ok {
			order.Participants[i].Items = append(order.Participants[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate line items: %w", err)
	}

	return order, storage.Version(version), nil
}
