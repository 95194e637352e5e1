package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

const (
	fieldVersion = "version"
	fieldData    = "data"
)

var allStatuses = []models.Status{models.StatusOpen, models.StatusClosed, models.StatusDelivered}

// CreateOrder persists a new order at version 1.
func (s *RedisStore) CreateOrder(ctx context.Context, order *models.GroupOrder) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Participants {
		if order.Participants[i].ID == "" {
			order.Participants[i].ID = uuid.New().String()
		}
	}
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	key := s.orderKey(order.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check order: %w", err)
		}
		if exists > 0 {
			return storage.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldVersion, 1, fieldData, data)
			s.indexOrder(ctx, pipe, order)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return txConflict(err)
	}
	return nil
}

// LoadOrder retrieves an order and its version.
func (s *RedisStore) LoadOrder(ctx context.Context, id string) (*models.GroupOrder, storage.Version, error) {
	return loadOrder(ctx, s.client, s.orderKey(id))
}

// SaveOrder replaces the order if its stored version equals expected.
func (s *RedisStore) SaveOrder(ctx context.Context, order *models.GroupOrder, expected storage.Version) (storage.Version, error) {
	for i := range order.Participants {
		if order.Participants[i].ID == "" {
			order.Participants[i].ID = uuid.New().String()
		}
	}
	data, err := json.Marshal(order)
	if err != nil {
		return 0, fmt.Errorf("failed to encode order: %w", err)
	}

	key := s.orderKey(order.ID)
	next := expected + 1
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read order version: %w", err)
		}
		if storage.Version(current) != expected {
			return storage.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldVersion, int64(next), fieldData, data)
			s.indexOrder(ctx, pipe, order)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return 0, txConflict(err)
	}
	return next, nil
}

// ListOrders returns one page of orders, newest first.
func (s *RedisStore) ListOrders(ctx context.Context, filter storage.OrderFilter) ([]*models.GroupOrder, int, error) {
	filter = filter.Normalize()

	var ids []string
	var total int
	switch {
	case filter.CreatedBy != "" && filter.Status != "":
		// Walk the creator's index and keep the ids present in the status index.
		all, err := s.client.ZRevRange(ctx, s.creatorIndexKey(filter.CreatedBy), 0, -1).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list orders: %w", err)
		}
		matched, err := s.filterByStatus(ctx, all, filter.Status)
		if err != nil {
			return nil, 0, err
		}
		total = len(matched)
		ids = page(matched, filter.Offset, filter.Limit)
	default:
		indexKey := s.allOrdersKey()
		if filter.CreatedBy != "" {
			indexKey = s.creatorIndexKey(filter.CreatedBy)
		} else if filter.Status != "" {
			indexKey = s.statusIndexKey(string(filter.Status))
		}
		n, err := s.client.ZCard(ctx, indexKey).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count orders: %w", err)
		}
		total = int(n)
		start := int64(filter.Offset)
		stop := start + int64(filter.Limit) - 1
		ids, err = s.client.ZRevRange(ctx, indexKey, start, stop).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list orders: %w", err)
		}
	}

	if len(ids) == 0 {
		return []*models.GroupOrder{}, total, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, s.orderKey(id), fieldData)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("failed to load orders: %w", err)
	}

	orders := make([]*models.GroupOrder, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load order: %w", err)
		}
		order := &models.GroupOrder{}
		if err := json.Unmarshal(data, order); err != nil {
			return nil, 0, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, total, nil
}

func (s *RedisStore) filterByStatus(ctx context.Context, ids []string, status models.Status) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.FloatCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.ZScore(ctx, s.statusIndexKey(string(status)), id)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to filter orders: %w", err)
	}
	var matched []string
	for i, cmd := range cmds {
		if cmd.Err() == nil {
			matched = append(matched, ids[i])
		}
	}
	return matched, nil
}

// indexOrder queues the index updates for order on pipe. The status index is
// rewritten on every save since the status may have moved.
func (s *RedisStore) indexOrder(ctx context.Context, pipe redis.Pipeliner, order *models.GroupOrder) {
	member := redis.Z{Score: float64(order.CreatedAt.UnixMicro()), Member: order.ID}
	pipe.ZAdd(ctx, s.allOrdersKey(), member)
	pipe.ZAdd(ctx, s.creatorIndexKey(order.CreatedBy), member)
	for _, st := range allStatuses {
		if st != order.Status {
			pipe.ZRem(ctx, s.statusIndexKey(string(st)), order.ID)
		}
	}
	pipe.ZAdd(ctx, s.statusIndexKey(string(order.Status)), member)
}

func loadOrder(ctx context.Context, c redis.Cmdable, key string) (*models.GroupOrder, storage.Version, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get order: %w", err)
	}
	if len(fields) == 0 {
		return nil, 0, storage.ErrNotFound
	}

	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse order version: %w", err)
	}
	order := &models.GroupOrder{}
	if err := json.Unmarshal([]byte(fields[fieldData]), order); err != nil {
		return nil, 0, fmt.Errorf("failed to decode order: %w", err)
	}
	return order, storage.Version(version), nil
}

func page(ids []string, offset, limit int) []string {
	if offset >= len(ids) {
		return nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end]
}
