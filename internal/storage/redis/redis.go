// Package redis provides a Redis-backed implementation of the storage.Store interface.
//
// Orders and statistics live in hashes holding a JSON document and a version
// counter. Conditional saves use WATCH on the record key followed by a
// MULTI/EXEC pipeline, so a concurrent writer aborts the transaction.
// Sorted sets scored by creation time index orders for listing.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/grouporder/internal/storage"
)

// Ensure RedisStore implements storage.Store
var _ storage.Store = (*RedisStore)(nil)

// DefaultKeyPrefix namespaces every key the store writes.
const DefaultKeyPrefix = "grouporder"

// Options configures the connection. URL wins over Addr when both are set.
type Options struct {
	URL          string
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// RedisStore implements storage.Store using Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, opts Options) (*RedisStore, error) {
	redisOpts, err := clientOptions(opts)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewFromClient(client, opts.KeyPrefix), nil
}

// NewFromClient wraps an existing client. The store takes ownership and closes it.
func NewFromClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: keyPrefix}
}

func clientOptions(opts Options) (*redis.Options, error) {
	if opts.URL == "" && opts.Addr == "" {
		return nil, errors.New("redis url or address is required")
	}
	var redisOpts *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		redisOpts = parsed
	} else {
		redisOpts = &redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}
	}
	if redisOpts.PoolSize == 0 {
		redisOpts.PoolSize = opts.PoolSize
	}
	if redisOpts.DialTimeout == 0 {
		redisOpts.DialTimeout = opts.DialTimeout
	}
	if redisOpts.ReadTimeout == 0 {
		redisOpts.ReadTimeout = opts.ReadTimeout
	}
	if redisOpts.WriteTimeout == 0 {
		redisOpts.WriteTimeout = opts.WriteTimeout
	}
	return redisOpts, nil
}

// Close shuts down the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping verifies the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(parts ...string) string {
	clean := []string{s.prefix}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}

func (s *RedisStore) orderKey(id string) string {
	return s.key("order", id)
}

func (s *RedisStore) allOrdersKey() string {
	return s.key("orders", "all")
}

func (s *RedisStore) statusIndexKey(status string) string {
	return s.key("orders", "status", status)
}

func (s *RedisStore) creatorIndexKey(userID string) string {
	return s.key("orders", "creator", userID)
}

func (s *RedisStore) statsKey(userID string) string {
	return s.key("stats", userID)
}

func (s *RedisStore) restaurantKey(id string) string {
	return s.key("restaurant", id)
}

func (s *RedisStore) restaurantsKey() string {
	return s.key("restaurants")
}

// txConflict maps an aborted MULTI/EXEC to storage.ErrConflict.
func txConflict(err error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return storage.ErrConflict
	}
	return err
}
