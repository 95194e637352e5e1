// Package orders is the group-order settlement engine.
//
// Every mutating operation is one optimistic read-modify-write against the
// Store: load the order with its version, apply the change, recompute every
// derived value, then save conditioned on the version. A version conflict
// reloads and reapplies, up to MaxSaveAttempts, before surfacing
// apperr.ErrConflict. Per-user statistics follow the same discipline.
package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmynk/grouporder/internal/apperr"
	"github.com/mmynk/grouporder/internal/calculator"
	"github.com/mmynk/grouporder/internal/metrics"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMinLeadTime     = 30 * time.Minute
	DefaultMaxSaveAttempts = 3
)

// statsTimeout bounds a statistics update that runs after an order commit.
const statsTimeout = 5 * time.Second

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID  string
	Name    string
	Room    string
	IsAdmin bool
}

// Options configures an Engine.
type Options struct {
	// MinLeadTime is how far in the future a new order's delivery time must be.
	MinLeadTime time.Duration

	// MaxSaveAttempts bounds the optimistic retry loop.
	MaxSaveAttempts int

	// TopN bounds the favorite restaurant and most ordered item lists.
	TopN int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Engine implements the group order operations on top of a storage.Store.
type Engine struct {
	store       storage.Store
	minLead     time.Duration
	maxAttempts int
	topN        int
	now         func() time.Time
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New creates an Engine backed by store.
func New(store storage.Store, opts Options) *Engine {
	e := &Engine{
		store:       store,
		minLead:     opts.MinLeadTime,
		maxAttempts: opts.MaxSaveAttempts,
		topN:        opts.TopN,
		now:         opts.Now,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	if e.minLead <= 0 {
		e.minLead = DefaultMinLeadTime
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = DefaultMaxSaveAttempts
	}
	if e.topN <= 0 {
		e.topN = calculator.DefaultTopN
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// observe records the outcome of an operation. Use with a named error return:
//
//	defer e.observe("join", &err)
func (e *Engine) observe(operation string, errp *error) {
	e.metrics.RecordOperation(operation, *errp == nil)
}

// mutateOrder runs apply inside the optimistic retry loop and returns the
// saved order. apply sees a fresh copy of the order on every attempt and must
// not have side effects outside it. Derived values are recomputed after apply.
func (e *Engine) mutateOrder(ctx context.Context, orderID string, apply func(order *models.GroupOrder) error) (*models.GroupOrder, error) {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		order, version, err := e.store.LoadOrder(ctx, orderID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("order %s not found", orderID)
		}
		if err != nil {
			return nil, apperr.Unavailable(err, "failed to load order")
		}

		if err := apply(order); err != nil {
			return nil, err
		}
		order.UpdatedAt = e.clock()
		if err := calculator.Recompute(order); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "failed to recompute order")
		}

		_, err = e.store.SaveOrder(ctx, order, version)
		switch {
		case err == nil:
			return order, nil
		case errors.Is(err, storage.ErrConflict):
			e.metrics.IncSaveConflict(metrics.RecordOrder)
			e.logger.Warn("Optimistic save conflict",
				"order_id", orderID,
				"attempt", attempt,
				"max_attempts", e.maxAttempts,
			)
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperr.NotFound("order %s not found", orderID)
		default:
			return nil, apperr.Unavailable(err, "failed to save order")
		}
	}
	return nil, apperr.Conflict("order %s was modified concurrently; gave up after %d attempts", orderID, e.maxAttempts)
}

// mutateStats applies a change to userID's statistics with the same retry
// discipline as orders. When the user has no statistics yet they are created
// if create is set; otherwise the call is a no-op. apply reports whether it
// changed anything worth saving.
func (e *Engine) mutateStats(ctx context.Context, userID string, create bool, apply func(stats *models.UserStatistics) bool) error {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		stats, version, err := e.store.LoadUserStats(ctx, userID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if !create {
				return nil
			}
			stats, version = models.NewUserStatistics(userID), storage.NoVersion
		case err != nil:
			return apperr.Unavailable(err, "failed to load user statistics")
		}

		if !apply(stats) {
			return nil
		}
		stats.UpdatedAt = e.clock()

		_, err = e.store.SaveUserStats(ctx, stats, version)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, storage.ErrConflict):
			e.metrics.IncSaveConflict(metrics.RecordStats)
			e.logger.Warn("Optimistic save conflict",
				"user_id", userID,
				"attempt", attempt,
				"max_attempts", e.maxAttempts,
			)
		default:
			return apperr.Unavailable(err, "failed to save user statistics")
		}
	}
	return apperr.Conflict("statistics for user %s were modified concurrently; gave up after %d attempts", userID, e.maxAttempts)
}

// afterCommit runs a statistics update that follows an order commit. The
// order is already durable, so failures are logged and counted only. The
// update outlives cancellation of ctx and is bounded by statsTimeout instead.
func (e *Engine) afterCommit(ctx context.Context, what, orderID, userID string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		e.metrics.IncStatsFailure()
		e.logger.Error("Statistics update failed after order commit",
			"update", what,
			"order_id", orderID,
			"user_id", userID,
			"error", err,
		)
	}
}

func requireActor(actor Actor) error {
	if actor.UserID == "" {
		return apperr.Authorization("an authenticated user is required")
	}
	return nil
}
