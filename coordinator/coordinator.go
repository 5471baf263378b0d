package coordinator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/docgo/masterindex"
)

// Default lock retry policy.
const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 50 * time.Millisecond
	DefaultMaxBackoff     = time.Second
)

// Options configures a Coordinator.
type Options struct {
	// MaxAttempts bounds lock acquisition attempts per Coordinate call.
	MaxAttempts int

	// InitialBackoff is the delay after the first failed attempt; it doubles
	// per attempt up to MaxBackoff, with jitter.
	InitialBackoff time.Duration

	// MaxBackoff caps the per-attempt delay.
	MaxBackoff time.Duration

	// Logger receives debug-level coordination events. Defaults to discard.
	Logger *slog.Logger
}

// Coordinator serializes operations on one registered collection. It tracks
// the modification token it last observed so a later run's commit is detected
// as a conflict before the callback runs.
type Coordinator struct {
	index      *masterindex.Index
	collection string

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger

	lastToken string
}

// New creates a Coordinator for an already-registered collection. Coordinate
// never creates collections implicitly.
func New(index *masterindex.Index, collection string, optFns ...func(*Options)) *Coordinator {
	opts := Options{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		index:          index,
		collection:     collection,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		logger:         opts.Logger,
	}
}

// Commit tells Coordinate what to write back on success.
type Commit struct {
	// DocumentCount is the collection's new document count. Negative leaves
	// the stored count unchanged.
	DocumentCount int
}

// Callback is the caller's logic. It runs exactly once per Coordinate call,
// always against metadata that reflects the current stored state.
type Callback[T any] func(ctx context.Context, meta masterindex.CollectionMetadata) (T, Commit, error)

// Coordinate runs one logical operation under the collection's advisory lock.
//
// Protocol: require registration, acquire the lock with bounded backoff,
// reconcile a stale token via last-write-wins, invoke the callback, commit a
// fresh token plus metadata on success, and release the lock on both paths.
// The callback's result is returned unchanged.
func Coordinate[T any](ctx context.Context, c *Coordinator, operationName string, fn Callback[T]) (T, error) {
	var zero T

	// No implicit creation: the collection must already be registered.
	meta, err := c.index.GetCollection(ctx, c.collection)
	if err != nil {
		return zero, err
	}

	operationID := uuid.NewString()
	logger := c.logger.With(
		"collection", c.collection,
		"operation", operationName,
		"operation_id", operationID,
	)

	if err := c.acquireLock(ctx, operationID, logger); err != nil {
		return zero, err
	}

	// Another run may have committed between our read and our lock; drop the
	// cached state so the conflict check sees the durable truth.
	c.index.Invalidate()

	meta, err = c.reconcile(ctx, meta, logger)
	if err != nil {
		c.release(ctx, operationID, logger)
		return zero, err
	}

	result, commit, err := fn(ctx, meta)
	if err != nil {
		logger.DebugContext(ctx, "operation failed, releasing without commit", "error", err)
		c.release(ctx, operationID, logger)
		return zero, err
	}

	token := c.index.GenerateModificationToken()
	changes := map[string]any{
		"modificationToken": token,
		"lastUpdated":       time.Now(),
	}
	if commit.DocumentCount >= 0 {
		changes["documentCount"] = commit.DocumentCount
	}

	if _, err := c.index.UpdateCollectionMetadata(ctx, c.collection, changes); err != nil {
		c.release(ctx, operationID, logger)
		return zero, err
	}
	c.lastToken = token

	c.release(ctx, operationID, logger)
	logger.DebugContext(ctx, "operation committed", "token", token)
	return result, nil
}

// acquireLock retries with exponential backoff and jitter, never blocking
// indefinitely: permanent contention surfaces as LockUnavailableError.
func (c *Coordinator) acquireLock(ctx context.Context, operationID string, logger *slog.Logger) error {
	backoff := c.initialBackoff

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		acquired, err := c.index.AcquireCollectionLock(ctx, c.collection, operationID)
		if err != nil {
			return err
		}
		if acquired {
			logger.DebugContext(ctx, "lock acquired", "attempt", attempt)
			return nil
		}
		if attempt == c.maxAttempts {
			break
		}

		delay := backoff + time.Duration(rand.Int64N(int64(backoff)/2+1))
		logger.DebugContext(ctx, "lock busy, backing off", "attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}

	return &LockUnavailableError{Collection: c.collection, Attempts: c.maxAttempts}
}

// reconcile detects a stale token and resolves it last-write-wins, reloading
// authoritative state so the callback never observes a stale view.
func (c *Coordinator) reconcile(ctx context.Context, meta masterindex.CollectionMetadata, logger *slog.Logger) (masterindex.CollectionMetadata, error) {
	if c.lastToken == "" {
		c.lastToken = meta.ModificationToken
		return c.index.GetCollection(ctx, c.collection)
	}

	conflict, err := c.index.HasConflict(ctx, c.collection, c.lastToken)
	if err != nil {
		return masterindex.CollectionMetadata{}, err
	}
	if !conflict {
		return c.index.GetCollection(ctx, c.collection)
	}

	logger.DebugContext(ctx, "stale modification token, resolving", "strategy", masterindex.StrategyLastWriteWins)

	resolution, err := c.index.ResolveConflict(ctx, c.collection, nil, masterindex.StrategyLastWriteWins)
	if err != nil {
		return masterindex.CollectionMetadata{}, err
	}
	c.lastToken = resolution.Metadata.ModificationToken
	return resolution.Metadata, nil
}

// release clears the lock; failures here are logged, not propagated, because
// lazy expiry is the backstop.
func (c *Coordinator) release(ctx context.Context, operationID string, logger *slog.Logger) {
	released, err := c.index.ReleaseCollectionLock(ctx, c.collection, operationID)
	if err != nil {
		logger.WarnContext(ctx, "failed to release lock, relying on expiry", "error", err)
		return
	}
	if !released {
		logger.WarnContext(ctx, "lock held by another operation at release time")
	}
}
