package docgo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/docgo/blobstore"
	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/coordinator"
	"github.com/hupe1980/docgo/masterindex"
	"github.com/hupe1980/docgo/masterindex/kv"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/update"
)

// DB is a handle over one database: a blob store holding collection bundles
// and a master index in a durable key-value store. A DB carries no document
// state of its own; independent runs against the same stores coordinate
// through advisory locks and modification tokens.
type DB struct {
	blobs  blobstore.Store
	index  *masterindex.Index
	codec  codec.Codec
	logger *Logger
	opts   options

	mu          sync.Mutex
	collections map[string]*Collection
}

// Open connects a DB to its two durable stores. It validates the stored
// master index eagerly so a corrupt state fails here instead of on first use.
func Open(ctx context.Context, blobs blobstore.Store, store kv.Store, optFns ...Option) (*DB, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("key-value store must not be nil")
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	index := masterindex.New(store, func(o *masterindex.Options) {
		o.Key = opts.masterIndexKey
		o.HistoryLimit = opts.historyLimit
		o.LockTimeout = opts.lockTimeout
	})

	db := &DB{
		blobs:       blobs,
		index:       index,
		codec:       opts.codec,
		logger:      opts.logger,
		opts:        opts,
		collections: make(map[string]*Collection),
	}

	if _, err := index.Collections(ctx); err != nil {
		return nil, translateError(err)
	}

	db.logger.DebugContext(ctx, "database opened",
		"master_index_key", opts.masterIndexKey,
		"codec", opts.codec.Name(),
	)
	return db, nil
}

// Index exposes the master index for inspection (history, lock state).
func (db *DB) Index() *masterindex.Index {
	return db.index
}

// CreateCollection registers a new collection and stores its initial empty
// bundle.
func (db *DB) CreateCollection(ctx context.Context, name string) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}

	db.index.Invalidate()
	if _, err := db.index.GetCollection(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrCollectionExists, name)
	} else if translated := translateError(err); !isCollectionNotFound(translated) {
		return nil, translated
	}

	locator, err := db.createBundle(ctx, name)
	if err != nil {
		return nil, translateError(err)
	}

	if _, err := db.index.AddCollection(ctx, name, map[string]any{
		"fileLocator":   locator,
		"documentCount": 0,
	}); err != nil {
		return nil, translateError(err)
	}

	db.logger.InfoContext(ctx, "collection created", "collection", name, "locator", locator)
	return db.Collection(name), nil
}

// DropCollection removes a collection's registration and its bundle,
// reporting whether the collection existed. Its modification history is
// retained in the master index.
func (db *DB) DropCollection(ctx context.Context, name string) (bool, error) {
	db.index.Invalidate()
	meta, err := db.index.GetCollection(ctx, name)
	if err != nil {
		if translated := translateError(err); isCollectionNotFound(translated) {
			return false, nil
		}
		return false, translateError(err)
	}

	existed, err := db.index.RemoveCollection(ctx, name)
	if err != nil {
		return false, translateError(err)
	}
	if err := db.blobs.Delete(ctx, meta.FileLocator); err != nil {
		// The registration is already gone; an orphaned bundle is only wasted
		// space, so report the failure without undoing the removal.
		db.logger.WarnContext(ctx, "failed to delete collection bundle",
			"collection", name, "locator", meta.FileLocator, "error", err)
	}

	db.mu.Lock()
	delete(db.collections, name)
	db.mu.Unlock()

	db.logger.InfoContext(ctx, "collection dropped", "collection", name)
	return existed, nil
}

// Collection returns a handle for a collection. The handle is cheap and
// cached; it does not check registration, which is verified per operation.
func (db *DB) Collection(name string) *Collection {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c, ok := db.collections[name]; ok {
		return c
	}

	c := &Collection{
		db:   db,
		name: name,
		coord: coordinator.New(db.index, name, func(o *coordinator.Options) {
			o.MaxAttempts = db.opts.lockMaxAttempts
			o.InitialBackoff = db.opts.lockInitialBackoff
			o.MaxBackoff = db.opts.lockMaxBackoff
			o.Logger = db.logger.Logger
		}),
		query: query.New(func(o *query.Options) {
			o.MaxDepth = db.opts.maxQueryDepth
		}),
		update: update.New(),
	}
	db.collections[name] = c
	return c
}

// ListCollections returns the registered collection names, sorted.
func (db *DB) ListCollections(ctx context.Context) ([]string, error) {
	db.index.Invalidate()
	metas, err := db.index.Collections(ctx)
	if err != nil {
		return nil, translateError(err)
	}

	names := make([]string, 0, len(metas))
	for name := range metas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CollectionStats describes one collection's footprint.
type CollectionStats struct {
	Name          string
	DocumentCount int
	SizeBytes     int64
	LastUpdated   time.Time
}

// Stats gathers per-collection statistics, fetching bundle sizes
// concurrently.
func (db *DB) Stats(ctx context.Context) ([]CollectionStats, error) {
	db.index.Invalidate()
	metas, err := db.index.Collections(ctx)
	if err != nil {
		return nil, translateError(err)
	}

	names := make([]string, 0, len(metas))
	for name := range metas {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := make([]CollectionStats, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		meta := metas[name]
		g.Go(func() error {
			s := CollectionStats{
				Name:          name,
				DocumentCount: meta.DocumentCount,
				LastUpdated:   meta.LastUpdated.Time,
			}
			info, err := db.blobs.Stat(ctx, meta.FileLocator)
			if err == nil {
				s.SizeBytes = info.Size
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, translateError(err)
	}
	return stats, nil
}

// CleanupExpiredLocks sweeps all collections for expired advisory locks and
// reports whether any were released.
func (db *DB) CleanupExpiredLocks(ctx context.Context) (bool, error) {
	db.index.Invalidate()
	changed, err := db.index.CleanupExpiredCollectionLocks(ctx)
	if err != nil {
		return false, translateError(err)
	}
	if changed {
		db.logger.InfoContext(ctx, "expired locks released")
	}
	return changed, nil
}
