package masterindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/masterindex/kv"
)

// Options configures an Index.
type Options struct {
	// Key is the key-value store key the state is persisted under.
	Key string

	// HistoryLimit caps the modification history per collection.
	HistoryLimit int

	// LockTimeout is the default advisory lock timeout for new locks.
	LockTimeout time.Duration
}

// Index is the state machine over the persisted master index. It loads the
// state lazily on first access and persists after every structural change.
// Safe for concurrent use within one process; cross-process safety comes from
// the advisory locks and modification tokens, not from this mutex.
type Index struct {
	store        kv.Store
	key          string
	historyLimit int
	lockTimeout  time.Duration

	mu    sync.Mutex
	state *State
}

// New creates an Index over the given durable key-value store.
func New(store kv.Store, optFns ...func(*Options)) *Index {
	opts := Options{
		Key:          DefaultKey,
		HistoryLimit: DefaultHistoryLimit,
		LockTimeout:  DefaultLockTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	return &Index{
		store:        store,
		key:          opts.Key,
		historyLimit: opts.HistoryLimit,
		lockTimeout:  opts.LockTimeout,
	}
}

// load fetches and caches the state. A missing key creates a fresh state in
// memory; it is persisted on the first structural change. Callers must hold
// i.mu.
func (i *Index) load(ctx context.Context) error {
	if i.state != nil {
		return nil
	}

	raw, err := i.store.Get(ctx, i.key)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			i.state = newState()
			return nil
		}
		return fmt.Errorf("failed to load master index: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return &CorruptError{cause: err}
	}
	if state.Collections == nil {
		state.Collections = make(map[string]*CollectionMetadata)
	}
	if state.ModificationHistory == nil {
		state.ModificationHistory = make(map[string][]HistoryEntry)
	}
	i.state = &state
	return nil
}

// persist serializes and stores the state. Callers must hold i.mu.
func (i *Index) persist(ctx context.Context) error {
	i.state.Version = CurrentVersion
	i.state.LastUpdated = NewTimestamp(time.Now())

	data, err := json.Marshal(i.state)
	if err != nil {
		return fmt.Errorf("failed to serialize master index: %w", err)
	}
	if err := i.store.Set(ctx, i.key, string(data)); err != nil {
		return fmt.Errorf("failed to persist master index: %w", err)
	}
	return nil
}

// Invalidate drops the cached state so the next access reloads from the
// durable store. Use it when another run may have committed in between.
func (i *Index) Invalidate() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = nil
}

// AddCollection normalizes raw metadata into canonical form and registers it
// under name, overriding any name embedded in the raw map.
func (i *Index) AddCollection(ctx context.Context, name string, raw map[string]any) (CollectionMetadata, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return CollectionMetadata{}, err
	}

	meta := i.normalize(name, raw, nil)
	i.state.Collections[name] = &meta
	i.appendHistory(name, HistoryOpAdd, meta)

	if err := i.persist(ctx); err != nil {
		return CollectionMetadata{}, err
	}
	return meta.Clone(), nil
}

// UpdateCollectionMetadata merges changes over the stored metadata without
// mutating the previous record in place.
func (i *Index) UpdateCollectionMetadata(ctx context.Context, name string, changes map[string]any) (CollectionMetadata, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return CollectionMetadata{}, err
	}

	current, ok := i.state.Collections[name]
	if !ok {
		return CollectionMetadata{}, &CollectionNotFoundError{Collection: name}
	}

	merged := i.normalize(name, changes, current)
	i.state.Collections[name] = &merged
	i.appendHistory(name, HistoryOpUpdateMetadata, merged)

	if err := i.persist(ctx); err != nil {
		return CollectionMetadata{}, err
	}
	return merged.Clone(), nil
}

// RemoveCollection deletes a collection's record, reporting whether an entry
// existed. The collection's history is retained with a final REMOVE entry.
func (i *Index) RemoveCollection(ctx context.Context, name string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return false, err
	}

	meta, ok := i.state.Collections[name]
	if !ok {
		return false, nil
	}

	delete(i.state.Collections, name)
	i.appendHistory(name, HistoryOpRemove, *meta)

	if err := i.persist(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// GetCollection returns a fresh copy of a collection's metadata.
func (i *Index) GetCollection(ctx context.Context, name string) (CollectionMetadata, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return CollectionMetadata{}, err
	}

	meta, ok := i.state.Collections[name]
	if !ok {
		return CollectionMetadata{}, &CollectionNotFoundError{Collection: name}
	}
	return meta.Clone(), nil
}

// Collections returns fresh copies of all registered collection metadata.
func (i *Index) Collections(ctx context.Context) (map[string]CollectionMetadata, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return nil, err
	}

	out := make(map[string]CollectionMetadata, len(i.state.Collections))
	for name, meta := range i.state.Collections {
		out[name] = meta.Clone()
	}
	return out, nil
}

// History returns a copy of a collection's modification history, oldest first.
func (i *Index) History(ctx context.Context, name string) ([]HistoryEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return nil, err
	}

	entries := i.state.ModificationHistory[name]
	out := make([]HistoryEntry, len(entries))
	for j, e := range entries {
		e.Snapshot = e.Snapshot.Clone()
		out[j] = e
	}
	return out, nil
}

// GenerateModificationToken produces an opaque unique token.
func (i *Index) GenerateModificationToken() string {
	return uuid.NewString()
}

// ValidateModificationToken shape-checks a token. It never checks whether the
// token is current.
func (i *Index) ValidateModificationToken(token string) bool {
	_, err := uuid.Parse(token)
	return err == nil
}

// HasConflict reports whether the caller's view of a collection is stale: the
// collection exists and its current token differs from callerToken. It says
// nothing about what changed.
func (i *Index) HasConflict(ctx context.Context, name, callerToken string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return false, err
	}

	meta, ok := i.state.Collections[name]
	if !ok {
		return false, nil
	}
	return meta.ModificationToken != callerToken, nil
}

// Strategy selects a conflict resolution policy.
type Strategy string

// StrategyLastWriteWins merges the caller's changes over the stored metadata
// and mints a fresh token. It is currently the only strategy.
const StrategyLastWriteWins Strategy = "LAST_WRITE_WINS"

// Resolution is the outcome envelope of ResolveConflict.
type Resolution struct {
	Success  bool
	Strategy Strategy
	Metadata CollectionMetadata
}

// ResolveConflict reconciles a stale caller view with the stored state.
func (i *Index) ResolveConflict(ctx context.Context, name string, changes map[string]any, strategy Strategy) (Resolution, error) {
	if strategy != StrategyLastWriteWins {
		return Resolution{}, fmt.Errorf("unrecognized conflict resolution strategy %q", strategy)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return Resolution{}, err
	}

	current, ok := i.state.Collections[name]
	if !ok {
		return Resolution{}, &CollectionNotFoundError{Collection: name}
	}

	merged := i.normalize(name, changes, current)
	merged.ModificationToken = i.GenerateModificationToken()
	i.state.Collections[name] = &merged
	i.appendHistory(name, HistoryOpResolve, merged)

	if err := i.persist(ctx); err != nil {
		return Resolution{}, err
	}

	return Resolution{
		Success:  true,
		Strategy: strategy,
		Metadata: merged.Clone(),
	}, nil
}

// normalize converts arbitrary raw metadata into canonical form, merging over
// base when present. String and epoch timestamps become instants, the lock
// status is defaulted, and the name always comes from the registry key.
func (i *Index) normalize(name string, raw map[string]any, base *CollectionMetadata) CollectionMetadata {
	now := NewTimestamp(time.Now())

	var meta CollectionMetadata
	if base != nil {
		meta = base.Clone()
	} else {
		meta = CollectionMetadata{
			Created:           now,
			LastUpdated:       now,
			ModificationToken: i.GenerateModificationToken(),
			LockStatus:        LockStatus{LockTimeoutMillis: i.lockTimeout.Milliseconds()},
		}
	}
	meta.Name = name

	for key, value := range raw {
		switch key {
		case "name":
			// The registry key wins over any embedded name.
		case "fileLocator":
			if s, ok := value.(string); ok {
				meta.FileLocator = s
			}
		case "created":
			if t, ok := document.CoerceInstant(value); ok {
				meta.Created = NewTimestamp(t)
			}
		case "lastUpdated":
			if t, ok := document.CoerceInstant(value); ok {
				meta.LastUpdated = NewTimestamp(t)
			}
		case "documentCount":
			if n, ok := document.ToNumber(value); ok && n >= 0 {
				meta.DocumentCount = int(n)
			}
		case "modificationToken":
			if s, ok := value.(string); ok && i.ValidateModificationToken(s) {
				meta.ModificationToken = s
			}
		case "lockStatus":
			if m, ok := value.(map[string]any); ok {
				meta.LockStatus = normalizeLockStatus(m, i.lockTimeout)
			}
		}
	}
	return meta
}

func normalizeLockStatus(raw map[string]any, fallback time.Duration) LockStatus {
	status := LockStatus{LockTimeoutMillis: fallback.Milliseconds()}
	if locked, ok := raw["isLocked"].(bool); ok {
		status.IsLocked = locked
	}
	if by, ok := raw["lockedBy"].(string); ok {
		status.LockedBy = by
	}
	if at, ok := document.CoerceInstant(raw["lockedAt"]); ok {
		ts := NewTimestamp(at)
		status.LockedAt = &ts
	}
	if n, ok := document.ToNumber(raw["lockTimeout"]); ok && n > 0 {
		status.LockTimeoutMillis = int64(n)
	}
	return status
}
