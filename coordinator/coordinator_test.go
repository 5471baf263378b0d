package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docgo/masterindex"
	"github.com/hupe1980/docgo/masterindex/kv"
)

func setupIndex(t *testing.T, optFns ...func(*masterindex.Options)) *masterindex.Index {
	t.Helper()
	idx := masterindex.New(kv.NewMemory(), optFns...)
	_, err := idx.AddCollection(context.Background(), "users", map[string]any{
		"fileLocator":   "collections/users",
		"documentCount": 0,
	})
	require.NoError(t, err)
	return idx
}

func TestCoordinateCommit(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)
	coord := New(idx, "users")

	before, err := idx.GetCollection(ctx, "users")
	require.NoError(t, err)

	calls := 0
	got, err := Coordinate(ctx, coord, "insertOne",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (string, Commit, error) {
			calls++
			assert.Equal(t, "users", meta.Name)
			return "doc-1", Commit{DocumentCount: 1}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got)
	assert.Equal(t, 1, calls)

	after, err := idx.GetCollection(ctx, "users")
	require.NoError(t, err)

	assert.Equal(t, 1, after.DocumentCount)
	assert.NotEqual(t, before.ModificationToken, after.ModificationToken)
	assert.False(t, after.LockStatus.IsLocked)
}

func TestCoordinateNegativeCountLeavesStored(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)
	coord := New(idx, "users")

	_, err := Coordinate(ctx, coord, "touch",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (struct{}, Commit, error) {
			return struct{}{}, Commit{DocumentCount: 5}, nil
		})
	require.NoError(t, err)

	_, err = Coordinate(ctx, coord, "read-modify",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (struct{}, Commit, error) {
			return struct{}{}, Commit{DocumentCount: -1}, nil
		})
	require.NoError(t, err)

	meta, err := idx.GetCollection(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, 5, meta.DocumentCount)
}

func TestCoordinateCallbackError(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)
	coord := New(idx, "users")

	before, err := idx.GetCollection(ctx, "users")
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = Coordinate(ctx, coord, "insertOne",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (string, Commit, error) {
			return "", Commit{}, boom
		})
	assert.ErrorIs(t, err, boom)

	after, err := idx.GetCollection(ctx, "users")
	require.NoError(t, err)

	// No commit, and the lock was released.
	assert.Equal(t, before.ModificationToken, after.ModificationToken)
	assert.False(t, after.LockStatus.IsLocked)
}

func TestCoordinateUnknownCollection(t *testing.T) {
	ctx := context.Background()
	idx := masterindex.New(kv.NewMemory())
	coord := New(idx, "ghost")

	_, err := Coordinate(ctx, coord, "insertOne",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (string, Commit, error) {
			t.Fatal("callback must not run")
			return "", Commit{}, nil
		})

	var nf *masterindex.CollectionNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestCoordinateLockUnavailable(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)

	// Another operation holds the lock and never releases it.
	acquired, err := idx.AcquireCollectionLock(ctx, "users", "hog")
	require.NoError(t, err)
	require.True(t, acquired)

	coord := New(idx, "users", func(o *Options) {
		o.MaxAttempts = 2
		o.InitialBackoff = time.Millisecond
		o.MaxBackoff = 2 * time.Millisecond
	})

	_, err = Coordinate(ctx, coord, "insertOne",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (string, Commit, error) {
			t.Fatal("callback must not run while locked")
			return "", Commit{}, nil
		})

	var lu *LockUnavailableError
	require.ErrorAs(t, err, &lu)
	assert.Equal(t, "users", lu.Collection)
	assert.Equal(t, 2, lu.Attempts)
}

func TestCoordinateWaitsOutContention(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)

	acquired, err := idx.AcquireCollectionLock(ctx, "users", "other")
	require.NoError(t, err)
	require.True(t, acquired)

	coord := New(idx, "users", func(o *Options) {
		o.MaxAttempts = 10
		o.InitialBackoff = 5 * time.Millisecond
		o.MaxBackoff = 10 * time.Millisecond
	})

	done := make(chan error, 1)
	go func() {
		_, err := Coordinate(ctx, coord, "insertOne",
			func(ctx context.Context, meta masterindex.CollectionMetadata) (string, Commit, error) {
				return "ok", Commit{DocumentCount: -1}, nil
			})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	_, err = idx.ReleaseCollectionLock(ctx, "users", "other")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("coordinate did not finish after the lock was released")
	}
}

func TestCoordinateStaleTokenResolves(t *testing.T) {
	ctx := context.Background()
	idx := setupIndex(t)
	coord := New(idx, "users")

	// First operation adopts the current token.
	_, err := Coordinate(ctx, coord, "insertOne",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (string, Commit, error) {
			return "", Commit{DocumentCount: 1}, nil
		})
	require.NoError(t, err)

	// Another run commits behind this coordinator's back.
	otherCoord := New(idx, "users")
	_, err = Coordinate(ctx, otherCoord, "insertOne",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (string, Commit, error) {
			return "", Commit{DocumentCount: 2}, nil
		})
	require.NoError(t, err)

	// The stale coordinator resolves last-write-wins, sees the fresh state,
	// and its callback still runs exactly once.
	calls := 0
	_, err = Coordinate(ctx, coord, "updateOne",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (string, Commit, error) {
			calls++
			assert.Equal(t, 2, meta.DocumentCount)
			return "", Commit{DocumentCount: -1}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	history, err := idx.History(ctx, "users")
	require.NoError(t, err)

	ops := make([]string, 0, len(history))
	for _, e := range history {
		ops = append(ops, e.Operation)
	}
	assert.Contains(t, ops, masterindex.HistoryOpResolve)
}

func TestCoordinateContextCancelledDuringBackoff(t *testing.T) {
	idx := setupIndex(t)

	acquired, err := idx.AcquireCollectionLock(context.Background(), "users", "hog")
	require.NoError(t, err)
	require.True(t, acquired)

	coord := New(idx, "users", func(o *Options) {
		o.MaxAttempts = 100
		o.InitialBackoff = 50 * time.Millisecond
		o.MaxBackoff = 100 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = Coordinate(ctx, coord, "insertOne",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (string, Commit, error) {
			return "", Commit{}, nil
		})
	assert.ErrorIs(t, err, context.Canceled)
}
