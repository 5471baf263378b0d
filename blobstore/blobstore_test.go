package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docgo/internal/fs"
)

// storeContract exercises the Store behavior shared by every backend.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing blob", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "collections/users", []byte(`{"documents":[]}`)))

		got, err := store.Get(ctx, "collections/users")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"documents":[]}`), got)
	})

	t.Run("put overwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "collections/users", []byte("v2")))

		got, err := store.Get(ctx, "collections/users")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := store.Exists(ctx, "collections/users")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stat", func(t *testing.T) {
		info, err := store.Stat(ctx, "collections/users")
		require.NoError(t, err)
		assert.Equal(t, int64(2), info.Size)
		assert.False(t, info.ModTime.IsZero())

		_, err = store.Stat(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "collections/orders", []byte("o")))
		require.NoError(t, store.Put(ctx, "other/x", []byte("x")))

		names, err := store.List(ctx, "collections/")
		require.NoError(t, err)
		assert.Equal(t, []string{"collections/orders", "collections/users"}, names)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "collections/users"))

		_, err := store.Get(ctx, "collections/users")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting an absent blob is not an error.
		assert.NoError(t, store.Delete(ctx, "collections/users"))
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	storeContract(t, NewLocalStore(t.TempDir()))
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestLocalStoreAtomicPut(t *testing.T) {
	ctx := context.Background()

	t.Run("write failure leaves previous blob intact", func(t *testing.T) {
		faulty := fs.NewFaultyFS(nil)
		store := NewLocalStoreFS(faulty, t.TempDir())

		require.NoError(t, store.Put(ctx, "collections/users", []byte("v1")))

		faulty.AddRule("users", fs.Fault{FailOnWrite: true})
		require.Error(t, store.Put(ctx, "collections/users", []byte("v2")))

		got, err := store.Get(ctx, "collections/users")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)
	})

	t.Run("sync failure leaves previous blob intact", func(t *testing.T) {
		faulty := fs.NewFaultyFS(nil)
		store := NewLocalStoreFS(faulty, t.TempDir())

		require.NoError(t, store.Put(ctx, "b", []byte("v1")))

		faulty.AddRule("b.tmp", fs.Fault{FailOnSync: true})
		require.Error(t, store.Put(ctx, "b", []byte("v2")))

		got, err := store.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)
	})

	t.Run("temp files never listed", func(t *testing.T) {
		faulty := fs.NewFaultyFS(nil)
		store := NewLocalStoreFS(faulty, t.TempDir())

		require.NoError(t, store.Put(ctx, "a", []byte("v")))

		names, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, names)
	})
}

// flakyStore fails every operation until failures is exhausted.
type flakyStore struct {
	Store
	failures int
	calls    int
	err      error
}

func (f *flakyStore) Get(ctx context.Context, name string) ([]byte, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, f.err
	}
	return f.Store.Get(ctx, name)
}

func TestRetryStore(t *testing.T) {
	ctx := context.Background()

	fastRetry := func(o *RetryOptions) {
		o.MaxAttempts = 3
		o.InitialBackoff = 1
		o.MaxBackoff = 2
	}

	t.Run("transient failure retried", func(t *testing.T) {
		inner := NewMemoryStore()
		require.NoError(t, inner.Put(ctx, "k", []byte("v")))

		flaky := &flakyStore{Store: inner, failures: 2, err: assert.AnError}
		store := NewRetryStore(flaky, fastRetry)

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
		assert.Equal(t, 3, flaky.calls)
	})

	t.Run("attempts bounded", func(t *testing.T) {
		flaky := &flakyStore{Store: NewMemoryStore(), failures: 10, err: assert.AnError}
		store := NewRetryStore(flaky, fastRetry)

		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 3, flaky.calls)
	})

	t.Run("not found never retried", func(t *testing.T) {
		flaky := &flakyStore{Store: NewMemoryStore(), err: assert.AnError}
		store := NewRetryStore(flaky, fastRetry)

		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1, flaky.calls)
	})

	t.Run("cancelled context never retried", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		flaky := &flakyStore{Store: NewMemoryStore(), failures: 10, err: assert.AnError}
		store := NewRetryStore(flaky, fastRetry)

		_, err := store.Get(cctx, "k")
		assert.Error(t, err)
		assert.LessOrEqual(t, flaky.calls, 1)
	})

	t.Run("satisfies the store contract", func(t *testing.T) {
		storeContract(t, NewRetryStore(NewMemoryStore(), fastRetry))
	})
}
