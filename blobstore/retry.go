package blobstore

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Default retry policy for transient storage failures.
const (
	DefaultRetryAttempts   = 3
	DefaultRetryBackoff    = 100 * time.Millisecond
	DefaultRetryMaxBackoff = 2 * time.Second
)

// RetryOptions configures a RetryStore.
type RetryOptions struct {
	// MaxAttempts bounds attempts per operation, including the first.
	MaxAttempts int

	// InitialBackoff is the delay after the first failure, doubling per
	// attempt up to MaxBackoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the per-attempt delay.
	MaxBackoff time.Duration

	// Limiter optionally throttles storage calls. Nil means unlimited.
	Limiter *rate.Limiter
}

// RetryStore wraps a Store with bounded retries for transient failures and
// optional request throttling. Not-found results and context cancellation are
// never retried.
type RetryStore struct {
	inner   Store
	opts    RetryOptions
	limiter *rate.Limiter
}

// NewRetryStore creates a retrying wrapper around inner.
func NewRetryStore(inner Store, optFns ...func(*RetryOptions)) *RetryStore {
	opts := RetryOptions{
		MaxAttempts:    DefaultRetryAttempts,
		InitialBackoff: DefaultRetryBackoff,
		MaxBackoff:     DefaultRetryMaxBackoff,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultRetryAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultRetryBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = DefaultRetryMaxBackoff
	}
	return &RetryStore{inner: inner, opts: opts, limiter: opts.Limiter}
}

func (s *RetryStore) do(ctx context.Context, op func() error) error {
	backoff := s.opts.InitialBackoff

	var err error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if s.limiter != nil {
			if lerr := s.limiter.Wait(ctx); lerr != nil {
				return lerr
			}
		}

		err = op()
		if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return err
		}
		if attempt == s.opts.MaxAttempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > s.opts.MaxBackoff {
			backoff = s.opts.MaxBackoff
		}
	}
	return err
}

// Get reads a blob in full.
func (s *RetryStore) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.do(ctx, func() error {
		var err error
		data, err = s.inner.Get(ctx, name)
		return err
	})
	return data, err
}

// Put writes a blob.
func (s *RetryStore) Put(ctx context.Context, name string, data []byte) error {
	return s.do(ctx, func() error {
		return s.inner.Put(ctx, name, data)
	})
}

// Delete removes a blob.
func (s *RetryStore) Delete(ctx context.Context, name string) error {
	return s.do(ctx, func() error {
		return s.inner.Delete(ctx, name)
	})
}

// Exists reports whether a blob is present.
func (s *RetryStore) Exists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := s.do(ctx, func() error {
		var err error
		ok, err = s.inner.Exists(ctx, name)
		return err
	})
	return ok, err
}

// Stat returns a blob's metadata.
func (s *RetryStore) Stat(ctx context.Context, name string) (FileInfo, error) {
	var info FileInfo
	err := s.do(ctx, func() error {
		var err error
		info, err = s.inner.Stat(ctx, name)
		return err
	})
	return info, err
}

// List returns all blob names with the given prefix.
func (s *RetryStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := s.do(ctx, func() error {
		var err error
		names, err = s.inner.List(ctx, prefix)
		return err
	})
	return names, err
}
