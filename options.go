package docgo

import (
	"time"

	"github.com/hupe1980/docgo/codec"
	"github.com/hupe1980/docgo/coordinator"
	"github.com/hupe1980/docgo/masterindex"
	"github.com/hupe1980/docgo/query"
)

type options struct {
	codec          codec.Codec
	logger         *Logger
	masterIndexKey string
	historyLimit   int
	lockTimeout    time.Duration
	maxQueryDepth  int

	lockMaxAttempts    int
	lockInitialBackoff time.Duration
	lockMaxBackoff     time.Duration
}

// Option configures Open behavior.
type Option func(*options)

func defaultOptions() options {
	return options{
		codec:              codec.Default,
		logger:             NoopLogger(),
		masterIndexKey:     masterindex.DefaultKey,
		historyLimit:       masterindex.DefaultHistoryLimit,
		lockTimeout:        masterindex.DefaultLockTimeout,
		maxQueryDepth:      query.DefaultMaxDepth,
		lockMaxAttempts:    coordinator.DefaultMaxAttempts,
		lockInitialBackoff: coordinator.DefaultInitialBackoff,
		lockMaxBackoff:     coordinator.DefaultMaxBackoff,
	}
}

// WithCodec configures the codec used for collection bundles.
//
// If nil is passed, codec.Default is used. Changing the codec of an existing
// database is a breaking change for its persisted bundles.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging. Pass nil to disable.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMasterIndexKey overrides the key-value store key holding the master
// index. All runs sharing a database must agree on it.
func WithMasterIndexKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.masterIndexKey = key
		}
	}
}

// WithHistoryLimit caps the modification history kept per collection.
func WithHistoryLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.historyLimit = limit
		}
	}
}

// WithLockTimeout sets how long an advisory lock is honored without a
// release. Expiry is observed lazily at the next lock-sensitive operation.
func WithLockTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.lockTimeout = timeout
		}
	}
}

// WithMaxQueryDepth bounds the nesting depth of logical query operators.
func WithMaxQueryDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxQueryDepth = depth
		}
	}
}

// WithLockRetry tunes lock acquisition: attempts per operation and the
// exponential backoff window between them.
func WithLockRetry(maxAttempts int, initialBackoff, maxBackoff time.Duration) Option {
	return func(o *options) {
		if maxAttempts > 0 {
			o.lockMaxAttempts = maxAttempts
		}
		if initialBackoff > 0 {
			o.lockInitialBackoff = initialBackoff
		}
		if maxBackoff >= initialBackoff {
			o.lockMaxBackoff = maxBackoff
		}
	}
}
