package masterindex

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/docgo/document"
)

const (
	// CurrentVersion is the schema version of the persisted state. The JSON
	// property names below are a compatibility surface: any future reader of
	// the same durable key must deserialize them identically.
	CurrentVersion = 1

	// DefaultHistoryLimit caps the modification history kept per collection.
	DefaultHistoryLimit = 10

	// DefaultLockTimeout bounds how long an advisory lock is honored without
	// a release.
	DefaultLockTimeout = 30 * time.Second

	// DefaultKey is the key-value store key holding the serialized state.
	DefaultKey = "docgo:master-index"
)

// History operation labels.
const (
	HistoryOpAdd            = "ADD_COLLECTION"
	HistoryOpUpdateMetadata = "UPDATE_METADATA"
	HistoryOpRemove         = "REMOVE_COLLECTION"
	HistoryOpResolve        = "RESOLVE_CONFLICT"
)

// Timestamp is a time.Time that marshals in the instant wire layout
// (millisecond-precision ISO-8601 with a trailing UTC marker).
type Timestamp struct {
	time.Time
}

// NewTimestamp creates a Timestamp truncated to wire precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(document.FormatInstant(t.Time))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := document.ParseInstant(s)
	if !ok {
		return fmt.Errorf("invalid instant %q", s)
	}
	t.Time = parsed
	return nil
}

// LockStatus describes a collection's advisory lock. The lock is cooperative:
// nothing in the storage layer enforces it.
type LockStatus struct {
	IsLocked          bool       `json:"isLocked"`
	LockedBy          string     `json:"lockedBy,omitempty"`
	LockedAt          *Timestamp `json:"lockedAt,omitempty"`
	LockTimeoutMillis int64      `json:"lockTimeout,omitempty"`
}

// Timeout returns the lock timeout as a duration, or fallback when unset.
func (l LockStatus) Timeout(fallback time.Duration) time.Duration {
	if l.LockTimeoutMillis <= 0 {
		return fallback
	}
	return time.Duration(l.LockTimeoutMillis) * time.Millisecond
}

// CollectionMetadata is the coordination record for one collection.
type CollectionMetadata struct {
	Name              string     `json:"name"`
	FileLocator       string     `json:"fileLocator"`
	Created           Timestamp  `json:"created"`
	LastUpdated       Timestamp  `json:"lastUpdated"`
	DocumentCount     int        `json:"documentCount"`
	ModificationToken string     `json:"modificationToken"`
	LockStatus        LockStatus `json:"lockStatus"`
}

// Clone returns a deep copy that shares no state with the receiver.
func (m CollectionMetadata) Clone() CollectionMetadata {
	out := m
	if m.LockStatus.LockedAt != nil {
		at := *m.LockStatus.LockedAt
		out.LockStatus.LockedAt = &at
	}
	return out
}

// HistoryEntry records one committed mutation with an immutable snapshot of
// the metadata at that instant.
type HistoryEntry struct {
	Operation string             `json:"operation"`
	Timestamp Timestamp          `json:"timestamp"`
	Snapshot  CollectionMetadata `json:"metadata"`
}

// State is the whole persisted master index.
type State struct {
	Version             int                            `json:"version"`
	LastUpdated         Timestamp                      `json:"lastUpdated"`
	Collections         map[string]*CollectionMetadata `json:"collections"`
	ModificationHistory map[string][]HistoryEntry      `json:"modificationHistory"`
}

func newState() *State {
	return &State{
		Version:             CurrentVersion,
		LastUpdated:         NewTimestamp(time.Now()),
		Collections:         make(map[string]*CollectionMetadata),
		ModificationHistory: make(map[string][]HistoryEntry),
	}
}
