package document

import (
	"fmt"
	"strings"
	"time"
)

// IDField is the reserved identity field present on every stored document.
const IDField = "_id"

// reservedPrefix marks field names owned by the database itself.
const reservedPrefix = "_"

// Document is an open, nested, string-keyed map of JSON-compatible values.
// Permitted value kinds: numbers, strings, booleans, nil, nested
// map[string]any, []any, and time.Time instants.
type Document = map[string]any

// ErrReservedField is returned by Validate when a document carries a
// reserved-prefix field other than the identity field.
type ErrReservedField struct {
	Field string
}

func (e *ErrReservedField) Error() string {
	return fmt.Sprintf("document field %q uses the reserved %q prefix", e.Field, reservedPrefix)
}

// Validate rejects documents that use the reserved field-name prefix for
// anything other than the identity field. It does not enforce any schema
// beyond that.
func Validate(doc Document) error {
	for key := range doc {
		if key == IDField {
			continue
		}
		if strings.HasPrefix(key, reservedPrefix) {
			return &ErrReservedField{Field: key}
		}
	}
	return nil
}

// Clone returns a deep copy of doc. Nested maps and arrays are copied
// recursively; scalars and instants are copied by value.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue returns a deep copy of a single document value.
func CloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return Clone(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = CloneValue(e)
		}
		return out
	default:
		// Scalars, nil and time.Time are value types here.
		return v
	}
}

// InstantLayout is the wire representation for instants: millisecond-precision
// ISO-8601 with a trailing UTC marker. Persisted data depends on this layout;
// treat it as a compatibility surface.
const InstantLayout = "2006-01-02T15:04:05.000Z"

// FormatInstant renders an instant in the wire layout.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

// ParseInstant parses a wire-layout instant string.
func ParseInstant(s string) (time.Time, bool) {
	t, err := time.Parse(InstantLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CoerceInstant normalizes the loose instant encodings accepted at the
// metadata boundary: time.Time passes through, strings are parsed in the wire
// layout or RFC 3339, and numbers are taken as epoch milliseconds.
func CoerceInstant(v any) (time.Time, bool) {
	switch tv := v.(type) {
	case time.Time:
		return tv, true
	case string:
		if t, ok := ParseInstant(tv); ok {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339Nano, tv); err == nil {
			return t, true
		}
		return time.Time{}, false
	default:
		if f, ok := toFloat(v); ok {
			return time.UnixMilli(int64(f)).UTC(), true
		}
		return time.Time{}, false
	}
}
