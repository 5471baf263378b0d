package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathsSplit(t *testing.T) {
	p := NewPaths()

	assert.Equal(t, []string{"a", "b", "c"}, p.Split("a.b.c"))
	assert.Equal(t, []string{"name"}, p.Split("name"))

	// Cached result is stable across calls.
	first := p.Split("x.y")
	second := p.Split("x.y")
	assert.Equal(t, first, second)
}

func TestPathsResolve(t *testing.T) {
	p := NewPaths()
	doc := Document{
		"name": "Ada",
		"address": map[string]any{
			"city": "London",
			"geo":  map[string]any{"lat": 51.5},
		},
		"tags": []any{"a", "b"},
		"none": nil,
	}

	t.Run("top level", func(t *testing.T) {
		v, ok := p.Resolve(doc, "name")
		require.True(t, ok)
		assert.Equal(t, "Ada", v)
	})

	t.Run("nested", func(t *testing.T) {
		v, ok := p.Resolve(doc, "address.geo.lat")
		require.True(t, ok)
		assert.Equal(t, 51.5, v)
	})

	t.Run("missing leaf", func(t *testing.T) {
		_, ok := p.Resolve(doc, "address.zip")
		assert.False(t, ok)
	})

	t.Run("non map intermediate is absent", func(t *testing.T) {
		_, ok := p.Resolve(doc, "name.first")
		assert.False(t, ok)
		_, ok = p.Resolve(doc, "tags.0")
		assert.False(t, ok)
	})

	t.Run("explicit null is present", func(t *testing.T) {
		v, ok := p.Resolve(doc, "none")
		require.True(t, ok)
		assert.Nil(t, v)
	})
}

func TestWireRoundTrip(t *testing.T) {
	ts, ok := ParseInstant("2024-03-15T12:30:45.123Z")
	require.True(t, ok)

	doc := Document{
		"name":    "Ada",
		"created": ts,
		"events":  []any{ts, "not-a-time"},
		"nested":  map[string]any{"at": ts},
	}

	encoded := WireEncode(doc).(map[string]any)
	assert.Equal(t, "2024-03-15T12:30:45.123Z", encoded["created"])
	assert.Equal(t, "2024-03-15T12:30:45.123Z", encoded["nested"].(map[string]any)["at"])

	// Input is untouched.
	assert.IsType(t, ts, doc["created"])

	decoded := WireDecode(encoded).(map[string]any)
	assert.True(t, decoded["created"].(time.Time).Equal(ts))
	assert.Equal(t, "not-a-time", decoded["events"].([]any)[1])
	assert.True(t, decoded["events"].([]any)[0].(time.Time).Equal(ts))
}
