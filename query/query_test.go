package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docgo/document"
)

func fixtureDocs() []document.Document {
	return []document.Document{
		{"_id": "u1", "name": "Ada", "age": 36, "tags": []any{"math", "compute"}},
		{"_id": "u2", "name": "Grace", "age": 29, "tags": []any{"navy", "compute"}},
		{"_id": "u3", "name": "Alan", "age": 29, "active": true},
		{"_id": "u4", "name": "Edsger", "age": 72, "address": map[string]any{"city": "Austin"}},
	}
}

func ids(docs []document.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d["_id"].(string)
	}
	return out
}

func TestExecuteLiterals(t *testing.T) {
	e := New()
	docs := fixtureDocs()

	t.Run("nil query matches all", func(t *testing.T) {
		got, err := e.Execute(docs, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2", "u3", "u4"}, ids(got))
	})

	t.Run("empty query matches all", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{})
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("single field", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"name": "Ada"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1"}, ids(got))
	})

	t.Run("multiple fields conjoin", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"age": 29, "name": "Alan"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u3"}, ids(got))
	})

	t.Run("strict typing", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"age": "29"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("dot path", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"address.city": "Austin"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u4"}, ids(got))
	})

	t.Run("array contains scalar", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"tags": "compute"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, ids(got))
	})

	t.Run("missing field never matches concrete literal", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"missing": 1})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("nil document list errors", func(t *testing.T) {
		_, err := e.Execute(nil, map[string]any{})
		require.Error(t, err)

		var iq *InvalidQueryError
		assert.ErrorAs(t, err, &iq)
	})

	t.Run("input order preserved", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"age": 29})
		require.NoError(t, err)
		assert.Equal(t, []string{"u2", "u3"}, ids(got))
	})
}

func TestExecuteComparisonOperators(t *testing.T) {
	e := New()
	docs := fixtureDocs()

	t.Run("gt strict boundary", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"age": map[string]any{"$gt": 29}})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u4"}, ids(got))
	})

	t.Run("lt", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"age": map[string]any{"$lt": 36}})
		require.NoError(t, err)
		assert.Equal(t, []string{"u2", "u3"}, ids(got))
	})

	t.Run("range", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"age": map[string]any{"$gt": 29, "$lt": 40}})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1"}, ids(got))
	})

	t.Run("eq operator", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"age": map[string]any{"$eq": 72}})
		require.NoError(t, err)
		assert.Equal(t, []string{"u4"}, ids(got))
	})

	t.Run("instants order chronologically", func(t *testing.T) {
		t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		events := []document.Document{
			{"_id": "e1", "at": t0},
			{"_id": "e2", "at": t0.Add(time.Hour)},
		}
		got, err := e.Execute(events, map[string]any{"at": map[string]any{"$gt": t0}})
		require.NoError(t, err)
		assert.Equal(t, []string{"e2"}, ids(got))
	})

	t.Run("unknown operator rejected before evaluation", func(t *testing.T) {
		_, err := e.Execute(docs, map[string]any{"age": map[string]any{"$gte": 29}})
		require.Error(t, err)

		var iq *InvalidQueryError
		require.ErrorAs(t, err, &iq)
		assert.Equal(t, "$gte", iq.Operator)
		assert.Equal(t, "age", iq.Path)
	})

	t.Run("mixed kind comparison is no match, not error", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"name": map[string]any{"$gt": 5}})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestExecuteLogicalOperators(t *testing.T) {
	e := New()
	docs := fixtureDocs()

	t.Run("and", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{
			"$and": []any{
				map[string]any{"age": 29},
				map[string]any{"name": "Grace"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"u2"}, ids(got))
	})

	t.Run("or", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{
			"$or": []map[string]any{
				{"name": "Ada"},
				{"age": 72},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u4"}, ids(got))
	})

	t.Run("nested logic", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{
			"$or": []any{
				map[string]any{"$and": []any{
					map[string]any{"age": 29},
					map[string]any{"active": true},
				}},
				map[string]any{"name": "Edsger"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"u3", "u4"}, ids(got))
	})

	t.Run("empty and matches everything", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"$and": []any{}})
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("empty or matches nothing", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{"$or": []any{}})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("logical beside literal conjoins", func(t *testing.T) {
		got, err := e.Execute(docs, map[string]any{
			"age": 29,
			"$or": []any{
				map[string]any{"name": "Grace"},
				map[string]any{"name": "Edsger"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"u2"}, ids(got))
	})

	t.Run("unknown logical operator", func(t *testing.T) {
		_, err := e.Execute(docs, map[string]any{"$nor": []any{}})
		require.Error(t, err)

		var iq *InvalidQueryError
		require.ErrorAs(t, err, &iq)
		assert.Equal(t, "$nor", iq.Operator)
	})

	t.Run("operand must be array of sub queries", func(t *testing.T) {
		_, err := e.Execute(docs, map[string]any{"$and": map[string]any{"age": 29}})
		assert.Error(t, err)

		_, err = e.Execute(docs, map[string]any{"$or": []any{"not-a-map"}})
		assert.Error(t, err)
	})

	t.Run("depth limit", func(t *testing.T) {
		q := map[string]any{"age": 29}
		for range 12 {
			q = map[string]any{"$and": []any{q}}
		}
		_, err := e.Execute(docs, q)
		require.Error(t, err)

		shallow := New(func(o *Options) { o.MaxDepth = 1 })
		_, err = shallow.Execute(docs, map[string]any{
			"$and": []any{map[string]any{"$or": []any{map[string]any{"age": 29}}}},
		})
		assert.Error(t, err)
	})
}

func TestMatches(t *testing.T) {
	e := New()

	ok, err := e.Matches(document.Document{"age": 30}, map[string]any{"age": map[string]any{"$gt": 25}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Matches(document.Document{"age": 20}, map[string]any{"age": map[string]any{"$gt": 25}})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.Matches(document.Document{}, map[string]any{"age": map[string]any{"$ne": 1}})
	assert.Error(t, err)
}
