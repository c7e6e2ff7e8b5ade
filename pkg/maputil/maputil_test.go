package maputil_test

import (
	"testing"

	"github.com/illmade-knight/go-integrations/pkg/maputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGet(t *testing.T) {
	data := map[string]any{
		"a": 1,
		"b": map[string]any{
			"c": 2,
			"d": map[string]any{"e": 3},
		},
	}

	t.Run("top level key", func(t *testing.T) {
		value, ok := maputil.SafeGet(data, "a")
		require.True(t, ok)
		assert.Equal(t, 1, value)
	})

	t.Run("nested key", func(t *testing.T) {
		value, ok := maputil.SafeGet(data, "b.d.e")
		require.True(t, ok)
		assert.Equal(t, 3, value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok := maputil.SafeGet(data, "b.x")
		assert.False(t, ok)
	})

	t.Run("path through non-map", func(t *testing.T) {
		_, ok := maputil.SafeGet(data, "a.b")
		assert.False(t, ok)
	})
}

func TestSet(t *testing.T) {
	t.Run("set on empty map", func(t *testing.T) {
		data := map[string]any{}
		require.NoError(t, maputil.Set(data, "a", "new_value"))
		assert.Equal(t, map[string]any{"a": "new_value"}, data)
	})

	t.Run("set into existing nested map", func(t *testing.T) {
		data := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
		require.NoError(t, maputil.Set(data, "a.b.d", "new_value"))
		expected := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1, "d": "new_value"}}}
		assert.Equal(t, expected, data)
	})

	t.Run("set creates intermediate maps", func(t *testing.T) {
		data := map[string]any{}
		require.NoError(t, maputil.Set(data, "a.b.c", "new_value"))
		expected := map[string]any{"a": map[string]any{"b": map[string]any{"c": "new_value"}}}
		assert.Equal(t, expected, data)
	})

	t.Run("set overwrites existing value", func(t *testing.T) {
		data := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
		require.NoError(t, maputil.Set(data, "a.b.c", "new_value"))
		value, ok := maputil.SafeGet(data, "a.b.c")
		require.True(t, ok)
		assert.Equal(t, "new_value", value)
	})

	t.Run("set through non-map fails", func(t *testing.T) {
		data := map[string]any{"a": 1}
		require.Error(t, maputil.Set(data, "a.b", "new_value"))
	})
}

func TestFlatten(t *testing.T) {
	data := map[string]any{
		"a": 1,
		"b": map[string]any{
			"c": 2,
			"d": map[string]any{"e": 3},
		},
	}
	expected := map[string]any{"a": 1, "b.c": 2, "b.d.e": 3}
	assert.Equal(t, expected, maputil.Flatten(data))
}

func TestFindKey(t *testing.T) {
	data := map[string]any{
		"a": 1,
		"b": []any{
			map[string]any{"c": 2},
			map[string]any{"d": map[string]any{"target": "found"}},
		},
	}

	t.Run("finds nested key through slices", func(t *testing.T) {
		value, ok := maputil.FindKey(data, "target")
		require.True(t, ok)
		assert.Equal(t, "found", value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok := maputil.FindKey(data, "nope")
		assert.False(t, ok)
	})
}

func TestReplaceKey(t *testing.T) {
	t.Run("replace in nested map", func(t *testing.T) {
		data := map[string]any{"a": 1, "b": map[string]any{"c": 2, "d": map[string]any{"e": 3, "f": 4}}}
		expected := map[string]any{"a": 1, "b": map[string]any{"c": 2, "d": map[string]any{"e": "new_value", "f": 4}}}
		assert.Equal(t, expected, maputil.ReplaceKey(data, "e", "new_value"))
	})

	t.Run("replace in list of maps", func(t *testing.T) {
		data := []any{
			map[string]any{"a": 1, "b": map[string]any{"c": 2}},
			map[string]any{"a": 3, "b": map[string]any{"c": 4}},
		}
		expected := []any{
			map[string]any{"a": 1, "b": map[string]any{"c": "new_value"}},
			map[string]any{"a": 3, "b": map[string]any{"c": "new_value"}},
		}
		assert.Equal(t, expected, maputil.ReplaceKey(data, "c", "new_value"))
	})

	t.Run("replace in mixed structure", func(t *testing.T) {
		data := map[string]any{"a": 1, "b": []any{
			map[string]any{"c": 2, "d": map[string]any{"e": 3}},
			map[string]any{"c": 4, "d": map[string]any{"e": 5}},
		}}
		expected := map[string]any{"a": 1, "b": []any{
			map[string]any{"c": "new_value", "d": map[string]any{"e": 3}},
			map[string]any{"c": "new_value", "d": map[string]any{"e": 5}},
		}}
		assert.Equal(t, expected, maputil.ReplaceKey(data, "c", "new_value"))
	})

	t.Run("no match leaves data unchanged", func(t *testing.T) {
		data := map[string]any{"a": 1, "b": map[string]any{"c": 2}}
		assert.Equal(t, data, maputil.ReplaceKey(data, "x", "new_value"))
	})
}

func TestMissingKeys(t *testing.T) {
	reference := map[string]any{
		"a": 1,
		"b": map[string]any{"c": 2, "d": 3},
	}
	data := map[string]any{
		"a": 1,
		"b": map[string]any{"c": 2},
	}
	assert.Equal(t, []string{"d"}, maputil.MissingKeys(reference, data))
}

func TestPatchMissing(t *testing.T) {
	t.Run("fills missing nested keys", func(t *testing.T) {
		reference := map[string]any{"a": 1, "b": map[string]any{"c": 2, "d": 3}}
		data := map[string]any{"a": 1, "b": map[string]any{"c": 2}}

		patched := maputil.PatchMissing(data, reference)

		assert.True(t, patched)
		assert.Equal(t, reference, data)
	})

	t.Run("does not overwrite existing values", func(t *testing.T) {
		reference := map[string]any{"a": 0}
		data := map[string]any{"a": 42}

		patched := maputil.PatchMissing(data, reference)

		assert.False(t, patched)
		assert.Equal(t, 42, data["a"])
	})
}
