package requestcache_test

import (
	"testing"

	"github.com/illmade-knight/go-integrations/pkg/requestcache"
	"github.com/stretchr/testify/assert"
)

func TestKey_OrderInvariance(t *testing.T) {
	key1 := requestcache.Key("GET", "/test", map[string]string{"a": "1", "b": "2"})
	key2 := requestcache.Key("GET", "/test", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, key1, key2, "parameter insertion order must not change the key")
}

func TestKey_Discrimination(t *testing.T) {
	base := requestcache.Key("GET", "/test", map[string]string{"a": "1", "b": "2"})

	t.Run("different parameter value", func(t *testing.T) {
		other := requestcache.Key("GET", "/test", map[string]string{"a": "1", "b": "3"})
		assert.NotEqual(t, base, other)
	})

	t.Run("different method", func(t *testing.T) {
		other := requestcache.Key("POST", "/test", map[string]string{"a": "1", "b": "2"})
		assert.NotEqual(t, base, other)
	})

	t.Run("different endpoint", func(t *testing.T) {
		other := requestcache.Key("GET", "/other", map[string]string{"a": "1", "b": "2"})
		assert.NotEqual(t, base, other)
	})

	t.Run("extra parameter", func(t *testing.T) {
		other := requestcache.Key("GET", "/test", map[string]string{"a": "1", "b": "2", "c": "3"})
		assert.NotEqual(t, base, other)
	})
}

func TestKey_MethodCaseInsensitive(t *testing.T) {
	upper := requestcache.Key("GET", "/test", nil)
	lower := requestcache.Key("get", "/test", nil)
	assert.Equal(t, upper, lower, "method comparison is uppercase-normalized")
}

func TestKey_NilAndEmptyParamsEquivalent(t *testing.T) {
	withNil := requestcache.Key("GET", "/test", nil)
	withEmpty := requestcache.Key("GET", "/test", map[string]string{})
	assert.Equal(t, withNil, withEmpty)
}
