package exprcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCompileAndReuse(t *testing.T) {
	c := New(2)
	env := map[string]bool{"a": true, "b": false}

	ok, err := c.Run("a && !b", env)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())

	ok, err = c.Run("a && !b", env)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len(), "second run should hit the cache, not grow it")
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	env := map[string]bool{"a": true, "b": false}

	_, _ = c.Run("a", env)
	_, _ = c.Run("b", env)
	_, _ = c.Run("a", env) // touch "a" so "b" becomes LRU
	_, _ = c.Run("!b", env)

	assert.Equal(t, 2, c.Len())
	_, hasA := c.Get("a")
	_, hasB := c.Get("b")
	assert.True(t, hasA)
	assert.False(t, hasB, "b should have been evicted")
}

func TestCacheCompileError(t *testing.T) {
	c := New(4)
	_, err := c.Run("a && (", map[string]bool{"a": true})
	assert.Error(t, err)
}
