package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *MemoryCache {
	t.Helper()
	c := NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute, []string{"L1"}))

	val, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), val)
}

func TestMemoryCache_MissOnUnknownKey(t *testing.T) {
	c := newTestCache(t)

	_, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_ExpiredEntryIsMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), 10*time.Millisecond, nil))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMemoryCache_InvalidateByScope(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "search1", []byte("a"), time.Minute, []string{"L1", "L2"}))
	require.NoError(t, c.Set(ctx, "search2", []byte("b"), time.Minute, []string{"L2"}))
	require.NoError(t, c.Set(ctx, "search3", []byte("c"), time.Minute, []string{"L3"}))

	require.NoError(t, c.Invalidate(ctx, "L2"))

	_, ok, _ := c.Get(ctx, "search1")
	assert.False(t, ok, "entry scoped to L1+L2 must be dropped")
	_, ok, _ = c.Get(ctx, "search2")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "search3")
	assert.True(t, ok, "unrelated scope must survive")
}

func TestMemoryCache_SetReplacesScopes(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("a"), time.Minute, []string{"L1"}))
	require.NoError(t, c.Set(ctx, "k1", []byte("b"), time.Minute, []string{"L2"}))

	// The old scope no longer references the key.
	require.NoError(t, c.Invalidate(ctx, "L1"))
	val, ok, _ := c.Get(ctx, "k1")
	assert.True(t, ok)
	assert.Equal(t, []byte("b"), val)

	require.NoError(t, c.Invalidate(ctx, "L2"))
	_, ok, _ = c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestMemoryCache_ZeroTTLNotStored(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v"), 0, nil))
	_, ok, _ := c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestKey_Deterministic(t *testing.T) {
	filters := map[string]string{"department": "법무부", "status": "현행"}
	k1 := Key("search", "개인정보 보호", "hybrid", filters, 20)
	k2 := Key("search", "  개인정보 보호 ", "hybrid", map[string]string{"status": "현행", "department": "법무부"}, 20)
	assert.Equal(t, k1, k2, "trim and filter order must not change the key")
}

func TestKey_SensitiveToShape(t *testing.T) {
	base := Key("search", "저작권", "hybrid", nil, 20)
	assert.NotEqual(t, base, Key("search", "저작권", "lexical", nil, 20))
	assert.NotEqual(t, base, Key("search", "저작권", "hybrid", nil, 10))
	assert.NotEqual(t, base, Key("detail", "저작권", "hybrid", nil, 20))
	assert.NotEqual(t, base, Key("search", "저작권", "hybrid", map[string]string{"status": "현행"}, 20))
}

func TestKey_EmptyFilterValueIgnored(t *testing.T) {
	k1 := Key("search", "민법", "hybrid", map[string]string{"department": ""}, 20)
	k2 := Key("search", "민법", "hybrid", nil, 20)
	assert.Equal(t, k1, k2)
}
