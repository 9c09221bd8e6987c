package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func block(firstKey string) *Block {
	bb := NewBlockBuilder()
	bb.Add([]byte(firstKey), []byte("v"), 1)
	return bb.Build()
}

func TestBlockCachePutGet(t *testing.T) {
	c := NewBlockCache(4, 2)
	c.Put(1, 0, block("a"))

	b, ok := c.Get(1, 0)
	require.True(t, ok)
	require.Equal(t, []byte("a"), b.FirstKey())

	_, ok = c.Get(1, 1)
	require.False(t, ok)
}

func TestBlockCachePromotesToHotAfterKAccesses(t *testing.T) {
	c := NewBlockCache(4, 2)
	c.Put(1, 0, block("a"))

	_, _ = c.Get(1, 0) // access 1
	require.False(t, c.inHot[blockCacheKey{1, 0}])
	_, _ = c.Get(1, 0) // access 2, reaches k
	require.True(t, c.inHot[blockCacheKey{1, 0}])
}

func TestBlockCacheEvictsColdBeforeHot(t *testing.T) {
	c := NewBlockCache(2, 1)
	c.Put(1, 0, block("a"))
	_, _ = c.Get(1, 0) // promotes to hot (k=1)
	c.Put(1, 1, block("b"))
	c.Put(1, 2, block("c")) // forces an eviction; only cold entry is evicted

	_, hotStillThere := c.Get(1, 0)
	require.True(t, hotStillThere)
}

func TestBlockCacheInvalidateSST(t *testing.T) {
	c := NewBlockCache(8, 2)
	c.Put(1, 0, block("a"))
	c.Put(2, 0, block("b"))

	c.InvalidateSST(1)

	_, ok := c.Get(1, 0)
	require.False(t, ok)
	_, ok = c.Get(2, 0)
	require.True(t, ok)
}

func TestBlockCachePutRefreshesExistingEntry(t *testing.T) {
	c := NewBlockCache(4, 2)
	c.Put(1, 0, block("a"))
	c.Put(1, 0, block("z"))

	b, ok := c.Get(1, 0)
	require.True(t, ok)
	require.Equal(t, []byte("z"), b.FirstKey())
}
