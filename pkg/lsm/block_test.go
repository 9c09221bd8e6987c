package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockBuilderRejectsOutOfOrderKeys(t *testing.T) {
	bb := NewBlockBuilder()
	require.NoError(t, bb.Add([]byte("b"), []byte("1"), 1))
	require.ErrorIs(t, bb.Add([]byte("a"), []byte("2"), 1), ErrOutOfOrderKey)
}

func TestBlockEncodeDecodeRoundTrip(t *testing.T) {
	bb := NewBlockBuilder()
	require.NoError(t, bb.Add([]byte("a"), []byte("1"), 1))
	require.NoError(t, bb.Add([]byte("b"), []byte("2"), 2))
	require.NoError(t, bb.Add([]byte("c"), []byte(""), 3)) // tombstone

	block := bb.Build()
	raw := block.Encode()

	decoded, err := DecodeBlock(raw)
	require.NoError(t, err)
	require.Equal(t, 3, decoded.NumEntries())

	e0, err := decoded.EntryAt(0)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), e0.key)
	require.Equal(t, []byte("1"), e0.value)
	require.Equal(t, uint64(1), e0.trancID)

	e2, err := decoded.EntryAt(2)
	require.NoError(t, err)
	require.Equal(t, []byte("c"), e2.key)
	require.Empty(t, e2.value)
}

func TestBlockSeekKey(t *testing.T) {
	bb := NewBlockBuilder()
	for _, k := range []string{"a", "c", "e", "g"} {
		require.NoError(t, bb.Add([]byte(k), []byte("v"), 1))
	}
	block := bb.Build()

	require.Equal(t, 0, block.SeekKey([]byte("a")))
	require.Equal(t, 1, block.SeekKey([]byte("b")))
	require.Equal(t, 2, block.SeekKey([]byte("e")))
	require.Equal(t, 4, block.SeekKey([]byte("z")))
}

func TestBlockFirstAndLastKey(t *testing.T) {
	bb := NewBlockBuilder()
	require.NoError(t, bb.Add([]byte("a"), []byte("1"), 1))
	require.NoError(t, bb.Add([]byte("z"), []byte("2"), 1))
	block := bb.Build()

	require.Equal(t, []byte("a"), block.FirstKey())
	require.Equal(t, []byte("z"), block.LastKey())
}

func TestEmptyBlockBuilder(t *testing.T) {
	bb := NewBlockBuilder()
	require.True(t, bb.IsEmpty())
	block := bb.Build()
	require.Equal(t, 0, block.NumEntries())
	require.Nil(t, block.FirstKey())
	require.Nil(t, block.LastKey())
}

func TestDecodeBlockRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeBlock([]byte{0x01})
	require.Error(t, err)
}
