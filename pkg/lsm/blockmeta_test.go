package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockMetaEncodeDecodeRoundTrip(t *testing.T) {
	entries := []BlockMetaEntry{
		{Offset: 0, FirstKey: []byte("a"), LastKey: []byte("c")},
		{Offset: 128, FirstKey: []byte("d"), LastKey: []byte("f")},
	}
	raw := EncodeBlockMeta(entries)

	decoded, err := DecodeBlockMeta(raw)
	require.NoError(t, err)
	require.Equal(t, entries, decoded)
}

func TestBlockMetaDecodeRejectsCorruptedChecksum(t *testing.T) {
	entries := []BlockMetaEntry{{Offset: 0, FirstKey: []byte("a"), LastKey: []byte("a")}}
	raw := EncodeBlockMeta(entries)
	raw[0] ^= 0xFF

	_, err := DecodeBlockMeta(raw)
	require.ErrorIs(t, err, ErrCorruption)
}

func TestFindBlockIdx(t *testing.T) {
	entries := []BlockMetaEntry{
		{Offset: 0, FirstKey: []byte("a"), LastKey: []byte("c")},
		{Offset: 1, FirstKey: []byte("d"), LastKey: []byte("f")},
		{Offset: 2, FirstKey: []byte("g"), LastKey: []byte("i")},
	}

	require.Equal(t, 0, findBlockIdx(entries, []byte("b")))
	require.Equal(t, 1, findBlockIdx(entries, []byte("e")))
	require.Equal(t, 2, findBlockIdx(entries, []byte("i")))
	require.Equal(t, -1, findBlockIdx(entries, []byte("zz")))
	require.Equal(t, -1, findBlockIdx(entries, []byte("0")))
}

func TestFindBlockIdxEmpty(t *testing.T) {
	require.Equal(t, -1, findBlockIdx(nil, []byte("a")))
}
