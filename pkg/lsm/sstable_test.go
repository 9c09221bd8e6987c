package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestSST(t *testing.T, dir string, id uint64, entries []Entry) *SST {
	t.Helper()
	builder := NewSSTBuilder(256, 100, 0.05)
	for _, e := range entries {
		require.NoError(t, builder.Add(e.Key, e.Value, e.TrancID))
	}
	sst, err := builder.Build(dir, id, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sst.Close() })
	return sst
}

func TestSSTBuildAndLookup(t *testing.T) {
	dir := t.TempDir()
	sst := buildTestSST(t, dir, 1, []Entry{
		{Key: []byte("a"), Value: []byte("1"), TrancID: 1},
		{Key: []byte("b"), Value: []byte("2"), TrancID: 1},
		{Key: []byte("c"), Value: nil, TrancID: 2}, // tombstone
	})

	e, ok, err := sst.Get([]byte("a"), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), e.Value)

	_, ok, err = sst.Get([]byte("missing"), 0)
	require.NoError(t, err)
	require.False(t, ok)

	_, outcome, err := sst.Lookup([]byte("c"), 0)
	require.NoError(t, err)
	require.Equal(t, lookupTombstone, outcome)
}

func TestSSTBloomRejectsAbsentKeys(t *testing.T) {
	dir := t.TempDir()
	sst := buildTestSST(t, dir, 1, []Entry{
		{Key: []byte("present"), Value: []byte("v"), TrancID: 1},
	})

	require.Equal(t, sstBlockIdxSentinel, sst.FindBlockIdx([]byte("definitely-absent-xyz")))
}

func TestSSTVisibilityFiltering(t *testing.T) {
	dir := t.TempDir()
	sst := buildTestSST(t, dir, 1, []Entry{
		{Key: []byte("k"), Value: []byte("new"), TrancID: 5},
		{Key: []byte("k"), Value: []byte("old"), TrancID: 1},
	})

	e, ok, err := sst.Get([]byte("k"), 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("old"), e.Value)

	e, ok, err = sst.Get([]byte("k"), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("new"), e.Value)
}

func TestSSTReopenFromDisk(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{
		{Key: []byte("a"), Value: []byte("1"), TrancID: 1},
		{Key: []byte("b"), Value: []byte("2"), TrancID: 3},
	}
	builder := NewSSTBuilder(256, 100, 0.05)
	for _, e := range entries {
		require.NoError(t, builder.Add(e.Key, e.Value, e.TrancID))
	}
	built, err := builder.Build(dir, 7, 2, nil)
	require.NoError(t, err)
	path := built.file.path
	built.Close()

	reopened, err := OpenSST(path, 7, 2, nil)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uint64(1), reopened.MinTranc)
	require.Equal(t, uint64(3), reopened.MaxTranc)

	e, ok, err := reopened.Get([]byte("b"), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("2"), e.Value)
}

func TestSSTMultiBlockSpanning(t *testing.T) {
	dir := t.TempDir()
	var entries []Entry
	for i := 0; i < 200; i++ {
		entries = append(entries, Entry{
			Key:     []byte{byte(i / 26), byte('a' + i%26)},
			Value:   []byte("value-with-some-padding-to-force-multiple-blocks"),
			TrancID: 1,
		})
	}
	sst := buildTestSST(t, dir, 1, entries)
	require.Greater(t, sst.NumBlocks(), 1)

	for _, e := range entries {
		got, ok, err := sst.Get(e.Key, 0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, e.Value, got.Value)
	}
}

func TestSSTBuilderRejectsEmptyBuild(t *testing.T) {
	dir := t.TempDir()
	builder := NewSSTBuilder(256, 100, 0.05)
	_, err := builder.Build(dir, 1, 0, nil)
	require.ErrorIs(t, err, ErrEmptyBuild)
}
