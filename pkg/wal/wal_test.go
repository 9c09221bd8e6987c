package wal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndRecover(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, Options{SegmentSize: 1024 * 1024})
	require.NoError(t, err)

	require.NoError(t, w.Append([]Record{
		{Kind: KindBegin, TrancID: 1},
		{Kind: KindPut, TrancID: 1, Key: []byte("k"), Value: []byte("v")},
		{Kind: KindCommit, TrancID: 1},
	}))
	require.NoError(t, w.Append([]Record{
		{Kind: KindBegin, TrancID: 2},
		{Kind: KindPut, TrancID: 2, Key: []byte("k2"), Value: []byte("v2")},
		{Kind: KindRollback, TrancID: 2},
	}))
	require.NoError(t, w.Close())

	txns, err := Recover(dir, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Contains(t, txns, uint64(1))
	require.NotContains(t, txns, uint64(2))
}

func TestRecoverRespectsFlushedWatermark(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, Options{SegmentSize: 1024 * 1024})
	require.NoError(t, err)
	require.NoError(t, w.Append([]Record{
		{Kind: KindBegin, TrancID: 5},
		{Kind: KindCommit, TrancID: 5},
	}))
	require.NoError(t, w.Close())

	txns, err := Recover(dir, 5)
	require.NoError(t, err)
	require.Empty(t, txns)
}

func TestAppendWithCompression(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, Options{SegmentSize: 1024 * 1024, Compress: true})
	require.NoError(t, err)
	require.NoError(t, w.Append([]Record{
		{Kind: KindBegin, TrancID: 1},
		{Kind: KindPut, TrancID: 1, Key: []byte("k"), Value: []byte("v")},
		{Kind: KindCommit, TrancID: 1},
	}))
	require.NoError(t, w.Close())

	txns, err := Recover(dir, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, []byte("v"), txns[1].Records[1].Value)
}

func TestRecoverAcrossRotatedSegments(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, Options{SegmentSize: 16})
	require.NoError(t, err)

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, w.Append([]Record{
			{Kind: KindBegin, TrancID: i},
			{Kind: KindPut, TrancID: i, Key: []byte("k"), Value: []byte("v")},
			{Kind: KindCommit, TrancID: i},
		}))
	}
	require.NoError(t, w.Close())

	segments, err := listSegmentsInOrder(dir)
	require.NoError(t, err)
	require.Greater(t, len(segments), 1)

	txns, err := Recover(dir, 0)
	require.NoError(t, err)
	require.Len(t, txns, 5)
}

func TestDeleteAll(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, Options{SegmentSize: 1024})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, DeleteAll(dir))
	segments, err := listSegmentsInOrder(dir)
	require.NoError(t, err)
	require.Empty(t, segments)
}
