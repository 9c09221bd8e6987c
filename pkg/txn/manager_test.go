package txn

import (
	"testing"

	"github.com/duskdb/duskdb/pkg/lsm"
	"github.com/duskdb/duskdb/pkg/wal"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*lsm.Engine, string) {
	dir := t.TempDir()
	e, err := lsm.Open(lsm.DefaultOptions(dir), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, dir
}

func newTestManager(t *testing.T, engine *lsm.Engine, dir string) *Manager {
	mgr, err := Open(engine, dir, wal.Options{SegmentSize: 1 << 20}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestReadUncommittedImmediateVisibilityAndRollback(t *testing.T) {
	engine, dir := newTestEngine(t)
	mgr := newTestManager(t, engine, dir)

	tx, err := mgr.Begin(ReadUncommitted)
	require.NoError(t, err)
	require.NoError(t, mgr.Put(tx, []byte("k"), []byte("v1")))

	// Writes are applied immediately at ReadUncommitted, visible outside
	// the transaction straight away.
	entry, found, err := engine.Get([]byte("k"), 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), entry.Value)

	require.NoError(t, mgr.Abort(tx))

	_, found, err = engine.Get([]byte("k"), 0)
	require.NoError(t, err)
	require.False(t, found)
}

func TestReadUncommittedAbortRestoresPriorValue(t *testing.T) {
	engine, dir := newTestEngine(t)
	mgr := newTestManager(t, engine, dir)

	seed, err := mgr.Begin(ReadUncommitted)
	require.NoError(t, err)
	require.NoError(t, mgr.Put(seed, []byte("k"), []byte("original")))
	ok, err := mgr.Commit(seed)
	require.NoError(t, err)
	require.True(t, ok)

	tx, err := mgr.Begin(ReadUncommitted)
	require.NoError(t, err)
	require.NoError(t, mgr.Put(tx, []byte("k"), []byte("overwritten")))
	require.NoError(t, mgr.Abort(tx))

	entry, found, err := engine.Get([]byte("k"), 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("original"), entry.Value)
}

func TestRepeatableReadConflictDetection(t *testing.T) {
	engine, dir := newTestEngine(t)
	mgr := newTestManager(t, engine, dir)

	tx1, err := mgr.Begin(RepeatableRead)
	require.NoError(t, err)
	_, found, err := mgr.Get(tx1, []byte("k"))
	require.NoError(t, err)
	require.False(t, found)

	tx2, err := mgr.Begin(RepeatableRead)
	require.NoError(t, err)
	require.NoError(t, mgr.Put(tx2, []byte("k"), []byte("v2")))
	ok, err := mgr.Commit(tx2)
	require.NoError(t, err)
	require.True(t, ok)

	// tx1 still sees its own snapshot.
	_, found, err = mgr.Get(tx1, []byte("k"))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, mgr.Put(tx1, []byte("k"), []byte("v1")))
	ok, err = mgr.Commit(tx1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, Aborted, tx1.State)

	entry, found, err := engine.Get([]byte("k"), 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v2"), entry.Value)
}

func TestOwnWritesVisibleWithinTransaction(t *testing.T) {
	engine, dir := newTestEngine(t)
	mgr := newTestManager(t, engine, dir)

	tx, err := mgr.Begin(RepeatableRead)
	require.NoError(t, err)
	require.NoError(t, mgr.Put(tx, []byte("k"), []byte("v1")))

	entry, found, err := mgr.Get(tx, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), entry.Value)

	// Not yet visible outside the transaction.
	_, found, err = engine.Get([]byte("k"), 0)
	require.NoError(t, err)
	require.False(t, found)

	ok, err := mgr.Commit(tx)
	require.NoError(t, err)
	require.True(t, ok)

	_, found, err = engine.Get([]byte("k"), 0)
	require.NoError(t, err)
	require.True(t, found)
}

func TestSerializableTreatedLikeRepeatableRead(t *testing.T) {
	engine, dir := newTestEngine(t)
	mgr := newTestManager(t, engine, dir)

	// tx1 begins first (lower tranc_id); tx2 begins after and commits a
	// write first. When tx1 later tries to commit the same key, it must
	// conflict exactly as RepeatableRead would, since Serializable is
	// specified to behave identically.
	tx1, err := mgr.Begin(Serializable)
	require.NoError(t, err)
	tx2, err := mgr.Begin(RepeatableRead)
	require.NoError(t, err)

	require.NoError(t, mgr.Put(tx2, []byte("k"), []byte("b")))
	ok2, err := mgr.Commit(tx2)
	require.NoError(t, err)
	require.True(t, ok2)

	require.NoError(t, mgr.Put(tx1, []byte("k"), []byte("a")))
	ok1, err := mgr.Commit(tx1)
	require.NoError(t, err)
	require.False(t, ok1)
	require.Equal(t, Aborted, tx1.State)
}

func TestWatermarksAdvanceAcrossTransactions(t *testing.T) {
	engine, dir := newTestEngine(t)
	mgr := newTestManager(t, engine, dir)

	var last uint64
	for i := 0; i < 5; i++ {
		tx, err := mgr.Begin(ReadCommitted)
		require.NoError(t, err)
		require.Greater(t, tx.TrancID, last)
		last = tx.TrancID
		ok, err := mgr.Commit(tx)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, last, mgr.watermarks.MaxFinished())
}

func TestBeginAfterAbortReusesNoTrancID(t *testing.T) {
	engine, dir := newTestEngine(t)
	mgr := newTestManager(t, engine, dir)

	tx1, err := mgr.Begin(ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, mgr.Abort(tx1))

	tx2, err := mgr.Begin(ReadCommitted)
	require.NoError(t, err)
	require.Greater(t, tx2.TrancID, tx1.TrancID)
}
