package txn

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/duskdb/duskdb/pkg/lsm"
	"github.com/duskdb/duskdb/pkg/logging"
	"github.com/duskdb/duskdb/pkg/metrics"
	"github.com/duskdb/duskdb/pkg/wal"
)

// Manager ties the engine, the WAL, and the watermark file together: it
// allocates tranc_ids, enforces each isolation level's buffering and
// visibility rules, and drives commit-time conflict detection.
type Manager struct {
	mu sync.Mutex // serializes begin() allocation and active-set membership

	engine     *lsm.Engine
	wal        *wal.WAL
	dataDir    string
	watermarks *Watermarks
	active     map[uint64]*TxContext

	log  logging.Logger
	mets *metrics.Registry
}

// Open loads the watermark file, replays any WAL transactions that
// committed after the last flush, clears the WAL, and opens a fresh one.
// The returned Manager is ready to serve Begin/Commit/Abort.
func Open(engine *lsm.Engine, dataDir string, walOpts wal.Options, log logging.Logger, mets *metrics.Registry) (*Manager, error) {
	watermarks, err := LoadWatermarks(dataDir)
	if err != nil {
		return nil, err
	}

	recovered, err := wal.Recover(dataDir, watermarks.MaxFlushed())
	if err != nil {
		return nil, err
	}
	if err := replayRecovered(engine, recovered); err != nil {
		return nil, err
	}
	if err := wal.DeleteAll(dataDir); err != nil {
		return nil, err
	}

	w, err := wal.Create(dataDir, walOpts)
	if err != nil {
		return nil, err
	}

	var maxRecovered uint64
	for id := range recovered {
		if id > maxRecovered {
			maxRecovered = id
		}
	}
	if err := watermarks.ensureNextAbove(maxRecovered); err != nil {
		return nil, err
	}
	if err := watermarks.AdvanceFinished(maxRecovered); err != nil {
		return nil, err
	}

	m := &Manager{
		engine:     engine,
		wal:        w,
		dataDir:    dataDir,
		watermarks: watermarks,
		active:     make(map[uint64]*TxContext),
		log:        log,
		mets:       mets,
	}
	if log != nil {
		log.Info("transaction manager opened",
			logging.Count(len(recovered)), logging.TrancID(watermarks.Next()))
	}
	if mets != nil {
		mets.UpdateWatermarks(watermarks.Next(), watermarks.MaxFlushed(), watermarks.MaxFinished())
	}
	return m, nil
}

// replayRecovered applies every surviving transaction's Put/Delete
// records directly to the engine, in tranc_id order, using each
// transaction's original tranc_id.
func replayRecovered(engine *lsm.Engine, txns map[uint64]wal.Transaction) error {
	ids := make([]uint64, 0, len(txns))
	for id := range txns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		for _, rec := range txns[id].Records {
			switch rec.Kind {
			case wal.KindPut:
				if _, err := engine.Put(rec.Key, rec.Value, id); err != nil {
					return err
				}
			case wal.KindDelete:
				if _, err := engine.Remove(rec.Key, id); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Begin allocates a tranc_id, registers an Active context, and returns
// it to the caller.
func (m *Manager) Begin(isolation IsolationLevel) (*TxContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.watermarks.AllocTrancID()
	if err != nil {
		return nil, err
	}
	tx := newTxContext(id, isolation)
	m.active[id] = tx

	if m.mets != nil {
		m.mets.RecordTxnBegin(isolation.String())
		m.mets.UpdateWatermarks(m.watermarks.Next(), m.watermarks.MaxFlushed(), m.watermarks.MaxFinished())
	}
	return tx, nil
}

// Put buffers (or, at ReadUncommitted, immediately applies) a write.
func (m *Manager) Put(tx *TxContext, key, value []byte) error {
	return m.write(tx, key, value, false)
}

// Remove buffers (or immediately applies) a tombstone.
func (m *Manager) Remove(tx *TxContext, key []byte) error {
	return m.write(tx, key, nil, true)
}

func (m *Manager) write(tx *TxContext, key, value []byte, tombstone bool) error {
	if tx.State != Active {
		return ErrTransactionAborted
	}

	if tx.Isolation == ReadUncommitted {
		k := string(key)
		if _, captured := tx.rollbackMap[k]; !captured {
			prev, found, err := m.engine.Get(key, 0)
			if err != nil {
				return err
			}
			if found {
				tx.rollbackMap[k] = rollbackEntry{Value: append([]byte(nil), prev.Value...), Found: true}
			} else {
				tx.rollbackMap[k] = rollbackEntry{Found: false}
			}
		}
		if tombstone {
			flushed, err := m.engine.Remove(key, tx.TrancID)
			if err != nil {
				return err
			}
			if flushed > 0 {
				m.watermarks.AdvanceFlushed(flushed)
			}
			tx.operations = append(tx.operations, wal.Record{Kind: wal.KindDelete, TrancID: tx.TrancID, Key: key})
		} else {
			flushed, err := m.engine.Put(key, value, tx.TrancID)
			if err != nil {
				return err
			}
			if flushed > 0 {
				m.watermarks.AdvanceFlushed(flushed)
			}
			tx.operations = append(tx.operations, wal.Record{Kind: wal.KindPut, TrancID: tx.TrancID, Key: key, Value: value})
		}
		return nil
	}

	k := string(key)
	if _, exists := tx.tempWrites[k]; !exists {
		tx.tempOrder = append(tx.tempOrder, k)
	}
	if tombstone {
		tx.tempWrites[k] = tempWrite{Key: key, Tombstone: true}
		tx.operations = append(tx.operations, wal.Record{Kind: wal.KindDelete, TrancID: tx.TrancID, Key: key})
	} else {
		tx.tempWrites[k] = tempWrite{Key: key, Value: value}
		tx.operations = append(tx.operations, wal.Record{Kind: wal.KindPut, TrancID: tx.TrancID, Key: key, Value: value})
	}
	return nil
}

// Get resolves a read per the transaction's isolation level: its own
// temp_writes first, then ReadUncommitted (latest committed anywhere),
// ReadCommitted (snapshot at self.tranc_id, re-read every time), or
// RepeatableRead/Serializable (snapshot at self.tranc_id, memoized into
// read_set so later reads in the same transaction can't see a different
// answer).
func (m *Manager) Get(tx *TxContext, key []byte) (lsm.Entry, bool, error) {
	if tx.State != Active {
		return lsm.Entry{}, false, ErrTransactionAborted
	}

	k := string(key)
	if tw, ok := tx.tempWrites[k]; ok {
		if tw.Tombstone {
			return lsm.Entry{}, false, nil
		}
		return lsm.Entry{Key: key, Value: tw.Value, TrancID: tx.TrancID}, true, nil
	}

	switch tx.Isolation {
	case ReadUncommitted:
		return m.engine.Get(key, 0)
	case ReadCommitted:
		return m.engine.Get(key, tx.TrancID)
	default: // RepeatableRead, Serializable
		if rs, ok := tx.readSet[k]; ok {
			if !rs.Found {
				return lsm.Entry{}, false, nil
			}
			return lsm.Entry{Key: key, Value: rs.Value, TrancID: rs.TrancID}, true, nil
		}
		entry, found, err := m.engine.Get(key, tx.TrancID)
		if err != nil {
			return lsm.Entry{}, false, err
		}
		if found {
			tx.readSet[k] = readSetEntry{Value: append([]byte(nil), entry.Value...), TrancID: entry.TrancID, Found: true}
		} else {
			tx.readSet[k] = readSetEntry{Found: false}
		}
		return entry, found, nil
	}
}

// Commit finalizes the transaction. It returns (true, nil) on success,
// (false, nil) on a commit-time conflict (the context is left Aborted),
// and (false, err) if the WAL write itself failed, in which case the
// context is left Active so the caller may retry.
func (m *Manager) Commit(tx *TxContext) (bool, error) {
	if tx.State != Active {
		return false, ErrDuplicateTransaction
	}

	if tx.Isolation == ReadUncommitted {
		tx.operations = append(tx.operations, wal.Record{Kind: wal.KindCommit, TrancID: tx.TrancID})
		if err := m.wal.Append(tx.operations); err != nil {
			return false, err
		}
		tx.State = Committed
		m.finish(tx)
		if m.mets != nil {
			m.mets.TxnCommitTotal.Inc()
		}
		return true, nil
	}

	writes := make([]lsm.PendingWrite, 0, len(tx.tempOrder))
	for _, k := range tx.tempOrder {
		tw := tx.tempWrites[k]
		writes = append(writes, lsm.PendingWrite{Key: tw.Key, Value: tw.Value, Tombstone: tw.Tombstone})
	}

	tx.operations = append(tx.operations, wal.Record{Kind: wal.KindCommit, TrancID: tx.TrancID})
	conflict, err := m.engine.CommitLockedWrites(writes, tx.TrancID, func() error {
		return m.wal.Append(tx.operations)
	})
	if err != nil {
		// The WAL write failed; the conflict check (if it ran) found
		// nothing, so no memtable state changed. Leave the context
		// Active so the caller may retry the commit.
		return false, err
	}
	if conflict {
		tx.State = Aborted
		m.finish(tx)
		if m.mets != nil {
			m.mets.TxnConflictTotal.Inc()
		}
		return false, nil
	}

	m.engine.FreezeIfOverflowing()
	flushed, err := m.engine.MaybeFlush()
	if err != nil {
		return false, err
	}
	if flushed > 0 {
		m.watermarks.AdvanceFlushed(flushed)
	}

	tx.State = Committed
	m.finish(tx)
	if m.mets != nil {
		m.mets.TxnCommitTotal.Inc()
	}
	return true, nil
}

// Abort discards the transaction. At ReadUncommitted, its rollback_map
// is replayed back through the engine to undo already-applied writes.
func (m *Manager) Abort(tx *TxContext) error {
	if tx.State != Active {
		return ErrDuplicateTransaction
	}

	if tx.Isolation == ReadUncommitted {
		for k, rb := range tx.rollbackMap {
			key := []byte(k)
			if rb.Found {
				if flushed, err := m.engine.Put(key, rb.Value, tx.TrancID); err != nil {
					return err
				} else if flushed > 0 {
					m.watermarks.AdvanceFlushed(flushed)
				}
			} else {
				if flushed, err := m.engine.Remove(key, tx.TrancID); err != nil {
					return err
				} else if flushed > 0 {
					m.watermarks.AdvanceFlushed(flushed)
				}
			}
		}
	}

	tx.State = Aborted
	m.finish(tx)
	if m.mets != nil {
		m.mets.TxnAbortTotal.Inc()
	}
	return nil
}

// finish removes a terminal transaction from the active set and
// advances max_finished_tranc_id.
func (m *Manager) finish(tx *TxContext) {
	m.mu.Lock()
	delete(m.active, tx.TrancID)
	m.mu.Unlock()

	m.watermarks.AdvanceFinished(tx.TrancID)
	if m.mets != nil {
		m.mets.UpdateWatermarks(m.watermarks.Next(), m.watermarks.MaxFlushed(), m.watermarks.MaxFinished())
	}
}

// NotifyFlushed records that a flush has persisted every write up to
// and including maxFlushedTranc, advancing and persisting the
// watermark. The engine has no return-value channel back to the
// transaction manager, so callers that drive Engine.Flush directly
// (rather than through MaybeFlush from within Commit) should call this
// afterward with the flushed SST's MaxTranc.
func (m *Manager) NotifyFlushed(maxFlushedTranc uint64) error {
	if err := m.watermarks.AdvanceFlushed(maxFlushedTranc); err != nil {
		return err
	}
	if m.mets != nil {
		m.mets.UpdateWatermarks(m.watermarks.Next(), m.watermarks.MaxFlushed(), m.watermarks.MaxFinished())
	}
	return nil
}

// Close closes the underlying WAL.
func (m *Manager) Close() error {
	return m.wal.Close()
}

// watermarkFilePath returns the path Manager persists its watermarks to,
// exposed for tests that want to inspect the on-disk file directly.
func (m *Manager) watermarkFilePath() string {
	return filepath.Join(m.dataDir, watermarkFileName)
}
