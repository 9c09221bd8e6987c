package lsm

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/duskdb/duskdb/pkg/logging"
	"github.com/duskdb/duskdb/pkg/metrics"
)

var sstFileRE = regexp.MustCompile(`^sst_(\d{20})\.(\d+)$`)

// Engine is the public façade orchestrating the MemTable, the SST level
// map, compaction, and query routing. It is tranc_id-aware at every
// entry point; callers that don't need transactions pass 0, which
// disables visibility filtering.
type Engine struct {
	opts Options
	log  logging.Logger
	mets *metrics.Registry

	mt     *MemTable
	levels *levelManager
	cache  *BlockCache

	closed bool
	mu     sync.Mutex // guards Close/flush orchestration ordering
}

// Open scans dataDir for existing sst_<id>.<level> files, rebuilds the
// level map and next_sst_id/cur_max_level counters, and returns a ready
// Engine. WAL recovery is driven separately by pkg/txn, which owns the
// watermark file and replays surviving transactions through Put/Remove.
func Open(opts Options, log logging.Logger, mets *metrics.Registry) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, newEngineError("open", "engine", opts.DataDir, err)
	}

	cache := NewBlockCache(opts.BlockCacheCapacity, opts.BlockCacheK)
	lm := newLevelManager(opts, cache)

	entries, err := os.ReadDir(opts.DataDir)
	if err != nil {
		return nil, newEngineError("open", "engine", opts.DataDir, err)
	}

	type found struct {
		id    uint64
		level int
		path  string
	}
	var files []found
	for _, de := range entries {
		m := sstFileRE.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		id, _ := strconv.ParseUint(m[1], 10, 64)
		level, _ := strconv.Atoi(m[2])
		files = append(files, found{id: id, level: level, path: filepath.Join(opts.DataDir, de.Name())})
	}

	maxID := uint64(0)
	maxLevel := 0
	for _, f := range files {
		sst, err := OpenSST(f.path, f.id, f.level, cache)
		if err != nil {
			return nil, err
		}
		lm.ssts[f.id] = sst
		lm.levelSSTs[f.level] = append(lm.levelSSTs[f.level], f.id)
		if f.id > maxID {
			maxID = f.id
		}
		if f.level > maxLevel {
			maxLevel = f.level
		}
	}
	for lvl, ids := range lm.levelSSTs {
		if lvl == 0 {
			sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
			lm.levelSSTs[0] = ids
		} else {
			lm.sortLevelByFirstKey(lvl)
		}
	}
	lm.nextSSTID = maxID + 1
	lm.curMaxLevel = maxLevel

	return &Engine{
		opts:   opts,
		log:    log,
		mets:   mets,
		mt:     NewMemTable(opts.PerMemLimit),
		levels: lm,
		cache:  cache,
	}, nil
}

// Put writes (key, value) at trancID, flushing the memtable
// synchronously if it has grown past TotalMemLimit. trancID 0 is used
// for non-transactional writes. Returns the flushed SST's max_tranc_id,
// or 0 if no flush occurred, so pkg/txn can advance its flushed
// watermark without a separate notification channel.
func (e *Engine) Put(key, value []byte, trancID uint64) (uint64, error) {
	e.mt.Put(key, value, trancID)
	if e.mets != nil {
		e.mets.PutTotal.Inc()
	}
	if e.mt.TotalSize() >= e.opts.TotalMemLimit {
		return e.Flush()
	}
	return 0, nil
}

// Remove writes a tombstone for key at trancID. Returns the flushed
// SST's max_tranc_id, or 0 if no flush occurred.
func (e *Engine) Remove(key []byte, trancID uint64) (uint64, error) {
	e.mt.Remove(key, trancID)
	if e.mets != nil {
		e.mets.RemoveTotal.Inc()
	}
	if e.mt.TotalSize() >= e.opts.TotalMemLimit {
		return e.Flush()
	}
	return 0, nil
}

// PutBatch applies every (key, value) pair at trancID, returning the
// highest flushed max_tranc_id observed across the batch (0 if none).
func (e *Engine) PutBatch(keys, values [][]byte, trancID uint64) (uint64, error) {
	var maxFlushed uint64
	for i := range keys {
		flushed, err := e.Put(keys[i], values[i], trancID)
		if err != nil {
			return maxFlushed, err
		}
		if flushed > maxFlushed {
			maxFlushed = flushed
		}
	}
	return maxFlushed, nil
}

// RemoveBatch removes every key at trancID, returning the highest
// flushed max_tranc_id observed across the batch (0 if none).
func (e *Engine) RemoveBatch(keys [][]byte, trancID uint64) (uint64, error) {
	var maxFlushed uint64
	for _, k := range keys {
		flushed, err := e.Remove(k, trancID)
		if err != nil {
			return maxFlushed, err
		}
		if flushed > maxFlushed {
			maxFlushed = flushed
		}
	}
	return maxFlushed, nil
}

// GetBatch looks up every key at trancID, preserving input order.
func (e *Engine) GetBatch(keys [][]byte, trancID uint64) ([]Entry, []bool, error) {
	entries := make([]Entry, len(keys))
	found := make([]bool, len(keys))
	for i, k := range keys {
		e2, ok, err := e.Get(k, trancID)
		if err != nil {
			return nil, nil, err
		}
		entries[i], found[i] = e2, ok
	}
	return entries, found, nil
}

// Get performs the three-step lookup: memtable, then L0 newest-first,
// then binary search across L1+.
func (e *Engine) Get(key []byte, trancID uint64) (Entry, bool, error) {
	if entry, ok := e.mt.Get(key, trancID); ok {
		if e.mets != nil {
			e.mets.GetTotal.Inc()
		}
		if entry.IsTombstone() {
			return Entry{}, false, nil
		}
		return entry, true, nil
	}
	if e.mets != nil {
		e.mets.GetTotal.Inc()
	}
	return e.levels.Get(key, trancID)
}

// Flush freezes (if needed) and flushes the oldest memtable generation
// into a new L0 SST, first compacting L0 if it is already at the
// level-ratio threshold. Returns the new SST's max_tranc_id, or 0 if
// there was nothing to flush.
func (e *Engine) Flush() (uint64, error) {
	e.levels.mu.Lock()
	defer e.levels.mu.Unlock()

	if len(e.levels.levelSSTs[0]) >= e.levels.levelRatio {
		if err := e.levels.fullCompact(0); err != nil {
			return 0, err
		}
	}

	handle := e.mt.FreezeOldest()
	if handle == nil {
		return 0, nil
	}
	entries, _, maxTranc := handle.Entries()
	if len(entries) == 0 {
		return 0, nil
	}

	builder := NewSSTBuilder(e.opts.BlockSize, e.opts.BloomExpectedSize, e.opts.BloomFalsePositiveRate)
	for _, ent := range entries {
		if err := builder.Add(ent.Key, ent.Value, ent.TrancID); err != nil {
			return 0, err
		}
	}

	sstID := e.levels.allocSSTID()
	sst, err := builder.Build(e.opts.DataDir, sstID, 0, e.cache)
	if err != nil {
		return 0, err
	}
	e.levels.installSST(sst, 0)

	if e.mets != nil {
		e.mets.FlushTotal.Inc()
	}
	if e.log != nil {
		e.log.Info("flushed memtable to sst", logging.SstID(sstID), logging.Count(len(entries)))
	}
	return maxTranc, nil
}

// FlushAll repeatedly flushes until the memtable (active + frozen) is
// empty. Returns the highest max_tranc_id flushed.
func (e *Engine) FlushAll() (uint64, error) {
	var maxFlushed uint64
	for e.mt.TotalSize() > 0 {
		before := e.mt.TotalSize()
		flushed, err := e.Flush()
		if err != nil {
			return maxFlushed, err
		}
		if flushed > maxFlushed {
			maxFlushed = flushed
		}
		if e.mt.TotalSize() == before {
			break
		}
	}
	return maxFlushed, nil
}

// Clear drops every in-memory and on-disk SST, leaving a fresh empty
// engine rooted at the same DataDir. Used by tests and by Clear in the
// public API.
func (e *Engine) Clear() error {
	e.levels.mu.Lock()
	defer e.levels.mu.Unlock()

	for lvl := range e.levels.levelSSTs {
		e.levels.retireLevel(lvl)
	}
	e.levels.nextSSTID = 1
	e.levels.curMaxLevel = 0
	e.mt = NewMemTable(e.opts.PerMemLimit)
	return nil
}

// Close closes every open SST file handle. A second call returns
// ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.levels.mu.Lock()
	for _, sst := range e.levels.ssts {
		sst.Close()
	}
	e.levels.mu.Unlock()
	e.closed = true
	return nil
}

// Iter returns a TwoMergeIterator over the whole keyspace visible at
// trancID: memtable heap as the left (winning) child, SST heap as the
// right.
func (e *Engine) Iter(trancID uint64) (Iterator, error) {
	return e.mergedIter(trancID, nil)
}

// IterPrefix restricts Iter to keys starting with prefix. pred follows
// the same convention as IterPredicate: >0 means key sorts below the
// range (target lies to the right, keep advancing), <0 means key
// sorts above it (target lies to the left).
func (e *Engine) IterPrefix(trancID uint64, prefix []byte) (Iterator, error) {
	pred := func(key []byte) int {
		n := len(prefix)
		if n > len(key) {
			if string(key) <= string(prefix[:len(key)]) {
				return 1
			}
			return -1
		}
		switch {
		case string(key[:n]) < string(prefix):
			return 1
		case string(key[:n]) > string(prefix):
			return -1
		default:
			return 0
		}
	}
	return e.mergedIter(trancID, pred)
}

// IterPredicate restricts Iter to the maximal contiguous range on which
// pred returns 0; pred must be monotone over key order.
func (e *Engine) IterPredicate(trancID uint64, pred func([]byte) int) (Iterator, error) {
	return e.mergedIter(trancID, pred)
}

// mergedIter builds the memtable-side heap (optionally predicate
// restricted) and the SST-side heap across every level, then merges
// them with the memtable as the tie-winning left child.
func (e *Engine) mergedIter(trancID uint64, pred func([]byte) int) (Iterator, error) {
	var mtIter *HeapIterator
	if pred != nil {
		mtIter = e.mt.IterMonotonePredicate(trancID, pred)
	} else {
		mtIter = e.mt.Begin(trancID)
	}

	e.levels.mu.RLock()
	defer e.levels.mu.RUnlock()

	var sstItems []SearchItem
	maxLevel := e.levels.curMaxLevel
	for lvl := 0; lvl <= maxLevel; lvl++ {
		for _, sst := range e.levels.sstsAtLevel(lvl) {
			var begin Iterator
			var err error
			if pred != nil {
				begin, _, err = NewSstIteratorRange(sst, 0, pred)
			} else {
				begin, err = NewSstIteratorAtFirst(sst, 0)
			}
			if err != nil {
				return nil, err
			}
			for begin.IsValid() {
				k, v := begin.Current()
				if pred != nil && pred(k) != 0 {
					break
				}
				sstItems = append(sstItems, SearchItem{
					Key: append([]byte(nil), k...), Value: append([]byte(nil), v...),
					TrancID: begin.TrancID(), Level: lvl, Idx: -int64(sst.ID),
				})
				if err := begin.Advance(); err != nil {
					return nil, err
				}
			}
		}
	}
	sstHeap := NewHeapIterator(sstItems, trancID)

	return NewTwoMergeIterator(mtIter, sstHeap)
}

// Memtable exposes the engine's write buffer for pkg/txn, which applies
// committed writes and performs conflict checks directly against it.
func (e *Engine) Memtable() *MemTable {
	return e.mt
}

// PendingWrite is one buffered write a transaction context applies at
// commit time.
type PendingWrite struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// CommitLockedWrites runs pkg/txn's commit-time conflict check and, if
// none is found, durably persists the batch via walAppend and applies
// writes to the memtable — all inside one critical section that takes
// the level map's shared lock before the memtable's exclusive lock,
// matching Flush's own levels-before-memtable nesting so the two paths
// can never deadlock against each other. The SST probe threshold
// (max_flushed_tranc_id > trancID) is evaluated inside that same
// section, so a concurrent flush can't create a conflicting SST that
// slips past both checks.
func (e *Engine) CommitLockedWrites(writes []PendingWrite, trancID uint64, walAppend func() error) (conflict bool, err error) {
	e.levels.mu.RLock()
	defer e.levels.mu.RUnlock()
	e.mt.ExclusiveLock()
	defer e.mt.ExclusiveUnlock()

	for _, w := range writes {
		if newest, found := e.mt.NewestTrancID(w.Key); found && newest > trancID {
			return true, nil
		}
	}

	if e.levels.maxFlushedTrancIDLocked() > trancID {
		for _, w := range writes {
			newest, found, perr := e.levels.newestTrancIDLocked(w.Key)
			if perr != nil {
				return false, perr
			}
			if found && newest > trancID {
				return true, nil
			}
		}
	}

	if err := walAppend(); err != nil {
		return false, err
	}
	for _, w := range writes {
		if w.Tombstone {
			e.mt.PutLocked(w.Key, nil, trancID)
		} else {
			e.mt.PutLocked(w.Key, w.Value, trancID)
		}
	}
	return false, nil
}

// MaybeFlush triggers a flush if the memtable has grown past
// TotalMemLimit, mirroring the threshold Put checks after every write.
// pkg/txn calls this after a commit applies writes outside any lock, the
// same way Put does. Returns the flushed max_tranc_id, or 0 if no flush
// occurred.
func (e *Engine) MaybeFlush() (uint64, error) {
	if e.mt.TotalSize() >= e.opts.TotalMemLimit {
		return e.Flush()
	}
	return 0, nil
}

// FreezeIfOverflowing freezes the active memtable generation if it has
// grown past PerMemLimit. pkg/txn calls this after committing a batch of
// writes applied directly via PutLocked, which bypasses Put's own
// freeze check.
func (e *Engine) FreezeIfOverflowing() {
	e.mt.FreezeIfOverflowing()
}
