package lsm

import (
	"container/list"
	"sync"
)

// MemTable is the in-memory write buffer: an active skip list plus an
// insertion-ordered queue of frozen skip lists. Locking discipline: two
// independent RWMutexes, curLock for the active table and frozenLock for
// the frozen deque, always acquired cur-before-frozen to avoid deadlock.
type MemTable struct {
	curLock sync.RWMutex
	active  *SkipList
	curSize int

	frozenLock  sync.RWMutex
	frozen      *list.List // front = newest frozen, back = oldest (next flush candidate)
	frozenSizes map[*SkipList]int

	perTableLimit int
}

// NewMemTable creates an empty MemTable whose active table freezes once it
// exceeds perTableLimit bytes.
func NewMemTable(perTableLimit int) *MemTable {
	return &MemTable{
		active:        NewSkipList(),
		frozen:        list.New(),
		frozenSizes:   make(map[*SkipList]int),
		perTableLimit: perTableLimit,
	}
}

// TotalSize returns active_size + sum(frozen_sizes).
func (mt *MemTable) TotalSize() int {
	mt.curLock.RLock()
	total := mt.curSize
	mt.curLock.RUnlock()

	mt.frozenLock.RLock()
	for _, sz := range mt.frozenSizes {
		total += sz
	}
	mt.frozenLock.RUnlock()
	return total
}

// Put writes (key, value, trancID) to the active table, then freezes it
// if its size has reached perTableLimit.
func (mt *MemTable) Put(key, value []byte, trancID uint64) {
	mt.curLock.Lock()
	delta := mt.active.Put(key, value, trancID)
	mt.curSize += delta
	overflow := mt.curSize >= mt.perTableLimit
	mt.curLock.Unlock()

	if overflow {
		mt.freezeActive()
	}
}

// Remove writes a tombstone (empty value) for key.
func (mt *MemTable) Remove(key []byte, trancID uint64) {
	mt.Put(key, nil, trancID)
}

// freezeActive moves the active table to the head of the frozen deque and
// replaces it with a fresh empty skip list.
func (mt *MemTable) freezeActive() {
	mt.curLock.Lock()
	if mt.active.Len() == 0 {
		mt.curLock.Unlock()
		return
	}
	old := mt.active
	size := mt.curSize
	mt.active = NewSkipList()
	mt.curSize = 0
	mt.curLock.Unlock()

	mt.frozenLock.Lock()
	mt.frozen.PushFront(old)
	mt.frozenSizes[old] = size
	mt.frozenLock.Unlock()
}

// Get consults the active table, then frozen tables newest to oldest. A
// tombstone found anywhere in the memtable is a conclusive "deleted"
// answer: callers must not fall through to the SSTs for that key.
func (mt *MemTable) Get(key []byte, trancID uint64) (Entry, bool) {
	mt.curLock.RLock()
	if n := mt.active.Get(key, trancID); n != nil {
		e := Entry{Key: n.key, Value: n.value, TrancID: n.trancID}
		mt.curLock.RUnlock()
		return e, true
	}
	mt.curLock.RUnlock()

	mt.frozenLock.RLock()
	defer mt.frozenLock.RUnlock()
	for e := mt.frozen.Front(); e != nil; e = e.Next() {
		sl := e.Value.(*SkipList)
		if n := sl.Get(key, trancID); n != nil {
			return Entry{Key: n.key, Value: n.value, TrancID: n.trancID}, true
		}
	}
	return Entry{}, false
}

// ExclusiveLock acquires both the active and frozen locks, always
// cur-before-frozen, for callers (the transaction manager's commit path)
// that must check for conflicts and then apply writes as one atomic
// critical section.
func (mt *MemTable) ExclusiveLock() {
	mt.curLock.Lock()
	mt.frozenLock.Lock()
}

// ExclusiveUnlock releases the locks taken by ExclusiveLock, in reverse
// order.
func (mt *MemTable) ExclusiveUnlock() {
	mt.frozenLock.Unlock()
	mt.curLock.Unlock()
}

// NewestTrancID reports the tranc_id of the most recent version of key
// across the active and frozen tables, ignoring visibility, or
// found=false if key isn't present in the memtable at all. Callers must
// hold ExclusiveLock (or accept a racy snapshot).
func (mt *MemTable) NewestTrancID(key []byte) (uint64, bool) {
	if n := mt.active.Get(key, 0); n != nil {
		return n.trancID, true
	}
	for e := mt.frozen.Front(); e != nil; e = e.Next() {
		sl := e.Value.(*SkipList)
		if n := sl.Get(key, 0); n != nil {
			return n.trancID, true
		}
	}
	return 0, false
}

// PutLocked applies a write directly to the active table. Callers must
// hold ExclusiveLock; used by the transaction manager to apply a
// transaction's buffered writes under the same critical section as its
// conflict check.
func (mt *MemTable) PutLocked(key, value []byte, trancID uint64) {
	delta := mt.active.Put(key, value, trancID)
	mt.curSize += delta
}

// FreezeIfOverflowing freezes the active table if it has grown past
// perTableLimit. Called by writers (PutLocked callers) that bypassed
// Put's own inline check.
func (mt *MemTable) FreezeIfOverflowing() {
	mt.curLock.RLock()
	overflow := mt.curSize >= mt.perTableLimit
	mt.curLock.RUnlock()
	if overflow {
		mt.freezeActive()
	}
}

// FrozenHandle is a frozen table popped off the deque by FreezeOldest.
// The caller streams its Entries into an SST builder and builds the SST
// itself.
type FrozenHandle struct {
	mt *SkipList
}

// Entries returns the frozen table's contents via SkipList.Flush, and the
// (min, max) tranc_id observed.
func (fh *FrozenHandle) Entries() ([]Entry, uint64, uint64) {
	entries := fh.mt.Flush()
	var lo, hi uint64
	for i, e := range entries {
		if i == 0 || e.TrancID < lo {
			lo = e.TrancID
		}
		if e.TrancID > hi {
			hi = e.TrancID
		}
	}
	return entries, lo, hi
}

// FreezeOldest freezes the active table if needed and pops the oldest
// frozen table, returning a handle the caller flushes to an SST and then
// discards. Returns nil if there is nothing to flush.
func (mt *MemTable) FreezeOldest() *FrozenHandle {
	mt.frozenLock.Lock()
	if mt.frozen.Len() == 0 {
		mt.frozenLock.Unlock()
		mt.freezeActive()
		mt.frozenLock.Lock()
	}
	if mt.frozen.Len() == 0 {
		mt.frozenLock.Unlock()
		return nil
	}
	back := mt.frozen.Back()
	mt.frozen.Remove(back)
	sl := back.Value.(*SkipList)
	delete(mt.frozenSizes, sl)
	mt.frozenLock.Unlock()

	return &FrozenHandle{mt: sl}
}

// Begin returns a heap iterator snapshotting active + frozen tables under
// both locks held shared for the duration of construction.
func (mt *MemTable) Begin(trancID uint64) *HeapIterator {
	mt.curLock.RLock()
	defer mt.curLock.RUnlock()
	mt.frozenLock.RLock()
	defer mt.frozenLock.RUnlock()

	items := mt.snapshotItems(trancID, nil)
	return NewHeapIterator(items, trancID)
}

// IterMonotonePredicate mirrors Begin but restricts each table to the
// predicate's matching contiguous range.
func (mt *MemTable) IterMonotonePredicate(trancID uint64, pred func([]byte) int) *HeapIterator {
	mt.curLock.RLock()
	defer mt.curLock.RUnlock()
	mt.frozenLock.RLock()
	defer mt.frozenLock.RUnlock()

	items := mt.snapshotItems(trancID, pred)
	return NewHeapIterator(items, trancID)
}

// snapshotItems walks every table (active first with source index 1,
// then frozen tables newest to oldest with rising indexes, so newer
// tables win heap ties) and materializes SearchItems, optionally
// restricted by pred.
func (mt *MemTable) snapshotItems(trancID uint64, pred func([]byte) int) []SearchItem {
	var items []SearchItem

	collect := func(sl *SkipList, srcIdx int) {
		var start *skipListNode
		var end *skipListNode
		if pred == nil {
			start = sl.Begin()
		} else {
			start, end = sl.IterMonotonePredicate(pred)
		}
		for n := start; n != nil && n != end; n = n.forward[0] {
			items = append(items, SearchItem{
				Key: n.key, Value: n.value, TrancID: n.trancID,
				Level: 0, Idx: int64(srcIdx),
			})
		}
	}

	// Active table is the newest source; give it the lowest idx so it
	// wins heap ties over frozen tables.
	srcIdx := 1
	collect(mt.active, srcIdx)
	srcIdx++
	for e := mt.frozen.Front(); e != nil; e = e.Next() {
		collect(e.Value.(*SkipList), srcIdx)
		srcIdx++
	}
	return items
}
