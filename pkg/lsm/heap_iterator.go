package lsm

import "container/heap"

// HeapIterator is a k-way merge over any number of SearchItem sources
// (memtables, whole SSTs, or SST predicate ranges). On construction and
// on every Advance it pops the winning entry, drains every other entry
// sharing its key (they are superseded versions), and filters out
// anything invisible at maxTranc. Whether a tombstoned winner is
// skipped or surfaced depends on which constructor built it.
type HeapIterator struct {
	h              searchItemHeap
	maxTranc       uint64
	cur            SearchItem
	valid          bool
	keepTombstones bool
}

// NewHeapIterator builds a HeapIterator over items, visible up to and
// including maxTranc (0 disables visibility filtering). Tombstones are
// skipped entirely: this is the read-path constructor, used wherever the
// caller wants live values only (point lookups, range scans).
func NewHeapIterator(items []SearchItem, maxTranc uint64) *HeapIterator {
	return newHeapIterator(items, maxTranc, false)
}

// NewHeapIteratorForCompaction builds a HeapIterator like NewHeapIterator,
// except a tombstone is surfaced as the winning entry instead of being
// skipped. Compaction must carry a delete marker forward into the next
// level rather than silently dropping it, or an older value for the same
// key sitting below the level being compacted would resurrect.
func NewHeapIteratorForCompaction(items []SearchItem, maxTranc uint64) *HeapIterator {
	return newHeapIterator(items, maxTranc, true)
}

func newHeapIterator(items []SearchItem, maxTranc uint64, keepTombstones bool) *HeapIterator {
	h := make(searchItemHeap, len(items))
	copy(h, items)
	heap.Init(&h)

	it := &HeapIterator{h: h, maxTranc: maxTranc, keepTombstones: keepTombstones}
	it.settle()
	return it
}

// settle pops the current winner (if any), drains duplicate keys, and
// re-applies visibility filtering until a winning entry is at the front
// or the heap is empty. A tombstoned winner is skipped unless
// keepTombstones is set.
func (it *HeapIterator) settle() {
	for {
		if it.h.Len() == 0 {
			it.valid = false
			return
		}
		top := heap.Pop(&it.h).(SearchItem)
		if it.maxTranc != 0 && top.TrancID > it.maxTranc {
			continue // invisible version; an older one of the same key may still be visible
		}
		it.drainSameKey(top.Key)

		if len(top.Value) == 0 && !it.keepTombstones {
			continue // tombstone: key already drained above, move to next key
		}
		it.cur = top
		it.valid = true
		return
	}
}

func (it *HeapIterator) drainSameKey(key []byte) {
	for it.h.Len() > 0 && bytesEqual(it.h[0].Key, key) {
		heap.Pop(&it.h)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (it *HeapIterator) Advance() error {
	it.settle()
	return nil
}

func (it *HeapIterator) Current() (key, value []byte) {
	return it.cur.Key, it.cur.Value
}

func (it *HeapIterator) TrancID() uint64 {
	return it.cur.TrancID
}

func (it *HeapIterator) IsValid() bool {
	return it.valid
}

func (it *HeapIterator) IsEnd() bool {
	return !it.valid
}
