package lsm

import "bytes"

// SearchItem is one candidate entry contributed to a HeapIterator by a
// single source (a memtable generation, an SST, or a predicate range
// within one of those). Idx is the source tag used to break ties between
// overlapping sources: the convention throughout this package is
// -sst_id, so that a larger sst_id (a newer SST) sorts first and wins.
// Memtable sources use positive idx values with the active table tagged
// lowest, so it wins ties over the frozen tables.
type SearchItem struct {
	Key     []byte
	Value   []byte
	TrancID uint64
	Level   int
	Idx     int64
}

// searchItemLess implements the heap ordering from the spec: key
// ascending; tranc_id descending; level ascending; idx ascending. The
// item that sorts first is the one that wins among duplicates of the
// same key.
func searchItemLess(a, b SearchItem) bool {
	if c := bytes.Compare(a.Key, b.Key); c != 0 {
		return c < 0
	}
	if a.TrancID != b.TrancID {
		return a.TrancID > b.TrancID
	}
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	return a.Idx < b.Idx
}

// searchItemHeap is a container/heap.Interface over a slice of SearchItem.
type searchItemHeap []SearchItem

func (h searchItemHeap) Len() int            { return len(h) }
func (h searchItemHeap) Less(i, j int) bool  { return searchItemLess(h[i], h[j]) }
func (h searchItemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *searchItemHeap) Push(x interface{}) { *h = append(*h, x.(SearchItem)) }
func (h *searchItemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
