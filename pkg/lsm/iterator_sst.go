package lsm

import "bytes"

// SstIterator composes the block index with a BlockIterator, rolling
// forward to the next block once the current one is exhausted.
type SstIterator struct {
	sst      *SST
	maxTranc uint64
	blockIdx int
	inner    *BlockIterator
	endKey   []byte // exclusive upper bound, nil for unbounded
}

// NewSstIteratorAtFirst positions at the first visible entry in the SST.
func NewSstIteratorAtFirst(sst *SST, maxTranc uint64) (*SstIterator, error) {
	it := &SstIterator{sst: sst, maxTranc: maxTranc}
	if err := it.seekBlock(0, nil); err != nil {
		return nil, err
	}
	return it, nil
}

// NewSstIteratorAtKey positions at the first visible entry with key >=
// target, or at end if none.
func NewSstIteratorAtKey(sst *SST, maxTranc uint64, target []byte) (*SstIterator, error) {
	idx := findBlockIdx(sst.metas, target)
	if idx < 0 {
		// target sorts before the first block or within a gap; fall back
		// to scanning from the first block whose LastKey >= target.
		idx = seekBlockForRange(sst.metas, target)
	}
	it := &SstIterator{sst: sst, maxTranc: maxTranc}
	if err := it.seekBlock(idx, target); err != nil {
		return nil, err
	}
	return it, nil
}

// NewSstIteratorRange returns a (begin, end) pair delimiting the maximal
// contiguous range of visible entries satisfying a monotone predicate.
// pred(key) returns <0 (target left), 0 (match), >0 (target right).
func NewSstIteratorRange(sst *SST, maxTranc uint64, pred func([]byte) int) (*SstIterator, *SstIterator, error) {
	lo, hi := 0, len(sst.metas)-1
	matchBlock := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		c := comparePredToRange(pred, sst.metas[mid])
		switch {
		case c == 0:
			matchBlock = mid
			lo, hi = mid, mid // narrow further below
		case c < 0:
			hi = mid - 1
		default:
			lo = mid + 1
		}
		if matchBlock >= 0 {
			break
		}
	}
	if matchBlock < 0 {
		end, err := NewSstIteratorAtFirst(sst, maxTranc)
		if err != nil {
			return nil, nil, err
		}
		end.exhaust()
		return end, end, nil
	}

	// Expand left and right across blocks whose range still matches.
	left := matchBlock
	for left > 0 && comparePredToRange(pred, sst.metas[left-1]) == 0 {
		left--
	}
	right := matchBlock
	for right+1 < len(sst.metas) && comparePredToRange(pred, sst.metas[right+1]) == 0 {
		right++
	}

	begin := &SstIterator{sst: sst, maxTranc: maxTranc}
	if err := begin.seekBlockPredicate(left, pred); err != nil {
		return nil, nil, err
	}

	end := &SstIterator{sst: sst, maxTranc: maxTranc}
	if right+1 < len(sst.metas) {
		if err := end.seekBlock(right+1, nil); err != nil {
			return nil, nil, err
		}
	} else {
		end.exhaust()
	}
	return begin, end, nil
}

func comparePredToRange(pred func([]byte) int, m BlockMetaEntry) int {
	cLo := pred(m.FirstKey)
	cHi := pred(m.LastKey)
	if cHi > 0 {
		return 1 // even the block's last key sorts below the range
	}
	if cLo < 0 {
		return -1 // even the block's first key sorts above the range
	}
	return 0
}

func seekBlockForRange(metas []BlockMetaEntry, target []byte) int {
	for i, m := range metas {
		if bytes.Compare(m.LastKey, target) >= 0 {
			return i
		}
	}
	return len(metas)
}

func (it *SstIterator) seekBlock(idx int, seekKey []byte) error {
	for idx < len(it.sst.metas) {
		block, err := it.sst.readBlock(idx)
		if err != nil {
			return err
		}
		var bi *BlockIterator
		if seekKey != nil {
			bi = NewBlockIteratorSeek(block, it.maxTranc, seekKey)
		} else {
			bi = NewBlockIterator(block, it.maxTranc)
		}
		if bi.IsValid() {
			it.blockIdx = idx
			it.inner = bi
			return nil
		}
		idx++
		seekKey = nil
	}
	it.exhaust()
	return nil
}

func (it *SstIterator) seekBlockPredicate(idx int, pred func([]byte) int) error {
	for idx < len(it.sst.metas) {
		block, err := it.sst.readBlock(idx)
		if err != nil {
			return err
		}
		bi := NewBlockIterator(block, it.maxTranc)
		for bi.IsValid() && pred(bi.cur.key) > 0 {
			if err := bi.Advance(); err != nil {
				return err
			}
		}
		if bi.IsValid() && pred(bi.cur.key) == 0 {
			it.blockIdx = idx
			it.inner = bi
			return nil
		}
		idx++
	}
	it.exhaust()
	return nil
}

func (it *SstIterator) exhaust() {
	it.blockIdx = len(it.sst.metas)
	it.inner = nil
}

func (it *SstIterator) Advance() error {
	if it.inner == nil {
		return nil
	}
	if err := it.inner.Advance(); err != nil {
		return err
	}
	if it.inner.IsValid() {
		return nil
	}
	return it.seekBlock(it.blockIdx+1, nil)
}

func (it *SstIterator) Current() (key, value []byte) {
	if it.inner == nil {
		return nil, nil
	}
	return it.inner.Current()
}

func (it *SstIterator) TrancID() uint64 {
	if it.inner == nil {
		return 0
	}
	return it.inner.TrancID()
}

func (it *SstIterator) IsValid() bool {
	return it.inner != nil && it.inner.IsValid()
}

func (it *SstIterator) IsEnd() bool {
	return !it.IsValid()
}
