package lsm

import "bytes"

// TwoMergeIterator is a binary merge of two child iterators. When both
// children are positioned on the same key, the left child wins and the
// right child is advanced past the duplicate — so callers should hand
// the newer/higher-priority source as left (memtable over L0, L0 over
// L1, lower-level-number over higher during compaction).
type TwoMergeIterator struct {
	left, right Iterator
	useLeft     bool
}

// NewTwoMergeIterator builds the merge and positions at the first entry.
func NewTwoMergeIterator(left, right Iterator) (*TwoMergeIterator, error) {
	it := &TwoMergeIterator{left: left, right: right}
	if err := it.skipRightDuplicate(); err != nil {
		return nil, err
	}
	it.chooseSide()
	return it, nil
}

// skipRightDuplicate advances right past any entry whose key equals
// left's current key, since left always wins ties.
func (it *TwoMergeIterator) skipRightDuplicate() error {
	if !it.left.IsValid() || !it.right.IsValid() {
		return nil
	}
	lk, _ := it.left.Current()
	rk, _ := it.right.Current()
	if bytes.Equal(lk, rk) {
		return it.right.Advance()
	}
	return nil
}

func (it *TwoMergeIterator) chooseSide() {
	switch {
	case !it.left.IsValid() && !it.right.IsValid():
		it.useLeft = true
	case !it.left.IsValid():
		it.useLeft = false
	case !it.right.IsValid():
		it.useLeft = true
	default:
		lk, _ := it.left.Current()
		rk, _ := it.right.Current()
		it.useLeft = bytes.Compare(lk, rk) <= 0
	}
}

func (it *TwoMergeIterator) Advance() error {
	var err error
	if it.useLeft {
		err = it.left.Advance()
	} else {
		err = it.right.Advance()
	}
	if err != nil {
		return err
	}
	if err := it.skipRightDuplicate(); err != nil {
		return err
	}
	it.chooseSide()
	return nil
}

func (it *TwoMergeIterator) Current() (key, value []byte) {
	if it.useLeft {
		return it.left.Current()
	}
	return it.right.Current()
}

func (it *TwoMergeIterator) TrancID() uint64 {
	if it.useLeft {
		return it.left.TrancID()
	}
	return it.right.TrancID()
}

func (it *TwoMergeIterator) IsValid() bool {
	if it.useLeft {
		return it.left.IsValid()
	}
	return it.right.IsValid()
}

func (it *TwoMergeIterator) IsEnd() bool {
	return !it.left.IsValid() && !it.right.IsValid()
}
