package lsm

// ConcatIterator sequentially iterates a sorted slice of key-disjoint
// SSTs (an L1+ level), moving to the next SST once the current one is
// exhausted.
type ConcatIterator struct {
	ssts     []*SST
	maxTranc uint64
	idx      int
	inner    *SstIterator
}

// NewConcatIterator positions at the first visible entry across ssts,
// which must already be sorted by FirstKey ascending and key-disjoint.
func NewConcatIterator(ssts []*SST, maxTranc uint64) (*ConcatIterator, error) {
	it := &ConcatIterator{ssts: ssts, maxTranc: maxTranc}
	if err := it.seekSST(0); err != nil {
		return nil, err
	}
	return it, nil
}

// NewConcatIteratorAtKey positions at the first visible entry with key >=
// target.
func NewConcatIteratorAtKey(ssts []*SST, maxTranc uint64, target []byte) (*ConcatIterator, error) {
	idx := 0
	for idx < len(ssts) && bytesLess(ssts[idx].LastKey, target) {
		idx++
	}
	it := &ConcatIterator{ssts: ssts, maxTranc: maxTranc}
	if idx >= len(ssts) {
		it.exhaust()
		return it, nil
	}
	inner, err := NewSstIteratorAtKey(ssts[idx], maxTranc, target)
	if err != nil {
		return nil, err
	}
	it.idx = idx
	it.inner = inner
	if !inner.IsValid() {
		if err := it.seekSST(idx + 1); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func bytesLess(a, b []byte) bool {
	return string(a) < string(b)
}

func (it *ConcatIterator) seekSST(idx int) error {
	for idx < len(it.ssts) {
		inner, err := NewSstIteratorAtFirst(it.ssts[idx], it.maxTranc)
		if err != nil {
			return err
		}
		if inner.IsValid() {
			it.idx = idx
			it.inner = inner
			return nil
		}
		idx++
	}
	it.exhaust()
	return nil
}

func (it *ConcatIterator) exhaust() {
	it.idx = len(it.ssts)
	it.inner = nil
}

func (it *ConcatIterator) Advance() error {
	if it.inner == nil {
		return nil
	}
	if err := it.inner.Advance(); err != nil {
		return err
	}
	if it.inner.IsValid() {
		return nil
	}
	return it.seekSST(it.idx + 1)
}

func (it *ConcatIterator) Current() (key, value []byte) {
	if it.inner == nil {
		return nil, nil
	}
	return it.inner.Current()
}

func (it *ConcatIterator) TrancID() uint64 {
	if it.inner == nil {
		return 0
	}
	return it.inner.TrancID()
}

func (it *ConcatIterator) IsValid() bool {
	return it.inner != nil && it.inner.IsValid()
}

func (it *ConcatIterator) IsEnd() bool {
	return !it.IsValid()
}
