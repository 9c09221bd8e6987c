package lsm

import "bytes"

// BlockIterator walks one Block's entries in order, applying
// tranc_id visibility filtering and collapsing multi-version runs of the
// same key down to the newest visible version.
type BlockIterator struct {
	block    *Block
	maxTranc uint64
	pos      int
	cur      blockEntry
	valid    bool
}

// NewBlockIterator positions at the first visible entry.
func NewBlockIterator(block *Block, maxTranc uint64) *BlockIterator {
	it := &BlockIterator{block: block, maxTranc: maxTranc, pos: 0}
	it.skipToVisible()
	return it
}

// NewBlockIteratorSeek positions at the first visible entry with key >= target.
func NewBlockIteratorSeek(block *Block, maxTranc uint64, target []byte) *BlockIterator {
	it := &BlockIterator{block: block, maxTranc: maxTranc, pos: block.SeekKey(target)}
	it.skipToVisible()
	return it
}

// skipToVisible advances pos until it references a visible entry or runs
// off the end of the block.
func (it *BlockIterator) skipToVisible() {
	for it.pos < it.block.NumEntries() {
		e, err := it.block.EntryAt(it.pos)
		if err != nil {
			it.valid = false
			return
		}
		if it.maxTranc != 0 && e.trancID > it.maxTranc {
			it.pos++
			continue
		}
		it.cur = e
		it.valid = true
		return
	}
	it.valid = false
}

func (it *BlockIterator) Advance() error {
	if !it.valid {
		return nil
	}
	key := it.cur.key
	for it.pos < it.block.NumEntries() {
		e, err := it.block.EntryAt(it.pos)
		if err != nil {
			it.valid = false
			return err
		}
		if !bytes.Equal(e.key, key) {
			break
		}
		it.pos++
	}
	it.skipToVisible()
	return nil
}

func (it *BlockIterator) Current() (key, value []byte) {
	return it.cur.key, it.cur.value
}

func (it *BlockIterator) TrancID() uint64 {
	return it.cur.trancID
}

func (it *BlockIterator) IsValid() bool {
	return it.valid
}

func (it *BlockIterator) IsEnd() bool {
	return !it.valid
}
