package lsm

import "os"

// fullCompact merges level into level+1, recursively making room in
// level+1 first if it is itself over threshold. Caller must hold lm.mu
// exclusively.
func (lm *levelManager) fullCompact(level int) error {
	if len(lm.levelSSTs[level+1]) >= lm.levelRatio {
		if err := lm.fullCompact(level + 1); err != nil {
			return err
		}
	}

	var merged Iterator
	var err error
	if level == 0 {
		merged, err = lm.buildL0MergeIterator()
	} else {
		merged, err = lm.buildConcatMergeIterator(level)
	}
	if err != nil {
		return err
	}

	newSSTs, err := lm.streamToSSTs(merged, level+1)
	if err != nil {
		return err
	}

	lm.retireLevel(level)
	lm.retireLevel(level + 1)
	for _, sst := range newSSTs {
		lm.ssts[sst.ID] = sst
		lm.levelSSTs[level+1] = append(lm.levelSSTs[level+1], sst.ID)
	}
	lm.sortLevelByFirstKey(level + 1)
	if level+1 > lm.curMaxLevel {
		lm.curMaxLevel = level + 1
	}
	return nil
}

// buildL0MergeIterator merges all current L0 SSTs (newest wins ties)
// against a concat iterator over current L1. Uses the tombstone-preserving
// heap constructor: a delete in L0 for a key whose live value already sits
// in L1 must itself be written into the merged output, or the old L1
// value would win the TwoMergeIterator tie and the key would resurrect.
func (lm *levelManager) buildL0MergeIterator() (Iterator, error) {
	l0 := lm.sstsAtLevel(0)
	items, err := collectWholeSSTItems(l0, 0)
	if err != nil {
		return nil, err
	}
	l0Heap := NewHeapIteratorForCompaction(items, 0)

	l1Concat, err := NewConcatIterator(lm.sstsAtLevel(1), 0)
	if err != nil {
		return nil, err
	}

	return NewTwoMergeIterator(l0Heap, l1Concat)
}

// collectWholeSSTItems materializes every entry of every sst as a
// SearchItem tagged with -sst_id (so a larger sst_id sorts first and
// wins ties) and the given level.
func collectWholeSSTItems(ssts []*SST, level int) ([]SearchItem, error) {
	var items []SearchItem
	for _, sst := range ssts {
		it, err := NewSstIteratorAtFirst(sst, 0)
		if err != nil {
			return nil, err
		}
		for it.IsValid() {
			k, v := it.Current()
			items = append(items, SearchItem{
				Key: append([]byte(nil), k...), Value: append([]byte(nil), v...),
				TrancID: it.TrancID(), Level: level, Idx: -int64(sst.ID),
			})
			if err := it.Advance(); err != nil {
				return nil, err
			}
		}
	}
	return items, nil
}

// buildConcatMergeIterator merges level Lx into Ly via two concat
// iterators, Lx winning ties (x has lower level number, more recent).
func (lm *levelManager) buildConcatMergeIterator(level int) (Iterator, error) {
	left, err := NewConcatIterator(lm.sstsAtLevel(level), 0)
	if err != nil {
		return nil, err
	}
	right, err := NewConcatIterator(lm.sstsAtLevel(level+1), 0)
	if err != nil {
		return nil, err
	}
	return NewTwoMergeIterator(left, right)
}

// streamToSSTs drains merged into a sequence of new SSTs targeting
// targetLevel, sealing each time estimated_size reaches the level's
// target size. Tombstones are preserved conservatively at every level
// per the spec's open question.
func (lm *levelManager) streamToSSTs(merged Iterator, targetLevel int) ([]*SST, error) {
	targetSize := lm.sstSizeForLevel(targetLevel)
	var out []*SST
	builder := NewSSTBuilder(lm.blockSize, lm.bloomSize, lm.bloomFPR)

	seal := func() error {
		if builder.IsEmpty() {
			return nil
		}
		sstID := lm.allocSSTID()
		sst, err := builder.Build(lm.dir, sstID, targetLevel, lm.cache)
		if err != nil {
			return err
		}
		out = append(out, sst)
		builder = NewSSTBuilder(lm.blockSize, lm.bloomSize, lm.bloomFPR)
		return nil
	}

	for merged.IsValid() {
		k, v := merged.Current()
		if err := builder.Add(k, v, merged.TrancID()); err != nil {
			return nil, err
		}
		if builder.EstimatedSize() >= targetSize {
			if err := seal(); err != nil {
				return nil, err
			}
		}
		if err := merged.Advance(); err != nil {
			return nil, err
		}
	}
	if err := seal(); err != nil {
		return nil, err
	}
	return out, nil
}

// retireLevel deletes every SST's backing file in lvl, archiving it
// first if an Archiver is configured, drops its descriptor, invalidates
// its cache entries, and clears the level's deque.
func (lm *levelManager) retireLevel(lvl int) {
	for _, id := range lm.levelSSTs[lvl] {
		sst, ok := lm.ssts[id]
		if !ok {
			continue
		}
		path := sst.file.path
		if lm.archiver != nil {
			_ = lm.archiver.Archive(path)
		}
		sst.Close()
		if lm.cache != nil {
			lm.cache.InvalidateSST(id)
		}
		os.Remove(path)
		delete(lm.ssts, id)
	}
	lm.levelSSTs[lvl] = nil
}
