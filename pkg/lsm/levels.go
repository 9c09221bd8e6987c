package lsm

import (
	"bytes"
	"sort"
	"sync"
)

// levelManager owns the SST level map: level -> ordered deque of sst_id,
// plus the sst_id -> descriptor table. level 0 holds overlapping SSTs
// ordered newest-first; level >= 1 holds key-disjoint SSTs sorted by
// FirstKey ascending.
type levelManager struct {
	mu sync.RWMutex

	dir        string
	levelRatio int
	blockSize  int
	bloomSize  int
	bloomFPR   float64
	perMemLimit int
	cache      *BlockCache
	archiver   Archiver

	nextSSTID  uint64
	curMaxLevel int
	levelSSTs  map[int][]uint64
	ssts       map[uint64]*SST
}

func newLevelManager(opts Options, cache *BlockCache) *levelManager {
	return &levelManager{
		dir:         opts.DataDir,
		levelRatio:  opts.LevelRatio,
		blockSize:   opts.BlockSize,
		bloomSize:   opts.BloomExpectedSize,
		bloomFPR:    opts.BloomFalsePositiveRate,
		perMemLimit: opts.PerMemLimit,
		cache:       cache,
		archiver:    opts.Archiver,
		nextSSTID:   1,
		levelSSTs:   make(map[int][]uint64),
		ssts:        make(map[uint64]*SST),
	}
}

// allocSSTID returns the next sst_id, incrementing the counter.
func (lm *levelManager) allocSSTID() uint64 {
	id := lm.nextSSTID
	lm.nextSSTID++
	return id
}

// installSST records a freshly built SST under lvl, placing it
// correctly in that level's deque.
func (lm *levelManager) installSST(sst *SST, lvl int) {
	lm.ssts[sst.ID] = sst
	if lvl == 0 {
		lm.levelSSTs[0] = append([]uint64{sst.ID}, lm.levelSSTs[0]...)
	} else {
		lm.levelSSTs[lvl] = append(lm.levelSSTs[lvl], sst.ID)
		lm.sortLevelByFirstKey(lvl)
	}
	if lvl > lm.curMaxLevel {
		lm.curMaxLevel = lvl
	}
}

func (lm *levelManager) sortLevelByFirstKey(lvl int) {
	ids := lm.levelSSTs[lvl]
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(lm.ssts[ids[i]].FirstKey, lm.ssts[ids[j]].FirstKey) < 0
	})
}

// sstSizeForLevel is the target byte size for an SST sealed while
// compacting into level L: per_mem_limit * level_ratio^L.
func (lm *levelManager) sstSizeForLevel(level int) int {
	size := lm.perMemLimit
	for i := 0; i < level; i++ {
		size *= lm.levelRatio
	}
	return size
}

// Get routes a point lookup through L0 (newest-first) then binary
// searches L1+.
func (lm *levelManager) Get(key []byte, maxTranc uint64) (Entry, bool, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	for _, id := range lm.levelSSTs[0] {
		sst := lm.ssts[id]
		e, outcome, err := sst.Lookup(key, maxTranc)
		if err != nil {
			return Entry{}, false, err
		}
		switch outcome {
		case lookupLive:
			return e, true, nil
		case lookupTombstone:
			return Entry{}, false, nil
		}
	}

	for lvl := 1; lvl <= lm.curMaxLevel; lvl++ {
		ids := lm.levelSSTs[lvl]
		idx := sort.Search(len(ids), func(i int) bool {
			return bytes.Compare(lm.ssts[ids[i]].LastKey, key) >= 0
		})
		if idx >= len(ids) {
			continue
		}
		sst := lm.ssts[ids[idx]]
		if bytes.Compare(key, sst.FirstKey) < 0 {
			continue
		}
		e, outcome, err := sst.Lookup(key, maxTranc)
		if err != nil {
			return Entry{}, false, err
		}
		switch outcome {
		case lookupLive:
			return e, true, nil
		case lookupTombstone:
			return Entry{}, false, nil
		}
	}
	return Entry{}, false, nil
}

// NewestTrancID reports the tranc_id of the most recent version of key
// across every SST in the level map, ignoring visibility filtering, or
// found=false if key is absent everywhere. A tombstone counts as
// existing with its own tranc_id: callers (the transaction manager's
// commit-time conflict check) only care about recency, not whether the
// newest version is a deletion.
func (lm *levelManager) NewestTrancID(key []byte) (uint64, bool, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.newestTrancIDLocked(key)
}

// maxFlushedTrancIDLocked returns the highest tranc_id any installed SST
// was built from. Caller must hold mu (shared or exclusive).
func (lm *levelManager) maxFlushedTrancIDLocked() uint64 {
	var max uint64
	for _, sst := range lm.ssts {
		if sst.MaxTranc > max {
			max = sst.MaxTranc
		}
	}
	return max
}

// newestTrancIDLocked is NewestTrancID's body, assuming the caller
// already holds mu.
func (lm *levelManager) newestTrancIDLocked(key []byte) (uint64, bool, error) {
	for _, id := range lm.levelSSTs[0] {
		sst := lm.ssts[id]
		e, outcome, err := sst.Lookup(key, 0)
		if err != nil {
			return 0, false, err
		}
		if outcome != lookupAbsent {
			return e.TrancID, true, nil
		}
	}

	for lvl := 1; lvl <= lm.curMaxLevel; lvl++ {
		ids := lm.levelSSTs[lvl]
		idx := sort.Search(len(ids), func(i int) bool {
			return bytes.Compare(lm.ssts[ids[i]].LastKey, key) >= 0
		})
		if idx >= len(ids) {
			continue
		}
		sst := lm.ssts[ids[idx]]
		if bytes.Compare(key, sst.FirstKey) < 0 {
			continue
		}
		e, outcome, err := sst.Lookup(key, 0)
		if err != nil {
			return 0, false, err
		}
		if outcome != lookupAbsent {
			return e.TrancID, true, nil
		}
	}
	return 0, false, nil
}

// sstsAtLevel returns the SSTs installed at lvl, in that level's deque
// order.
func (lm *levelManager) sstsAtLevel(lvl int) []*SST {
	ids := lm.levelSSTs[lvl]
	out := make([]*SST, len(ids))
	for i, id := range ids {
		out[i] = lm.ssts[id]
	}
	return out
}
