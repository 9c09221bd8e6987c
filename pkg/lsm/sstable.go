package lsm

import (
	"encoding/binary"
	"hash/crc32"
)

const sstBlockIdxSentinel = -1

// SST is the in-memory descriptor for one sealed, immutable sorted
// string table file.
type SST struct {
	ID    uint64
	Level int

	file  *sstFile
	metas []BlockMetaEntry
	bloom *BloomFilter

	FirstKey []byte
	LastKey  []byte

	MinTranc uint64
	MaxTranc uint64

	cache *BlockCache
}

// openSSTDescriptor wraps a just-built file with its in-memory metadata
// without re-reading it from disk (the builder already has everything).
func openSSTDescriptor(path string, sstID uint64, level int, metas []BlockMetaEntry, bloom *BloomFilter, minTranc, maxTranc uint64, cache *BlockCache) (*SST, error) {
	f, err := openSSTFile(path)
	if err != nil {
		return nil, err
	}
	s := &SST{
		ID: sstID, Level: level, file: f, metas: metas, bloom: bloom,
		MinTranc: minTranc, MaxTranc: maxTranc, cache: cache,
	}
	if len(metas) > 0 {
		s.FirstKey = metas[0].FirstKey
		s.LastKey = metas[len(metas)-1].LastKey
	}
	return s, nil
}

// OpenSST reads an existing SST file from disk: the two trailing
// offsets, the bloom filter (if present), and the meta section
// (verifying its hash). The tranc_id range is derived by scanning every
// block's entries once.
func OpenSST(path string, sstID uint64, level int, cache *BlockCache) (*SST, error) {
	f, err := openSSTFile(path)
	if err != nil {
		return nil, err
	}

	trailer, err := f.ReadAt(f.Size()-8, 8)
	if err != nil {
		f.Close()
		return nil, err
	}
	metaOffset := int64(binary.LittleEndian.Uint32(trailer[0:4]))
	bloomOffset := int64(binary.LittleEndian.Uint32(trailer[4:8]))

	metaLen := bloomOffset - metaOffset
	if metaLen < 0 {
		f.Close()
		return nil, ErrCorruption
	}
	metaRaw, err := f.ReadAt(metaOffset, int(metaLen))
	if err != nil {
		f.Close()
		return nil, err
	}
	metas, err := DecodeBlockMeta(metaRaw)
	if err != nil {
		f.Close()
		return nil, err
	}

	var bloom *BloomFilter
	if bloomOffset+8 != f.Size() {
		bloomLen := f.Size() - 8 - bloomOffset
		bloomRaw, err := f.ReadAt(bloomOffset, int(bloomLen))
		if err != nil {
			f.Close()
			return nil, err
		}
		bloom, err = DecodeBloomFilter(bloomRaw)
		if err != nil {
			f.Close()
			return nil, err
		}
	}

	s := &SST{ID: sstID, Level: level, file: f, metas: metas, bloom: bloom, cache: cache}
	if len(metas) > 0 {
		s.FirstKey = metas[0].FirstKey
		s.LastKey = metas[len(metas)-1].LastKey
	}

	for i := range metas {
		blk, err := s.readBlock(i)
		if err != nil {
			f.Close()
			return nil, err
		}
		for j := 0; j < blk.NumEntries(); j++ {
			e, err := blk.EntryAt(j)
			if err != nil {
				f.Close()
				return nil, err
			}
			if s.MinTranc == 0 || e.trancID < s.MinTranc {
				s.MinTranc = e.trancID
			}
			if e.trancID > s.MaxTranc {
				s.MaxTranc = e.trancID
			}
		}
	}
	return s, nil
}

// Close releases the underlying mmap.
func (s *SST) Close() error {
	return s.file.Close()
}

// readBlock loads block i, verifying its checksum, consulting the shared
// cache first.
func (s *SST) readBlock(i int) (*Block, error) {
	if s.cache != nil {
		if b, ok := s.cache.Get(s.ID, i); ok {
			return b, nil
		}
	}

	start := int64(s.metas[i].Offset)
	var end int64
	if i+1 < len(s.metas) {
		end = int64(s.metas[i+1].Offset)
	} else {
		// Trailing block: ends where the meta section begins. The meta
		// section's own offset was recorded by the builder and is
		// reachable via the file's trailer; re-derive it here.
		trailer, err := s.file.ReadAt(s.file.Size()-8, 8)
		if err != nil {
			return nil, err
		}
		end = int64(binary.LittleEndian.Uint32(trailer[0:4]))
	}

	raw, err := s.file.ReadAt(start, int(end-start))
	if err != nil {
		return nil, err
	}
	if len(raw) < 4 {
		return nil, ErrCorruption
	}
	body := raw[:len(raw)-4]
	wantSum := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if crc32.ChecksumIEEE(body) != wantSum {
		return nil, newEngineError("checksum", "sstable", s.file.path, ErrCorruption)
	}

	block, err := DecodeBlock(body)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(s.ID, i, block)
	}
	return block, nil
}

// FindBlockIdx returns the index of the block that could contain key, or
// sstBlockIdxSentinel if the bloom filter proves it cannot, or if the
// key falls outside every block's range.
func (s *SST) FindBlockIdx(key []byte) int {
	if s.bloom != nil && !s.bloom.MayContain(key) {
		return sstBlockIdxSentinel
	}
	idx := findBlockIdx(s.metas, key)
	if idx < 0 {
		return sstBlockIdxSentinel
	}
	return idx
}

// lookupOutcome distinguishes "key truly absent from this SST" from "key
// present but resolves to a tombstone", which matters when scanning L0
// SSTs that may overlap: a tombstone still terminates the scan.
type lookupOutcome int

const (
	lookupAbsent lookupOutcome = iota
	lookupLive
	lookupTombstone
)

// Lookup performs a point lookup. maxTranc == 0 disables visibility
// filtering.
func (s *SST) Lookup(key []byte, maxTranc uint64) (Entry, lookupOutcome, error) {
	idx := s.FindBlockIdx(key)
	if idx == sstBlockIdxSentinel {
		return Entry{}, lookupAbsent, nil
	}
	block, err := s.readBlock(idx)
	if err != nil {
		return Entry{}, lookupAbsent, err
	}
	pos := block.SeekKey(key)
	for i := pos; i < block.NumEntries(); i++ {
		e, err := block.EntryAt(i)
		if err != nil {
			return Entry{}, lookupAbsent, err
		}
		if string(e.key) != string(key) {
			break
		}
		if maxTranc != 0 && e.trancID > maxTranc {
			continue
		}
		if len(e.value) == 0 {
			return Entry{Key: e.key, TrancID: e.trancID}, lookupTombstone, nil
		}
		return Entry{Key: e.key, Value: e.value, TrancID: e.trancID}, lookupLive, nil
	}
	return Entry{}, lookupAbsent, nil
}

// Get is the simple point-lookup wrapper: it reports a hit only for a
// live (non-tombstone) entry, collapsing "absent" and "tombstone" into
// the same false result. Callers that must distinguish the two (e.g.
// level routing across overlapping L0 SSTs) should use Lookup directly.
func (s *SST) Get(key []byte, maxTranc uint64) (Entry, bool, error) {
	e, outcome, err := s.Lookup(key, maxTranc)
	return e, outcome == lookupLive, err
}

// NumBlocks returns the number of blocks in the SST.
func (s *SST) NumBlocks() int {
	return len(s.metas)
}
