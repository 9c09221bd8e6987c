package lsm

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// SSTBuilder accumulates sorted entries and seals them into block-sized
// chunks, tracking everything needed to write a complete SST file:
// block-meta entries, an optional bloom filter, and the tranc_id range
// observed.
type SSTBuilder struct {
	blockSize int

	data    bytes.Buffer
	metas   []BlockMetaEntry
	cur     *BlockBuilder
	curFirstKey []byte
	curLastKey  []byte

	bloom   *BloomFilter
	minTranc uint64
	maxTranc uint64
	haveAny  bool
}

// NewSSTBuilder creates a builder targeting blockSize-byte blocks. When
// expectedKeys > 0 a bloom filter is maintained at fpr false-positive rate.
func NewSSTBuilder(blockSize, expectedKeys int, fpr float64) *SSTBuilder {
	b := &SSTBuilder{blockSize: blockSize, cur: NewBlockBuilder()}
	if expectedKeys > 0 {
		b.bloom = NewBloomFilter(expectedKeys, fpr)
	}
	return b
}

// Add appends one entry, sealing the current block first if it's already
// at or over the target block size.
func (b *SSTBuilder) Add(key, value []byte, trancID uint64) error {
	if !b.cur.IsEmpty() && b.cur.EstimatedSize() >= b.blockSize {
		b.sealCurrentBlock()
	}
	if err := b.cur.Add(key, value, trancID); err != nil {
		return err
	}
	if b.curFirstKey == nil {
		b.curFirstKey = append([]byte(nil), key...)
	}
	b.curLastKey = append(b.curLastKey[:0], key...)

	if b.bloom != nil {
		b.bloom.Add(key)
	}
	if !b.haveAny || trancID < b.minTranc {
		b.minTranc = trancID
	}
	if !b.haveAny || trancID > b.maxTranc {
		b.maxTranc = trancID
	}
	b.haveAny = true
	return nil
}

// EstimatedSize returns the builder's current total encoded size
// estimate, used by compaction to decide when to seal a new SST.
func (b *SSTBuilder) EstimatedSize() int {
	return b.data.Len() + b.cur.EstimatedSize()
}

// IsEmpty reports whether any entry has been added.
func (b *SSTBuilder) IsEmpty() bool {
	return !b.haveAny
}

func (b *SSTBuilder) sealCurrentBlock() {
	if b.cur.IsEmpty() {
		return
	}
	block := b.cur.Build()
	encoded := block.Encode()

	offset := uint32(b.data.Len())
	b.data.Write(encoded)
	sum := crc32.ChecksumIEEE(encoded)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], sum)
	b.data.Write(u32[:])

	b.metas = append(b.metas, BlockMetaEntry{
		Offset:   offset,
		FirstKey: b.curFirstKey,
		LastKey:  b.curLastKey,
	})

	b.cur = NewBlockBuilder()
	b.curFirstKey = nil
	b.curLastKey = nil
}

// Build seals the trailing block, encodes the meta and bloom sections,
// writes data|meta|bloom|u32 meta_offset|u32 bloom_offset to dir under
// the sstID/level naming convention, and returns the opened descriptor.
func (b *SSTBuilder) Build(dir string, sstID uint64, level int, cache *BlockCache) (*SST, error) {
	if b.IsEmpty() {
		return nil, ErrEmptyBuild
	}
	b.sealCurrentBlock()

	metaOffset := uint32(b.data.Len())
	metaSection := EncodeBlockMeta(b.metas)

	var out bytes.Buffer
	out.Write(b.data.Bytes())
	out.Write(metaSection)

	bloomOffset := uint32(out.Len())
	hasBloom := b.bloom != nil
	if hasBloom {
		out.Write(b.bloom.Encode())
	}

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], metaOffset)
	out.Write(u32[:])
	// bloom_offset + 8 == file_size marks "absent": when no bloom bytes
	// were written, bloomOffset already equals out.Len() here, and
	// appending the two trailing u32s makes that hold exactly.
	binary.LittleEndian.PutUint32(u32[:], bloomOffset)
	out.Write(u32[:])

	name := sstFileName(sstID, level)
	path, err := writeSSTFile(dir, name, out.Bytes())
	if err != nil {
		return nil, err
	}

	return openSSTDescriptor(path, sstID, level, b.metas, b.bloom, b.minTranc, b.maxTranc, cache)
}
