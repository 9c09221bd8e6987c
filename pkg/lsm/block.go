package lsm

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// Block is the smallest unit of an SST: a sorted run of encoded entries
// plus an offset table. On-disk layout:
//
//	data   | concatenated entries, each:
//	         u16 key_len | key | u16 value_len | value | u64 tranc_id
//	offsets| u32 offset of each entry within data, ascending
//	count  | u16 number of entries
//
// Offsets are u32, not u16: values are stored inline rather than in a
// separate value log, so a block's data segment can exceed 64KiB and a
// u16 offset would wrap.
type Block struct {
	data    []byte
	offsets []uint32
}

type blockEntry struct {
	key     []byte
	value   []byte
	trancID uint64
}

func encodeBlockEntry(buf *bytes.Buffer, key, value []byte, trancID uint64) {
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(len(key)))
	buf.Write(u16[:])
	buf.Write(key)
	binary.LittleEndian.PutUint16(u16[:], uint16(len(value)))
	buf.Write(u16[:])
	buf.Write(value)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], trancID)
	buf.Write(u64[:])
}

// decodeBlockEntry reads one entry starting at off, returning it and the
// offset of the next entry.
func decodeBlockEntry(data []byte, off uint32) (blockEntry, uint32, error) {
	if int(off)+2 > len(data) {
		return blockEntry{}, 0, ErrCorruption
	}
	keyLen := binary.LittleEndian.Uint16(data[off:])
	off += 2
	if int(off)+int(keyLen) > len(data) {
		return blockEntry{}, 0, ErrCorruption
	}
	key := data[off : off+uint32(keyLen)]
	off += uint32(keyLen)

	if int(off)+2 > len(data) {
		return blockEntry{}, 0, ErrCorruption
	}
	valLen := binary.LittleEndian.Uint16(data[off:])
	off += 2
	if int(off)+int(valLen) > len(data) {
		return blockEntry{}, 0, ErrCorruption
	}
	value := data[off : off+uint32(valLen)]
	off += uint32(valLen)

	if int(off)+8 > len(data) {
		return blockEntry{}, 0, ErrCorruption
	}
	trancID := binary.LittleEndian.Uint64(data[off:])
	off += 8

	return blockEntry{key: key, value: value, trancID: trancID}, off, nil
}

// NumEntries returns the number of entries in the block.
func (b *Block) NumEntries() int {
	return len(b.offsets)
}

// EntryAt decodes the entry at position i (0-based, key order).
func (b *Block) EntryAt(i int) (blockEntry, error) {
	if i < 0 || i >= len(b.offsets) {
		return blockEntry{}, ErrCorruption
	}
	e, _, err := decodeBlockEntry(b.data, b.offsets[i])
	return e, err
}

// FirstKey returns the key of the first entry, or nil if empty.
func (b *Block) FirstKey() []byte {
	if len(b.offsets) == 0 {
		return nil
	}
	e, err := b.EntryAt(0)
	if err != nil {
		return nil
	}
	return e.key
}

// LastKey returns the key of the last entry, or nil if empty.
func (b *Block) LastKey() []byte {
	if len(b.offsets) == 0 {
		return nil
	}
	e, err := b.EntryAt(len(b.offsets) - 1)
	if err != nil {
		return nil
	}
	return e.key
}

// SeekKey returns the index of the first entry whose key >= target, or
// len(offsets) if none.
func (b *Block) SeekKey(target []byte) int {
	return sort.Search(len(b.offsets), func(i int) bool {
		e, err := b.EntryAt(i)
		if err != nil {
			return true
		}
		return bytes.Compare(e.key, target) >= 0
	})
}

// Encode concatenates data, offsets, and the u16 count. The block
// checksum is appended by the SST builder, not here.
func (b *Block) Encode() []byte {
	buf := make([]byte, 0, len(b.data)+len(b.offsets)*4+2)
	buf = append(buf, b.data...)
	for _, off := range b.offsets {
		var u32 [4]byte
		binary.LittleEndian.PutUint32(u32[:], off)
		buf = append(buf, u32[:]...)
	}
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(len(b.offsets)))
	buf = append(buf, u16[:]...)
	return buf
}

// DecodeBlock reverses Encode.
func DecodeBlock(raw []byte) (*Block, error) {
	if len(raw) < 2 {
		return nil, ErrCorruption
	}
	count := int(binary.LittleEndian.Uint16(raw[len(raw)-2:]))
	offsetsStart := len(raw) - 2 - count*4
	if offsetsStart < 0 {
		return nil, ErrCorruption
	}
	offsets := make([]uint32, count)
	for i := 0; i < count; i++ {
		offsets[i] = binary.LittleEndian.Uint32(raw[offsetsStart+i*4:])
	}
	return &Block{data: raw[:offsetsStart], offsets: offsets}, nil
}

// BlockBuilder accumulates entries into one Block, splitting is the
// caller's responsibility (it compares EstimatedSize against the
// configured block_size target).
type BlockBuilder struct {
	buf     bytes.Buffer
	offsets []uint32
	lastKey []byte
}

func NewBlockBuilder() *BlockBuilder {
	return &BlockBuilder{}
}

// Add appends one entry. Caller must ensure keys arrive in ascending
// (key, tranc_id desc) order; Add returns ErrOutOfOrderKey when key is
// smaller than the previous key, and does not check the tranc_id order
// of equal keys.
func (bb *BlockBuilder) Add(key, value []byte, trancID uint64) error {
	if bb.lastKey != nil && bytes.Compare(key, bb.lastKey) < 0 {
		return ErrOutOfOrderKey
	}
	bb.offsets = append(bb.offsets, uint32(bb.buf.Len()))
	encodeBlockEntry(&bb.buf, key, value, trancID)
	bb.lastKey = append(bb.lastKey[:0], key...)
	return nil
}

// EstimatedSize returns the current encoded size estimate, used by the
// caller to decide when to seal this block and start a new one.
func (bb *BlockBuilder) EstimatedSize() int {
	return bb.buf.Len() + len(bb.offsets)*4 + 2
}

// IsEmpty reports whether any entry has been added.
func (bb *BlockBuilder) IsEmpty() bool {
	return len(bb.offsets) == 0
}

// Build finalizes the block.
func (bb *BlockBuilder) Build() *Block {
	data := make([]byte, bb.buf.Len())
	copy(data, bb.buf.Bytes())
	return &Block{data: data, offsets: bb.offsets}
}
