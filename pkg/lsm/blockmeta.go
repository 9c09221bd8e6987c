package lsm

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sort"
)

// BlockMetaEntry is one (offset, first_key, last_key) record in an SST's
// block index.
type BlockMetaEntry struct {
	Offset   uint32
	FirstKey []byte
	LastKey  []byte
}

// EncodeBlockMeta serializes the meta section: u32 num_entries, then each
// entry as u32 offset | u16 key_len | first_key | u16 key_len | last_key,
// followed by a u32 crc32 hash over everything preceding it.
func EncodeBlockMeta(entries []BlockMetaEntry) []byte {
	var buf bytes.Buffer
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(entries)))
	buf.Write(u32[:])

	for _, e := range entries {
		binary.LittleEndian.PutUint32(u32[:], e.Offset)
		buf.Write(u32[:])

		var u16 [2]byte
		binary.LittleEndian.PutUint16(u16[:], uint16(len(e.FirstKey)))
		buf.Write(u16[:])
		buf.Write(e.FirstKey)

		binary.LittleEndian.PutUint16(u16[:], uint16(len(e.LastKey)))
		buf.Write(u16[:])
		buf.Write(e.LastKey)
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	binary.LittleEndian.PutUint32(u32[:], sum)
	buf.Write(u32[:])
	return buf.Bytes()
}

// DecodeBlockMeta reverses EncodeBlockMeta, verifying the trailing hash.
func DecodeBlockMeta(raw []byte) ([]BlockMetaEntry, error) {
	if len(raw) < 8 {
		return nil, ErrCorruption
	}
	body := raw[:len(raw)-4]
	wantSum := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if crc32.ChecksumIEEE(body) != wantSum {
		return nil, ErrCorruption
	}

	if len(body) < 4 {
		return nil, ErrCorruption
	}
	n := int(binary.LittleEndian.Uint32(body))
	off := 4
	entries := make([]BlockMetaEntry, 0, n)
	for i := 0; i < n; i++ {
		if off+4+2 > len(body) {
			return nil, ErrCorruption
		}
		offset := binary.LittleEndian.Uint32(body[off:])
		off += 4
		fkLen := int(binary.LittleEndian.Uint16(body[off:]))
		off += 2
		if off+fkLen+2 > len(body) {
			return nil, ErrCorruption
		}
		firstKey := body[off : off+fkLen]
		off += fkLen
		lkLen := int(binary.LittleEndian.Uint16(body[off:]))
		off += 2
		if off+lkLen > len(body) {
			return nil, ErrCorruption
		}
		lastKey := body[off : off+lkLen]
		off += lkLen

		entries = append(entries, BlockMetaEntry{Offset: offset, FirstKey: firstKey, LastKey: lastKey})
	}
	return entries, nil
}

// findBlockIdx binary searches meta entries for the block whose
// [FirstKey, LastKey] range contains key. Returns -1 if no block can
// contain it (key sorts before the first block's FirstKey or after the
// last block's LastKey, or falls strictly between two blocks — the
// latter cannot happen for a well-formed SST since blocks are
// contiguous in key space).
func findBlockIdx(entries []BlockMetaEntry, key []byte) int {
	n := len(entries)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(entries[i].LastKey, key) >= 0
	})
	if i >= n {
		return -1
	}
	if bytes.Compare(key, entries[i].FirstKey) < 0 {
		return -1
	}
	return i
}
