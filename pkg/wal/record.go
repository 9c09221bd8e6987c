package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// RecordKind tags the five record types a transaction context can emit.
type RecordKind uint8

const (
	KindBegin    RecordKind = 0
	KindPut      RecordKind = 1
	KindDelete   RecordKind = 2
	KindCommit   RecordKind = 3
	KindRollback RecordKind = 4
)

// ErrMalformedRecord signals a record that could not be decoded cleanly;
// recovery treats it as the end of a usable WAL stream.
var ErrMalformedRecord = errors.New("wal: malformed record")

// Record is one WAL entry: u8 kind | u64 tranc_id | (u16 klen|key)? | (u16 vlen|value)?.
// Put carries both Key and Value; Delete carries only Key; Begin/Commit/Rollback carry neither.
type Record struct {
	Kind    RecordKind
	TrancID uint64
	Key     []byte
	Value   []byte
}

// Encode serializes one record.
func (r Record) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(r.Kind))

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], r.TrancID)
	buf.Write(u64[:])

	if r.Kind == KindPut || r.Kind == KindDelete {
		var u16 [2]byte
		binary.LittleEndian.PutUint16(u16[:], uint16(len(r.Key)))
		buf.Write(u16[:])
		buf.Write(r.Key)
	}
	if r.Kind == KindPut {
		var u16 [2]byte
		binary.LittleEndian.PutUint16(u16[:], uint16(len(r.Value)))
		buf.Write(u16[:])
		buf.Write(r.Value)
	}
	return buf.Bytes()
}

// DecodeRecord reads one record from data starting at off, returning it
// and the offset of the next record.
func DecodeRecord(data []byte, off int) (Record, int, error) {
	if off+9 > len(data) {
		return Record{}, 0, ErrMalformedRecord
	}
	kind := RecordKind(data[off])
	off++
	trancID := binary.LittleEndian.Uint64(data[off:])
	off += 8

	rec := Record{Kind: kind, TrancID: trancID}

	if kind == KindPut || kind == KindDelete {
		if off+2 > len(data) {
			return Record{}, 0, ErrMalformedRecord
		}
		klen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if off+klen > len(data) {
			return Record{}, 0, ErrMalformedRecord
		}
		rec.Key = append([]byte(nil), data[off:off+klen]...)
		off += klen
	}
	if kind == KindPut {
		if off+2 > len(data) {
			return Record{}, 0, ErrMalformedRecord
		}
		vlen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if off+vlen > len(data) {
			return Record{}, 0, ErrMalformedRecord
		}
		rec.Value = append([]byte(nil), data[off:off+vlen]...)
		off += vlen
	}
	return rec, off, nil
}

// EncodeBatch frames a slice of records as one length-prefixed batch:
// u32 batch_len | records.
func EncodeBatch(records []Record) []byte {
	var body bytes.Buffer
	for _, r := range records {
		body.Write(r.Encode())
	}

	var out bytes.Buffer
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(body.Len()))
	out.Write(u32[:])
	out.Write(body.Bytes())
	return out.Bytes()
}
