package wal

import (
	"encoding/binary"
	"os"

	"github.com/golang/snappy"
)

// Transaction is the decoded record stream for one tranc_id, surviving
// recovery only if it ends in a Commit record.
type Transaction struct {
	TrancID uint64
	Records []Record
}

// Recover scans every wal.<seq> file in dir in sequence order, decodes
// every batch, groups records by tranc_id, and returns the transactions
// whose tranc_id exceeds flushedWatermark and whose record stream ends
// in Commit. Transactions that end in Rollback, or that never reach a
// terminal record, are discarded. A segment is read until the first
// batch that fails to decode cleanly, which is treated as the effective
// end of that segment's usable content (a partially-written final batch
// from a crash mid-append).
func Recover(dir string, flushedWatermark uint64) (map[uint64]Transaction, error) {
	segments, err := listSegmentsInOrder(dir)
	if err != nil {
		return nil, err
	}

	byTranc := make(map[uint64][]Record)
	for _, path := range segments {
		if err := recoverSegment(path, byTranc); err != nil {
			return nil, err
		}
	}

	out := make(map[uint64]Transaction)
	for trancID, records := range byTranc {
		if trancID <= flushedWatermark {
			continue
		}
		if len(records) == 0 {
			continue
		}
		if records[len(records)-1].Kind != KindCommit {
			continue
		}
		out[trancID] = Transaction{TrancID: trancID, Records: records}
	}
	return out, nil
}

func recoverSegment(path string, byTranc map[uint64][]Record) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(raw) < segmentHeaderSz {
		return nil
	}
	mode := raw[0]
	off := segmentHeaderSz

	for off+4 <= len(raw) {
		batchLen := int(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
		if off+batchLen > len(raw) {
			break // truncated final batch from a mid-write crash
		}
		body := raw[off : off+batchLen]
		off += batchLen

		if mode == segmentSnappy {
			body, err = snappy.Decode(nil, body)
			if err != nil {
				break
			}
		}

		pos := 0
		for pos < len(body) {
			rec, next, err := DecodeRecord(body, pos)
			if err != nil {
				return nil
			}
			byTranc[rec.TrancID] = append(byTranc[rec.TrancID], rec)
			pos = next
		}
	}
	return nil
}
