package txn

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const watermarkFileName = "tranc_id"
const watermarkFileSize = 24 // u64 next | u64 max_flushed | u64 max_finished

// Watermarks is the manager's persisted three-u64 state: the next
// tranc_id to allocate, the highest tranc_id reflected in a flushed SST,
// and the highest tranc_id any transaction has finished (committed or
// aborted) at. next_tranc_id and max_flushed_tranc_id are persisted to
// disk after every change; max_finished_tranc_id is tracked here for
// reporting only and is not required for crash correctness.
type Watermarks struct {
	mu   sync.Mutex
	path string

	next        uint64
	maxFlushed  uint64
	maxFinished uint64
}

// LoadWatermarks reads the watermark file at dir/tranc_id, or starts a
// fresh set with next_tranc_id = 1 if it doesn't exist yet. tranc_id 0
// is reserved (it means "no transaction" throughout the engine), so the
// first real transaction always gets 1.
func LoadWatermarks(dir string) (*Watermarks, error) {
	path := filepath.Join(dir, watermarkFileName)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		w := &Watermarks{path: path, next: 1}
		if err := w.persistLocked(); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("txn: read watermark file: %w", err)
	}
	if len(raw) != watermarkFileSize {
		return nil, fmt.Errorf("txn: watermark file %s has bad size %d", path, len(raw))
	}
	w := &Watermarks{
		path:        path,
		next:        binary.LittleEndian.Uint64(raw[0:8]),
		maxFlushed:  binary.LittleEndian.Uint64(raw[8:16]),
		maxFinished: binary.LittleEndian.Uint64(raw[16:24]),
	}
	if w.next == 0 {
		w.next = 1
	}
	return w, nil
}

// AllocTrancID hands out the next tranc_id and persists the advance.
func (w *Watermarks) AllocTrancID() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.next
	w.next++
	return id, w.persistLocked()
}

// Next returns the next tranc_id that would be allocated, without
// allocating it.
func (w *Watermarks) Next() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next
}

// MaxFlushed returns the current max_flushed_tranc_id.
func (w *Watermarks) MaxFlushed() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxFlushed
}

// MaxFinished returns the current max_finished_tranc_id.
func (w *Watermarks) MaxFinished() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxFinished
}

// AdvanceFlushed moves max_flushed_tranc_id forward to v if v is larger,
// persisting the change. A no-op (and no write) if v doesn't advance it.
func (w *Watermarks) AdvanceFlushed(v uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v <= w.maxFlushed {
		return nil
	}
	w.maxFlushed = v
	return w.persistLocked()
}

// AdvanceFinished moves max_finished_tranc_id forward to v if v is
// larger, persisting the change.
func (w *Watermarks) AdvanceFinished(v uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if v <= w.maxFinished {
		return nil
	}
	w.maxFinished = v
	return w.persistLocked()
}

// ensureNextAbove bumps next_tranc_id so it exceeds v, used once at
// startup after WAL recovery replays transactions the watermark file
// might predate.
func (w *Watermarks) ensureNextAbove(v uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.next > v {
		return nil
	}
	w.next = v + 1
	return w.persistLocked()
}

func (w *Watermarks) persistLocked() error {
	var buf [watermarkFileSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], w.next)
	binary.LittleEndian.PutUint64(buf[8:16], w.maxFlushed)
	binary.LittleEndian.PutUint64(buf[16:24], w.maxFinished)
	return atomicWriteFile(w.path, buf[:])
}

// atomicWriteFile stages data under a uuid-suffixed temp name beside
// path, fsyncs it, then renames it into place, mirroring the engine's
// own crash-safe SST write path.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("txn: create %s: %w", tmpPath, err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("txn: write %s: %w", tmpPath, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("txn: flush %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("txn: fsync %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("txn: close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("txn: rename %s: %w", path, err)
	}
	return nil
}
