package lsm

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/exp/mmap"
)

// sstFile is the read path for one sealed SST: a memory-mapped,
// read-only view of the file. SSTs are immutable once built, so mmap
// gives every reader zero-copy access without per-read syscalls.
type sstFile struct {
	path   string
	reader *mmap.ReaderAt
	size   int64
}

func openSSTFile(path string) (*sstFile, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, newEngineError("open", "sstfile", path, fmt.Errorf("%w: %v", ErrIoFailure, err))
	}
	return &sstFile{path: path, reader: r, size: int64(r.Len())}, nil
}

// ReadAt reads length bytes at off without copying beyond what ReaderAt
// requires.
func (f *sstFile) ReadAt(off int64, length int) ([]byte, error) {
	if off < 0 || off+int64(length) > f.size {
		return nil, newEngineError("read", "sstfile", f.path, ErrCorruption)
	}
	buf := make([]byte, length)
	if _, err := f.reader.ReadAt(buf, off); err != nil {
		return nil, newEngineError("read", "sstfile", f.path, fmt.Errorf("%w: %v", ErrIoFailure, err))
	}
	return buf, nil
}

func (f *sstFile) Size() int64 {
	return f.size
}

func (f *sstFile) Close() error {
	return f.reader.Close()
}

// writeSSTFile durably writes data to dir/name: it stages the content
// under a uuid-suffixed temp name in the same directory, fsyncs it, then
// renames it into place so a crash mid-write never leaves a partially
// written file visible under its final name.
func writeSSTFile(dir, name string, data []byte) (string, error) {
	finalPath := filepath.Join(dir, name)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", name, uuid.NewString()))

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", newEngineError("write", "sstfile", tmpPath, fmt.Errorf("%w: %v", ErrIoFailure, err))
	}

	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", newEngineError("write", "sstfile", tmpPath, fmt.Errorf("%w: %v", ErrIoFailure, err))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", newEngineError("flush", "sstfile", tmpPath, fmt.Errorf("%w: %v", ErrIoFailure, err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", newEngineError("fsync", "sstfile", tmpPath, fmt.Errorf("%w: %v", ErrIoFailure, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", newEngineError("close", "sstfile", tmpPath, fmt.Errorf("%w: %v", ErrIoFailure, err))
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", newEngineError("rename", "sstfile", finalPath, fmt.Errorf("%w: %v", ErrIoFailure, err))
	}
	return finalPath, nil
}

// sstFileName formats the on-disk name for an SST at the given level.
func sstFileName(sstID uint64, level int) string {
	return fmt.Sprintf("sst_%020d.%d", sstID, level)
}
