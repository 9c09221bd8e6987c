package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/golang/snappy"
)

var segmentRE = regexp.MustCompile(`^wal\.(\d+)$`)

// segmentHeader is the single byte every segment file opens with: 0
// means its batches are stored raw, 1 means each batch body is
// snappy-compressed.
const (
	segmentRaw      byte = 0
	segmentSnappy   byte = 1
	segmentHeaderSz      = 1
)

// Options configures a WAL instance.
type Options struct {
	// Compress enables Snappy compression of each record batch.
	Compress bool
	// SegmentSize is the byte threshold at which a new wal.<seq>
	// segment is opened.
	SegmentSize int
}

// WAL is the durable append log of per-transaction records, split across
// wal.<seq> segment files in dir. Appends are serialized by mu; a commit
// batch is the unit of atomicity (written and fsynced together).
type WAL struct {
	mu       sync.Mutex
	dir      string
	opts     Options
	seq      int
	rotator  *FileRotator
	written  int
}

// Create opens a fresh WAL rooted at dir, starting segment sequence 0.
// Callers normally call Recover first, then DeleteAll to remove every
// existing wal.* file, and start a fresh WAL afterward.
func Create(dir string, opts Options) (*WAL, error) {
	if opts.SegmentSize <= 0 {
		opts.SegmentSize = 16 * 1024 * 1024
	}
	w := &WAL{dir: dir, opts: opts, seq: 0}
	if err := w.openSegment(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WAL) segmentPath(seq int) string {
	return filepath.Join(w.dir, fmt.Sprintf("wal.%d", seq))
}

func (w *WAL) openSegment() error {
	path := w.segmentPath(w.seq)
	w.rotator = NewFileRotator(path, 0)
	if err := w.rotator.Open(); err != nil {
		return err
	}
	mode := segmentRaw
	if w.opts.Compress {
		mode = segmentSnappy
	}
	if _, err := w.rotator.Writer().Write([]byte{mode}); err != nil {
		return err
	}
	if err := w.rotator.Sync(); err != nil {
		return err
	}
	w.written = segmentHeaderSz
	return nil
}

// Append writes records as a single batch and fsyncs before returning,
// rotating to a new segment first if the current one is over threshold.
func (w *WAL) Append(records []Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written >= w.opts.SegmentSize {
		if err := w.rotateSegment(); err != nil {
			return err
		}
	}

	body := encodeRecordsRaw(records)
	if w.opts.Compress {
		body = snappy.Encode(nil, body)
	}

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(body)))

	n1, err := w.rotator.Writer().Write(u32[:])
	if err != nil {
		return err
	}
	n2, err := w.rotator.Writer().Write(body)
	if err != nil {
		return err
	}
	if err := w.rotator.Sync(); err != nil {
		return err
	}
	w.written += n1 + n2
	return nil
}

func encodeRecordsRaw(records []Record) []byte {
	var body []byte
	for _, r := range records {
		body = append(body, r.Encode()...)
	}
	return body
}

func (w *WAL) rotateSegment() error {
	if err := w.rotator.Close(); err != nil {
		return err
	}
	w.seq++
	return w.openSegment()
}

// Close flushes and closes the active segment.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotator.Close()
}

// DeleteAll removes every wal.* segment file in dir, used after recovery
// has folded their contents into the engine.
func DeleteAll(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if segmentRE.MatchString(e.Name()) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// listSegmentsInOrder returns every wal.<seq> path in dir, sorted by
// ascending sequence number.
func listSegmentsInOrder(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type seqPath struct {
		seq  int
		path string
	}
	var segs []seqPath
	for _, e := range entries {
		m := segmentRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		seq, _ := strconv.Atoi(m[1])
		segs = append(segs, seqPath{seq: seq, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].seq < segs[j].seq })
	paths := make([]string, len(segs))
	for i, s := range segs {
		paths[i] = s.path
	}
	return paths, nil
}
