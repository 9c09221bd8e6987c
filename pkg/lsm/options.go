package lsm

import "github.com/duskdb/duskdb/pkg/validation"

// Options configures an Engine instance. There is no file-loading path —
// callers build this struct directly — but values are range-checked by
// Validate before Open accepts them.
type Options struct {
	// DataDir is the directory the engine owns: SST files, WAL segments,
	// and the watermark file all live here.
	DataDir string `validate:"required"`

	// PerMemLimit is the byte threshold at which the active memtable is
	// frozen and queued for flush.
	PerMemLimit int `validate:"required,min=1024"`

	// TotalMemLimit is the byte threshold (active + frozen) at which a
	// flush is triggered synchronously from Put.
	TotalMemLimit int `validate:"required,min=1024"`

	// BlockSize is the target encoded size of one block, in bytes.
	BlockSize int `validate:"required,min=256"`

	// LevelRatio is both the L0 SST-count compaction trigger and the
	// per-level target-size multiplier for L1+.
	LevelRatio int `validate:"required,min=2"`

	// BlockCacheCapacity is the number of blocks the LRU-K cache holds.
	BlockCacheCapacity int `validate:"required,min=1"`

	// BlockCacheK is the access count at which a cache entry migrates
	// from the cold list to the hot list.
	BlockCacheK int `validate:"required,min=1"`

	// BloomExpectedSize is the expected number of keys per SST, used to
	// size the bloom filter at build time.
	BloomExpectedSize int `validate:"required,min=1"`

	// BloomFalsePositiveRate is the target false-positive rate, in (0,1).
	BloomFalsePositiveRate float64 `validate:"required,gt=0,lt=1"`

	// WALCompress enables Snappy compression of WAL record batches.
	WALCompress bool

	// WALSegmentSize is the byte threshold at which a new wal.<seq>
	// segment is opened.
	WALSegmentSize int `validate:"required,min=4096"`

	// Archiver, if non-nil, receives a best-effort copy of an SST file
	// immediately before the compactor deletes it. Never read back from.
	Archiver Archiver
}

// DefaultOptions returns the tunable constants from the spec, rooted at
// dataDir.
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:                dataDir,
		PerMemLimit:            4 * 1024 * 1024,
		TotalMemLimit:          64 * 1024 * 1024,
		BlockSize:              32 * 1024,
		LevelRatio:             4,
		BlockCacheCapacity:     1024,
		BlockCacheK:            8,
		BloomExpectedSize:      65536,
		BloomFalsePositiveRate: 0.1,
		WALCompress:            false,
		WALSegmentSize:         16 * 1024 * 1024,
	}
}

// Validate checks struct tags plus cross-field constraints that tags
// alone can't express.
func (o Options) Validate() error {
	if err := validation.Struct(o); err != nil {
		return err
	}

	cv := validation.NewConfigValidator("lsm.Options")
	cv.MinInt("TotalMemLimit", o.TotalMemLimit, o.PerMemLimit)
	cv.MinInt("BlockCacheCapacity", o.BlockCacheCapacity, o.BlockCacheK)
	return cv.Validate()
}
