package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/duskdb/duskdb/pkg/wal"
)

func main() {
	numWrites := flag.Int("writes", 10000, "Number of record batches")
	flag.Parse()

	fmt.Printf("duskdb WAL compression benchmark\n")
	fmt.Printf("=================================\n\n")

	fmt.Printf("Testing uncompressed WAL...\n")
	plain, err := runWAL(*numWrites, false)
	if err != nil {
		fmt.Printf("uncompressed run failed: %v\n", err)
		os.Exit(1)
	}
	printStats("uncompressed", plain)

	fmt.Printf("\nTesting Snappy-compressed WAL...\n")
	compressed, err := runWAL(*numWrites, true)
	if err != nil {
		fmt.Printf("compressed run failed: %v\n", err)
		os.Exit(1)
	}
	printStats("compressed", compressed)

	fmt.Printf("\nComparison\n")
	fmt.Printf("==========\n")
	fmt.Printf("Uncompressed: %.2f MB\n", plain.fileSizeMB)
	fmt.Printf("Compressed:   %.2f MB\n", compressed.fileSizeMB)
	if compressed.fileSizeMB > 0 {
		fmt.Printf("Ratio:        %.1fx smaller\n", plain.fileSizeMB/compressed.fileSizeMB)
	}
}

type runStats struct {
	writes     int
	duration   time.Duration
	fileSizeMB float64
}

func runWAL(numWrites int, compress bool) (runStats, error) {
	dir, err := os.MkdirTemp("", "walbench-*")
	if err != nil {
		return runStats{}, err
	}
	defer os.RemoveAll(dir)

	w, err := wal.Create(dir, wal.Options{Compress: compress, SegmentSize: 256 * 1024 * 1024})
	if err != nil {
		return runStats{}, err
	}

	value := make([]byte, 256)
	rand.Read(value)

	start := time.Now()
	for i := 0; i < numWrites; i++ {
		key := []byte(fmt.Sprintf("key-%08d", i))
		records := []wal.Record{{Kind: wal.KindPut, TrancID: uint64(i + 1), Key: key, Value: value}}
		if err := w.Append(records); err != nil {
			w.Close()
			return runStats{}, err
		}
	}
	duration := time.Since(start)
	if err := w.Close(); err != nil {
		return runStats{}, err
	}

	size, err := segmentsSize(dir)
	if err != nil {
		return runStats{}, err
	}

	return runStats{writes: numWrites, duration: duration, fileSizeMB: float64(size) / (1024 * 1024)}, nil
}

func segmentsSize(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

func printStats(label string, s runStats) {
	fmt.Printf("  %s writes:     %d\n", label, s.writes)
	fmt.Printf("  %s duration:   %s\n", label, s.duration)
	fmt.Printf("  %s file size:  %.2f MB\n", label, s.fileSizeMB)
	fmt.Printf("  %s write rate: %.0f ops/sec\n", label, float64(s.writes)/s.duration.Seconds())
}
