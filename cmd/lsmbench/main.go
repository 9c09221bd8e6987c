package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/duskdb/duskdb/pkg/lsm"
)

func main() {
	writes := flag.Int("writes", 100000, "Number of writes")
	reads := flag.Int("reads", 10000, "Number of reads")
	valueSize := flag.Int("value-size", 1024, "Value size in bytes")
	dataDir := flag.String("data-dir", "./data/lsmbench", "Data directory")
	flag.Parse()

	fmt.Printf("duskdb LSM engine benchmark\n")
	fmt.Printf("============================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Writes: %d\n", *writes)
	fmt.Printf("  Reads: %d\n", *reads)
	fmt.Printf("  Value Size: %d bytes\n\n", *valueSize)

	os.RemoveAll(*dataDir)

	fmt.Printf("Initializing engine at %s...\n", *dataDir)
	opts := lsm.DefaultOptions(*dataDir)
	opts.PerMemLimit = 4 * 1024 * 1024

	engine, err := lsm.Open(opts, nil, nil)
	if err != nil {
		log.Fatalf("open engine: %v", err)
	}
	defer engine.Close()

	fmt.Printf("\nBenchmark 1: Sequential Writes\n")
	value := make([]byte, *valueSize)
	rand.Read(value)

	start := time.Now()
	for i := 0; i < *writes; i++ {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(i))
		if _, err := engine.Put(key, value, 0); err != nil {
			log.Fatalf("put: %v", err)
		}
		if (i+1)%10000 == 0 {
			fmt.Printf("  written %d entries\n", i+1)
		}
	}
	duration := time.Since(start)
	reportRate("writes", *writes, duration)
	fmt.Printf("  data written: %.2f MB\n", float64(*writes**valueSize)/(1024*1024))

	fmt.Printf("\nBenchmark 2: Random Reads\n")
	start = time.Now()
	found := 0
	for i := 0; i < *reads; i++ {
		idx := rand.Intn(*writes)
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(idx))
		if _, ok, err := engine.Get(key, 0); err != nil {
			log.Fatalf("get: %v", err)
		} else if ok {
			found++
		}
	}
	duration = time.Since(start)
	fmt.Printf("  found: %d/%d (%.1f%%)\n", found, *reads, float64(found)*100/float64(*reads))
	reportRate("reads", *reads, duration)

	fmt.Printf("\nBenchmark 3: Range Scans\n")
	scanCount := 100
	scanSize := 1000
	start = time.Now()
	totalResults := 0
	for i := 0; i < scanCount; i++ {
		startIdx := rand.Intn(*writes - scanSize)
		lo := make([]byte, 8)
		hi := make([]byte, 8)
		binary.BigEndian.PutUint64(lo, uint64(startIdx))
		binary.BigEndian.PutUint64(hi, uint64(startIdx+scanSize))

		it, err := engine.IterPredicate(0, rangePredicate(lo, hi))
		if err != nil {
			log.Printf("scan failed: %v", err)
			continue
		}
		for it.IsValid() {
			totalResults++
			if err := it.Advance(); err != nil {
				log.Printf("scan advance failed: %v", err)
				break
			}
		}
	}
	duration = time.Since(start)
	fmt.Printf("  average results per scan: %d\n", totalResults/scanCount)
	reportRate("scans", scanCount, duration)

	fmt.Printf("\nBenchmark 4: Random Updates\n")
	updateCount := *writes / 10
	newValue := bytes.Repeat([]byte{0xFF}, *valueSize)
	start = time.Now()
	for i := 0; i < updateCount; i++ {
		idx := rand.Intn(*writes)
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(idx))
		if _, err := engine.Put(key, newValue, 0); err != nil {
			log.Fatalf("update: %v", err)
		}
	}
	duration = time.Since(start)
	reportRate("updates", updateCount, duration)

	fmt.Printf("\nBenchmark 5: Random Deletions\n")
	deleteCount := *writes / 20
	start = time.Now()
	for i := 0; i < deleteCount; i++ {
		idx := rand.Intn(*writes)
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(idx))
		if _, err := engine.Remove(key, 0); err != nil {
			log.Fatalf("remove: %v", err)
		}
	}
	duration = time.Since(start)
	reportRate("deletions", deleteCount, duration)

	fmt.Printf("\nWaiting for trailing compaction...\n")
	if _, err := engine.FlushAll(); err != nil {
		log.Printf("final flush failed: %v", err)
	}

	fmt.Printf("\nBenchmark complete.\n")
}

func rangePredicate(lo, hi []byte) func([]byte) int {
	return func(key []byte) int {
		if bytes.Compare(key, lo) < 0 {
			return 1 // key sorts below the range, keep advancing right
		}
		if bytes.Compare(key, hi) >= 0 {
			return -1 // key sorts at or above the range, target is behind us
		}
		return 0
	}
}

func reportRate(label string, n int, d time.Duration) {
	throughput := float64(n) / d.Seconds()
	avgLatency := d.Microseconds() / int64(n)
	fmt.Printf("  completed %d %s in %v\n", n, label, d)
	fmt.Printf("  average: %dus per op\n", avgLatency)
	fmt.Printf("  throughput: %.0f %s/sec\n", throughput, label)
}
