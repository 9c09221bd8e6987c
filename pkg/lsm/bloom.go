package lsm

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// BloomFilter is a per-SST probabilistic membership set. Hash functions
// are derived from a single base hash by double-hashing (Kirsch-Mitzenmacher):
// h_i(x) = h1(x) + i*h2(x), avoiding num_hashes independent hash computations.
type BloomFilter struct {
	bits     []byte
	numBits  uint32
	numHashes uint32
}

// NewBloomFilter sizes a filter for expectedKeys entries at the given
// target false-positive rate, both fixed at build time.
func NewBloomFilter(expectedKeys int, falsePositiveRate float64) *BloomFilter {
	if expectedKeys <= 0 {
		expectedKeys = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.1
	}

	n := float64(expectedKeys)
	numBits := uint32(math.Ceil(-1 * n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if numBits < 8 {
		numBits = 8
	}
	numHashes := uint32(math.Round(float64(numBits) / n * math.Ln2))
	if numHashes < 1 {
		numHashes = 1
	}
	if numHashes > 30 {
		numHashes = 30
	}

	return &BloomFilter{
		bits:      make([]byte, (numBits+7)/8),
		numBits:   numBits,
		numHashes: numHashes,
	}
}

func baseHashes(key []byte) (uint32, uint32) {
	h1 := fnv.New32a()
	h1.Write(key)
	a := h1.Sum32()

	h2 := fnv.New32()
	h2.Write(key)
	b := h2.Sum32()
	if b == 0 {
		b = 1
	}
	return a, b
}

// Add inserts key into the filter.
func (bf *BloomFilter) Add(key []byte) {
	h1, h2 := baseHashes(key)
	for i := uint32(0); i < bf.numHashes; i++ {
		bit := (h1 + i*h2) % bf.numBits
		bf.bits[bit/8] |= 1 << (bit % 8)
	}
}

// MayContain reports whether key might be present. False means
// definitely absent; true means possibly present.
func (bf *BloomFilter) MayContain(key []byte) bool {
	h1, h2 := baseHashes(key)
	for i := uint32(0); i < bf.numHashes; i++ {
		bit := (h1 + i*h2) % bf.numBits
		if bf.bits[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}

// Encode serializes as u32 num_bits | u32 num_hashes | bit_array.
func (bf *BloomFilter) Encode() []byte {
	buf := make([]byte, 8+len(bf.bits))
	binary.LittleEndian.PutUint32(buf[0:], bf.numBits)
	binary.LittleEndian.PutUint32(buf[4:], bf.numHashes)
	copy(buf[8:], bf.bits)
	return buf
}

// DecodeBloomFilter reverses Encode.
func DecodeBloomFilter(raw []byte) (*BloomFilter, error) {
	if len(raw) < 8 {
		return nil, ErrCorruption
	}
	numBits := binary.LittleEndian.Uint32(raw[0:])
	numHashes := binary.LittleEndian.Uint32(raw[4:])
	bits := raw[8:]
	if uint32(len(bits)) != (numBits+7)/8 {
		return nil, ErrCorruption
	}
	out := make([]byte, len(bits))
	copy(out, bits)
	return &BloomFilter{bits: out, numBits: numBits, numHashes: numHashes}, nil
}
