package lsmtree

import (
	"encoding/binary"
	"math"

	"github.com/twmb/murmur3"
)

// MembershipHook is the optional approximate-membership filter consulted by
// Get immediately before a level's Search. It must never produce a false
// negative: Maybe must return true for every key actually present, and may
// return true for absent keys (a false positive merely costs an extra,
// otherwise-unnecessary Search). The core is correct whether or not a hook
// is attached, and if one always answers true.
type MembershipHook interface {
	// Add records that key has been written to the level this hook is
	// attached to.
	Add(key int64)
	// Maybe reports whether key might be present. false is a guarantee
	// of absence; true is not a guarantee of presence.
	Maybe(key int64) bool
}

// BloomFilter is a per-level approximate membership filter sized for a
// target false-positive rate: a bit array plus k seeded hash functions,
// specialized for 8-byte integer keys instead of arbitrary byte slices
// and hashed with murmur3.
type BloomFilter struct {
	bits  []byte
	m     uint64
	k     uint64
	seeds []uint32
}

// NewBloomFilter sizes a filter for expectedElements insertions at the
// given false-positive rate, following the standard optimal sizing
// formulas: m = ceil(-n*ln(p) / ln(2)^2), k = round(m/n * ln(2)).
func NewBloomFilter(expectedElements int, falsePositiveRate float64) *BloomFilter {
	if expectedElements < 1 {
		expectedElements = 1
	}
	n := float64(expectedElements)
	m := math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	k := math.Round((m / n) * math.Ln2)
	if k < 1 {
		k = 1
	}

	seeds := make([]uint32, int(k))
	for i := range seeds {
		seeds[i] = uint32(i)*0x9e3779b9 + 1
	}

	return &BloomFilter{
		bits:  make([]byte, (uint64(m)+7)/8),
		m:     uint64(m),
		k:     uint64(k),
		seeds: seeds,
	}
}

func (bf *BloomFilter) Add(key int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	for _, seed := range bf.seeds {
		h := murmur3.Sum64WithSeed(buf[:], seed) % bf.m
		bf.bits[h/8] |= 1 << (h % 8)
	}
}

func (bf *BloomFilter) Maybe(key int64) bool {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key))
	for _, seed := range bf.seeds {
		h := murmur3.Sum64WithSeed(buf[:], seed) % bf.m
		if bf.bits[h/8]&(1<<(h%8)) == 0 {
			return false
		}
	}
	return true
}
