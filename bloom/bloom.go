// Package bloom implements the probabilistic set-membership filters
// used by the streaming deduplicator: a fixed-size filter, a scalable
// variant that grows with the key population, and a counting variant
// that supports removal. All filters share the guarantee of no false
// negatives; false positives are bounded by the configured rate.
package bloom

import (
	"errors"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/spaolacci/murmur3"
)

// ErrIncompatible is returned by Union when two filters do not share
// the same bit-array size and hash count.
var ErrIncompatible = errors.New("bloom: filters differ in size or hash count")

// Filter is a fixed-size Bloom filter: an m-bit array addressed by k
// hash positions per key, derived from two murmur3 base hashes via
// double hashing. Bits are only ever set, never cleared, except by
// Reset.
type Filter struct {
	m    uint64
	k    uint64
	bits *bitset.BitSet
	n    uint64
}

// EstimateParameters returns the optimal bit count m and hash count k
// for n expected items at false-positive rate p:
//
//	m = ceil(-n·ln(p) / (ln 2)²)
//	k = round((m/n)·ln 2)
func EstimateParameters(n uint64, p float64) (m, k uint64) {
	mf := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	m = uint64(mf)
	k = uint64(math.Round(mf / float64(n) * math.Ln2))
	if m == 0 {
		m = 1
	}
	if k == 0 {
		k = 1
	}
	return m, k
}

// New creates a filter sized for expectedItems at the target
// false-positive rate.
func New(expectedItems uint64, fpr float64) (*Filter, error) {
	if expectedItems == 0 {
		return nil, fmt.Errorf("bloom: expected items must be positive")
	}
	if fpr <= 0 || fpr >= 1 {
		return nil, fmt.Errorf("bloom: false-positive rate %v outside (0, 1)", fpr)
	}
	m, k := EstimateParameters(expectedItems, fpr)
	return &Filter{
		m:    m,
		k:    k,
		bits: bitset.New(uint(m)),
	}, nil
}

// baseHashes returns the two 64-bit halves of the murmur3 128-bit sum.
// The k positions for a key are h1 + i·h2 mod m.
func baseHashes(key []byte) (uint64, uint64) {
	return murmur3.Sum128(key)
}

// Add inserts key into the filter.
func (f *Filter) Add(key []byte) {
	h1, h2 := baseHashes(key)
	for i := uint64(0); i < f.k; i++ {
		f.bits.Set(uint((h1 + i*h2) % f.m))
	}
	f.n++
}

// AddString inserts a string key.
func (f *Filter) AddString(key string) {
	f.Add([]byte(key))
}

// Contains reports whether key may have been added. False means the
// key was definitely never added.
func (f *Filter) Contains(key []byte) bool {
	h1, h2 := baseHashes(key)
	for i := uint64(0); i < f.k; i++ {
		if !f.bits.Test(uint((h1 + i*h2) % f.m)) {
			return false
		}
	}
	return true
}

// ContainsString reports membership for a string key.
func (f *Filter) ContainsString(key string) bool {
	return f.Contains([]byte(key))
}

// Union ORs other into f. Both filters must have identical size and
// hash count; otherwise ErrIncompatible is returned.
func (f *Filter) Union(other *Filter) error {
	if f.m != other.m || f.k != other.k {
		return ErrIncompatible
	}
	f.bits.InPlaceUnion(other.bits)
	f.n += other.n
	return nil
}

// Reset clears every bit and the insertion counter.
func (f *Filter) Reset() {
	f.bits.ClearAll()
	f.n = 0
}

// Count returns the number of Add calls since creation or Reset.
func (f *Filter) Count() uint64 {
	return f.n
}

// Bits returns the bit-array size m.
func (f *Filter) Bits() uint64 {
	return f.m
}

// Hashes returns the hash count k.
func (f *Filter) Hashes() uint64 {
	return f.k
}

// FillRatio returns the fraction of bits currently set.
func (f *Filter) FillRatio() float64 {
	return float64(f.bits.Count()) / float64(f.m)
}

// EstimatedFPR returns the expected false-positive probability for the
// current load: (1 − e^(−kn/m))^k.
func (f *Filter) EstimatedFPR() float64 {
	if f.n == 0 {
		return 0
	}
	return math.Pow(1-math.Exp(-float64(f.k)*float64(f.n)/float64(f.m)), float64(f.k))
}

// SizeBytes returns the approximate memory held by the bit array.
func (f *Filter) SizeBytes() uint64 {
	return (f.m + 7) / 8
}
