package bloom

import "math"

// counterMax is the saturation point of the 8-bit counters. A
// saturated counter is never decremented, preserving the
// no-false-negative guarantee at the cost of Remove becoming a no-op
// for that position.
const counterMax = math.MaxUint8

// CountingFilter replaces the bit array of a Filter with 8-bit
// saturating counters so that keys can be removed. Counters never wrap
// below zero or overflow past counterMax.
type CountingFilter struct {
	m        uint64
	k        uint64
	counters []uint8
	n        uint64
}

// NewCounting creates a counting filter sized for expectedItems at the
// target false-positive rate. It uses the same sizing math as New but
// costs eight bits per position.
func NewCounting(expectedItems uint64, fpr float64) (*CountingFilter, error) {
	f, err := New(expectedItems, fpr)
	if err != nil {
		return nil, err
	}
	return &CountingFilter{
		m:        f.m,
		k:        f.k,
		counters: make([]uint8, f.m),
	}, nil
}

// Add inserts key, incrementing its k counters.
func (c *CountingFilter) Add(key []byte) {
	h1, h2 := baseHashes(key)
	for i := uint64(0); i < c.k; i++ {
		pos := (h1 + i*h2) % c.m
		if c.counters[pos] < counterMax {
			c.counters[pos]++
		}
	}
	c.n++
}

// AddString inserts a string key.
func (c *CountingFilter) AddString(key string) {
	c.Add([]byte(key))
}

// Contains reports whether key may have been added and not removed.
func (c *CountingFilter) Contains(key []byte) bool {
	h1, h2 := baseHashes(key)
	for i := uint64(0); i < c.k; i++ {
		if c.counters[(h1+i*h2)%c.m] == 0 {
			return false
		}
	}
	return true
}

// ContainsString reports membership for a string key.
func (c *CountingFilter) ContainsString(key string) bool {
	return c.Contains([]byte(key))
}

// Remove decrements the counters for key. It reports whether the key
// was present; removing an absent key is a no-op, keeping counters
// from wrapping below zero.
func (c *CountingFilter) Remove(key []byte) bool {
	if !c.Contains(key) {
		return false
	}
	h1, h2 := baseHashes(key)
	for i := uint64(0); i < c.k; i++ {
		pos := (h1 + i*h2) % c.m
		if c.counters[pos] > 0 && c.counters[pos] < counterMax {
			c.counters[pos]--
		}
	}
	if c.n > 0 {
		c.n--
	}
	return true
}

// RemoveString removes a string key.
func (c *CountingFilter) RemoveString(key string) bool {
	return c.Remove([]byte(key))
}

// Reset clears every counter.
func (c *CountingFilter) Reset() {
	for i := range c.counters {
		c.counters[i] = 0
	}
	c.n = 0
}

// Count returns the net number of keys currently held.
func (c *CountingFilter) Count() uint64 {
	return c.n
}

// EstimatedFPR returns the expected false-positive probability for the
// current load, using the same bound as the fixed filter.
func (c *CountingFilter) EstimatedFPR() float64 {
	if c.n == 0 {
		return 0
	}
	return math.Pow(1-math.Exp(-float64(c.k)*float64(c.n)/float64(c.m)), float64(c.k))
}

// SizeBytes returns the memory held by the counter array.
func (c *CountingFilter) SizeBytes() uint64 {
	return c.m
}
