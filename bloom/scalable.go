package bloom

import "fmt"

// Growth policy constants from Almeida et al. 2007, "Scalable Bloom
// Filters": each new slice doubles the capacity of the previous one and
// targets a tighter error budget so the compound rate converges below
// the configured target.
const (
	// growthFactor multiplies the expected-item capacity of each
	// successive slice.
	growthFactor = 2
	// tighteningRatio scales the per-slice false-positive budget.
	tighteningRatio = 0.85
)

type slice struct {
	filter   *Filter
	capacity uint64
}

// ScalableFilter is an ordered sequence of fixed filters. Keys are
// inserted into the newest slice; membership is the OR over all
// slices. A new slice is appended once the active one has absorbed its
// design capacity, so the filter never saturates no matter how far the
// key population exceeds the initial estimate.
type ScalableFilter struct {
	slices          []slice
	initialCapacity uint64
	targetFPR       float64
}

// NewScalable creates a scalable filter whose first slice is sized for
// initialCapacity items. The compound false-positive rate over all
// slices stays below fpr.
func NewScalable(initialCapacity uint64, fpr float64) (*ScalableFilter, error) {
	if initialCapacity == 0 {
		return nil, fmt.Errorf("bloom: expected items must be positive")
	}
	if fpr <= 0 || fpr >= 1 {
		return nil, fmt.Errorf("bloom: false-positive rate %v outside (0, 1)", fpr)
	}
	sf := &ScalableFilter{
		initialCapacity: initialCapacity,
		targetFPR:       fpr,
	}
	if err := sf.grow(); err != nil {
		return nil, err
	}
	return sf, nil
}

// grow appends the next slice per the growth policy.
func (sf *ScalableFilter) grow() error {
	capacity := sf.initialCapacity
	fpr := sf.targetFPR * (1 - tighteningRatio)
	for range sf.slices {
		capacity *= growthFactor
		fpr *= tighteningRatio
	}
	f, err := New(capacity, fpr)
	if err != nil {
		return err
	}
	sf.slices = append(sf.slices, slice{filter: f, capacity: capacity})
	return nil
}

// Add inserts key into the newest slice, growing first if the active
// slice is at capacity. Growth failures cannot occur once construction
// has succeeded, so Add never fails.
func (sf *ScalableFilter) Add(key []byte) {
	active := &sf.slices[len(sf.slices)-1]
	if active.filter.Count() >= active.capacity {
		// construction already validated the parameters
		if err := sf.grow(); err != nil {
			panic(fmt.Sprintf("bloom: scalable growth failed: %v", err))
		}
		active = &sf.slices[len(sf.slices)-1]
	}
	active.filter.Add(key)
}

// AddString inserts a string key.
func (sf *ScalableFilter) AddString(key string) {
	sf.Add([]byte(key))
}

// Contains reports whether key may have been added to any slice.
func (sf *ScalableFilter) Contains(key []byte) bool {
	for i := len(sf.slices) - 1; i >= 0; i-- {
		if sf.slices[i].filter.Contains(key) {
			return true
		}
	}
	return false
}

// ContainsString reports membership for a string key.
func (sf *ScalableFilter) ContainsString(key string) bool {
	return sf.Contains([]byte(key))
}

// Reset discards all slices and restarts from a single slice at the
// initial capacity.
func (sf *ScalableFilter) Reset() {
	sf.slices = nil
	if err := sf.grow(); err != nil {
		panic(fmt.Sprintf("bloom: scalable reset failed: %v", err))
	}
}

// Count returns the total number of keys added across all slices.
func (sf *ScalableFilter) Count() uint64 {
	var n uint64
	for _, s := range sf.slices {
		n += s.filter.Count()
	}
	return n
}

// Slices returns the number of constituent filters.
func (sf *ScalableFilter) Slices() int {
	return len(sf.slices)
}

// EstimatedFPR returns the compound false-positive probability:
// 1 − Π(1 − pᵢ) over the per-slice estimates.
func (sf *ScalableFilter) EstimatedFPR() float64 {
	pass := 1.0
	for _, s := range sf.slices {
		pass *= 1 - s.filter.EstimatedFPR()
	}
	return 1 - pass
}

// SizeBytes returns the approximate memory held by all slices.
func (sf *ScalableFilter) SizeBytes() uint64 {
	var n uint64
	for _, s := range sf.slices {
		n += s.filter.SizeBytes()
	}
	return n
}
