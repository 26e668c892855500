// Package resource provides the memory and disk primitives backing the
// streaming operations: heap-pressure detection, batched
// flush-on-pressure buffering, and a key-addressed disk spill store for
// intermediate results that must survive memory pressure outside the
// sorter's chunk model.
package resource

import (
	"runtime"
)

const (
	// DefaultMemoryLimit is assumed when no limit is configured.
	DefaultMemoryLimit = 1 << 30 // 1GB
	// DefaultPressureThreshold is the heap-usage fraction above which
	// the monitor reports pressure.
	DefaultPressureThreshold = 0.8
)

// Monitor tracks heap usage against a soft limit. It is a point-in-time
// sampler over runtime.ReadMemStats; callers poll it at their own
// suspension points.
type Monitor struct {
	limit     uint64
	threshold float64
}

// Usage is a snapshot of heap consumption.
type Usage struct {
	// HeapBytes is the currently allocated heap memory.
	HeapBytes uint64
	// LimitBytes is the configured soft limit.
	LimitBytes uint64
}

// NewMonitor creates a monitor with the given soft limit and pressure
// threshold. Zero values select the defaults.
func NewMonitor(limitBytes uint64, threshold float64) *Monitor {
	if limitBytes == 0 {
		limitBytes = DefaultMemoryLimit
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultPressureThreshold
	}
	return &Monitor{limit: limitBytes, threshold: threshold}
}

// Usage returns the current heap usage snapshot.
func (m *Monitor) Usage() Usage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Usage{HeapBytes: ms.HeapAlloc, LimitBytes: m.limit}
}

// UnderPressure reports whether heap usage exceeds the threshold
// fraction of the limit.
func (m *Monitor) UnderPressure() bool {
	u := m.Usage()
	return float64(u.HeapBytes) > m.threshold*float64(u.LimitBytes)
}

// GCHint requests a collection. Best effort only; the runtime decides
// what actually happens.
func (m *Monitor) GCHint() {
	runtime.GC()
}
