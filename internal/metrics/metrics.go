// Package metrics defines the counters updated by the icon service and the
// request gateway, with no-op, in-process and Prometheus implementations.
package metrics

import (
	"sync/atomic"
	"time"
)

// Interface is the metrics sink used by the service and gateway.
type Interface interface {
	IncRequest()
	IncMemoryHit()
	IncDiskHit()
	IncExtraction()
	IncExtractionFailed()
	IncPlaceholder()
	IncDeduplicated()
	AddEvicted(n int)
	SetMemoryEntries(n int)
	ObserveExtraction(d time.Duration)
}

// Noop discards all updates.
type Noop struct{}

// IncRequest does nothing.
func (Noop) IncRequest() {}

// IncMemoryHit does nothing.
func (Noop) IncMemoryHit() {}

// IncDiskHit does nothing.
func (Noop) IncDiskHit() {}

// IncExtraction does nothing.
func (Noop) IncExtraction() {}

// IncExtractionFailed does nothing.
func (Noop) IncExtractionFailed() {}

// IncPlaceholder does nothing.
func (Noop) IncPlaceholder() {}

// IncDeduplicated does nothing.
func (Noop) IncDeduplicated() {}

// AddEvicted does nothing.
func (Noop) AddEvicted(_ int) {}

// SetMemoryEntries does nothing.
func (Noop) SetMemoryEntries(_ int) {}

// ObserveExtraction does nothing.
func (Noop) ObserveExtraction(_ time.Duration) {}

// Simple keeps counters in memory; useful in tests.
type Simple struct {
	Requests          atomic.Uint64
	MemoryHits        atomic.Uint64
	DiskHits          atomic.Uint64
	Extractions       atomic.Uint64
	ExtractionsFailed atomic.Uint64
	Placeholders      atomic.Uint64
	Deduplicated      atomic.Uint64
	Evicted           atomic.Uint64
	MemoryEntries     atomic.Uint64
	ExtractionNanos   atomic.Uint64
}

// NewSimple returns zeroed counters.
func NewSimple() *Simple { return &Simple{} }

// IncRequest counts a lookup.
func (m *Simple) IncRequest() { m.Requests.Add(1) }

// IncMemoryHit counts a memory tier hit.
func (m *Simple) IncMemoryHit() { m.MemoryHits.Add(1) }

// IncDiskHit counts a disk tier hit.
func (m *Simple) IncDiskHit() { m.DiskHits.Add(1) }

// IncExtraction counts an extraction attempt.
func (m *Simple) IncExtraction() { m.Extractions.Add(1) }

// IncExtractionFailed counts a failed extraction.
func (m *Simple) IncExtractionFailed() { m.ExtractionsFailed.Add(1) }

// IncPlaceholder counts a synthesized missing-file placeholder.
func (m *Simple) IncPlaceholder() { m.Placeholders.Add(1) }

// IncDeduplicated counts a gateway request answered with the loading icon.
func (m *Simple) IncDeduplicated() { m.Deduplicated.Add(1) }

// AddEvicted adds n memory evictions.
func (m *Simple) AddEvicted(n int) {
	if n > 0 {
		m.Evicted.Add(uint64(n))
	}
}

// SetMemoryEntries records the memory tier occupancy.
func (m *Simple) SetMemoryEntries(n int) {
	if n >= 0 {
		m.MemoryEntries.Store(uint64(n))
	}
}

// ObserveExtraction accumulates extraction time.
func (m *Simple) ObserveExtraction(d time.Duration) {
	if d > 0 {
		m.ExtractionNanos.Add(uint64(d))
	}
}
