package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prom exports the counters to Prometheus.
type Prom struct {
	requests          prometheus.Counter
	memoryHits        prometheus.Counter
	diskHits          prometheus.Counter
	extractions       prometheus.Counter
	extractionsFailed prometheus.Counter
	placeholders      prometheus.Counter
	deduplicated      prometheus.Counter
	evicted           prometheus.Counter
	memoryEntries     prometheus.Gauge
	extractSeconds    prometheus.Histogram
}

// NewProm creates the collectors under namespace and registers them with reg.
// Registration panics on duplicates, so call it once per registry.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	makeC := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	p := &Prom{
		requests:          makeC("requests_total", "Number of icon lookups"),
		memoryHits:        makeC("memory_hits_total", "Number of memory tier hits"),
		diskHits:          makeC("disk_hits_total", "Number of disk tier hits"),
		extractions:       makeC("extractions_total", "Number of extraction attempts"),
		extractionsFailed: makeC("extractions_failed_total", "Number of failed extractions"),
		placeholders:      makeC("missing_placeholders_total", "Number of placeholders cached for missing files"),
		deduplicated:      makeC("deduplicated_total", "Number of gateway requests answered while in flight"),
		evicted:           makeC("memory_evicted_total", "Number of memory tier evictions"),
		memoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_entries",
			Help:      "Current number of bitmaps in the memory tier",
		}),
		extractSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent in the extraction chain",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}

	reg.MustRegister(
		p.requests, p.memoryHits, p.diskHits, p.extractions, p.extractionsFailed,
		p.placeholders, p.deduplicated, p.evicted, p.memoryEntries, p.extractSeconds,
	)
	return p
}

// IncRequest counts a lookup.
func (p *Prom) IncRequest() { p.requests.Inc() }

// IncMemoryHit counts a memory tier hit.
func (p *Prom) IncMemoryHit() { p.memoryHits.Inc() }

// IncDiskHit counts a disk tier hit.
func (p *Prom) IncDiskHit() { p.diskHits.Inc() }

// IncExtraction counts an extraction attempt.
func (p *Prom) IncExtraction() { p.extractions.Inc() }

// IncExtractionFailed counts a failed extraction.
func (p *Prom) IncExtractionFailed() { p.extractionsFailed.Inc() }

// IncPlaceholder counts a synthesized missing-file placeholder.
func (p *Prom) IncPlaceholder() { p.placeholders.Inc() }

// IncDeduplicated counts a gateway request answered with the loading icon.
func (p *Prom) IncDeduplicated() { p.deduplicated.Inc() }

// AddEvicted adds n memory evictions.
func (p *Prom) AddEvicted(n int) {
	if n > 0 {
		p.evicted.Add(float64(n))
	}
}

// SetMemoryEntries records the memory tier occupancy.
func (p *Prom) SetMemoryEntries(n int) {
	if n >= 0 {
		p.memoryEntries.Set(float64(n))
	}
}

// ObserveExtraction records one extraction duration.
func (p *Prom) ObserveExtraction(d time.Duration) {
	p.extractSeconds.Observe(d.Seconds())
}
