package iconcache

import (
	"sync/atomic"
	"time"

	"github.com/meigma/iconcache/cache/memory"
)

type counters struct {
	totalRequests     atomic.Int64
	memoryHits        atomic.Int64
	diskHits          atomic.Int64
	extractions       atomic.Int64
	failedExtractions atomic.Int64
	placeholders      atomic.Int64
}

func (c *counters) reset() {
	c.totalRequests.Store(0)
	c.memoryHits.Store(0)
	c.diskHits.Store(0)
	c.extractions.Store(0)
	c.failedExtractions.Store(0)
	c.placeholders.Store(0)
}

// Stats is a snapshot of the service counters and derived rates.
type Stats struct {
	TotalRequests     int64 `json:"total_requests"`
	MemoryHits        int64 `json:"memory_hits"`
	DiskHits          int64 `json:"disk_hits"`
	Extractions       int64 `json:"extractions"`
	FailedExtractions int64 `json:"failed_extractions"`
	Placeholders      int64 `json:"placeholders"`

	// MemoryHitRate is memory hits as a percentage of all requests.
	MemoryHitRate float64 `json:"memory_hit_rate"`
	// ExtractionSuccessRate is successful extractions as a percentage of attempts.
	ExtractionSuccessRate float64 `json:"extraction_success_rate"`
	RequestsPerSecond     float64 `json:"requests_per_second"`
	UptimeSeconds         float64 `json:"uptime_seconds"`

	StartTime    time.Time    `json:"start_time"`
	Memory       memory.Stats `json:"memory"`
	CacheDir     string       `json:"cache_dir"`
	PreloadQueue int          `json:"preload_queue"`
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	s.startMu.RLock()
	start := s.startTime
	s.startMu.RUnlock()

	st := Stats{
		TotalRequests:     s.stats.totalRequests.Load(),
		MemoryHits:        s.stats.memoryHits.Load(),
		DiskHits:          s.stats.diskHits.Load(),
		Extractions:       s.stats.extractions.Load(),
		FailedExtractions: s.stats.failedExtractions.Load(),
		Placeholders:      s.stats.placeholders.Load(),
		StartTime:         start,
		Memory:            s.memory.Stats(),
		CacheDir:          s.disk.Dir(),
		PreloadQueue:      s.preload.Len(),
	}
	if st.TotalRequests > 0 {
		st.MemoryHitRate = float64(st.MemoryHits) / float64(st.TotalRequests) * 100
	}
	if st.Extractions > 0 {
		st.ExtractionSuccessRate = float64(st.Extractions-st.FailedExtractions) / float64(st.Extractions) * 100
	}
	uptime := time.Since(start)
	st.UptimeSeconds = uptime.Seconds()
	if uptime > 0 {
		st.RequestsPerSecond = float64(st.TotalRequests) / uptime.Seconds()
	}
	return st
}

func (s *Service) resetStats() {
	s.stats.reset()
	s.startMu.Lock()
	s.startTime = time.Now()
	s.startMu.Unlock()
}
