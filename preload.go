package iconcache

import (
	"context"
	"log/slog"
)

type preloadJob struct {
	path string
	size int
}

// Preload queues lookups for every path and size so later requests hit the
// cache. It returns immediately. Paths that do not exist are skipped; nil or
// empty sizes mean DefaultPreloadSizes. Calls after Close are ignored.
func (s *Service) Preload(paths []string, sizes []int) {
	if s.closed.Load() || len(paths) == 0 {
		return
	}
	if len(sizes) == 0 {
		sizes = DefaultPreloadSizes
	}
	jobs := make([]preloadJob, 0, len(paths)*len(sizes))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, exists := s.stat(s.normalize(p)); !exists {
			continue
		}
		for _, size := range sizes {
			if size < 1 || size > MaxIconSize {
				continue
			}
			jobs = append(jobs, preloadJob{path: p, size: size})
		}
	}
	if len(jobs) == 0 {
		return
	}
	if s.preload.Push(jobs...) {
		s.logger.Debug("preload.queued", slog.Int("jobs", len(jobs)))
	}
}

// WaitPreload blocks until the preload queue is idle.
func (s *Service) WaitPreload() {
	s.preload.Wait()
}

func (s *Service) runPreload(job preloadJob) {
	s.Icon(context.Background(), job.path, job.size)
}
