package prefetch

import (
	"slices"
	"time"

	"annotator/internal/metrics"
	"annotator/internal/workers"

	"golang.org/x/sync/errgroup"
)

// requestPass starts a background pass, or applies the busy policy when one
// is already running.
func (s *Session) requestPass() {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	if s.closed {
		return
	}
	if s.running {
		switch s.policy {
		case PassPolicyDrop:
			metrics.PrefetchPassesTotal.WithLabelValues("dropped").Inc()
			s.log.Debug("Pass requested while busy, dropped")
		default:
			if !s.pending {
				metrics.PrefetchPassesTotal.WithLabelValues("coalesced").Inc()
			}
			s.pending = true
		}
		return
	}

	s.running = true
	s.passes.Add(1)
	go s.runPasses()
}

// runPasses runs passes until no follow-up is pending.
func (s *Session) runPasses() {
	defer s.passes.Done()
	for {
		s.runPass()

		s.passMu.Lock()
		if !s.pending || s.closed {
			s.running = false
			s.pending = false
			s.passMu.Unlock()
			return
		}
		s.pending = false
		s.passMu.Unlock()
	}
}

// runPass loads every missing target around the cursor, then inserts the
// results and evicts entries outside the retention range. Loads run without
// the session lock; insert and evict run under it.
func (s *Session) runPass() {
	start := time.Now()

	throttled := s.pressure != nil && s.pressure.ShouldThrottle()

	s.mu.Lock()
	items := s.items
	cursor := s.cursor
	targets := s.window.targets(cursor, len(items))
	if throttled && len(targets) > 1 {
		targets = targets[:1]
	}
	var missing []int
	for _, i := range targets {
		if s.entryLocked(i) == nil {
			missing = append(missing, i)
		}
	}
	s.mu.Unlock()

	metrics.PrefetchPassTargets.Observe(float64(len(missing)))

	loaded := make([]*CacheEntry, len(missing))
	if len(missing) > 0 {
		var g errgroup.Group
		g.SetLimit(workers.ForBatch(len(missing), s.workerLimit))
		for slot, idx := range missing {
			slot := slot
			item := items[idx]
			g.Go(func() error {
				entry, err := s.loader.Load(s.ctx, item)
				if err != nil {
					// Isolated: the index stays uncached and a later pass retries it.
					metrics.PrefetchLoadsTotal.WithLabelValues("error").Inc()
					if s.ctx.Err() == nil {
						s.log.Warn("Failed to load %s: %v", item.Name(), err)
					}
					return nil
				}
				metrics.PrefetchLoadsTotal.WithLabelValues("success").Inc()
				loaded[slot] = entry
				return nil
			})
		}
		_ = g.Wait()
	}

	s.mu.Lock()
	inserted := 0
	for _, e := range loaded {
		if e != nil && s.insertLocked(e) {
			inserted++
		}
	}
	evicted := s.evictLocked()
	size := len(s.entries)
	cursor = s.cursor
	s.mu.Unlock()

	metrics.PrefetchPassesTotal.WithLabelValues("completed").Inc()
	metrics.PrefetchPassDuration.Observe(time.Since(start).Seconds())
	s.log.Debug("Pass at cursor %d: %d wanted, %d inserted, %d evicted, %d cached, throttled=%v (%v)",
		cursor, len(missing), inserted, evicted, size, throttled, time.Since(start))
}

// insertLocked adds e in index order. Entries whose item moved or vanished
// in a rescan during the load, or that are already cached, are discarded.
func (s *Session) insertLocked(e *CacheEntry) bool {
	if e.Index < 0 || e.Index >= len(s.items) || s.items[e.Index].Path != e.Path {
		return false
	}
	pos, found := s.searchLocked(e.Index)
	if found {
		return false
	}
	s.entries = slices.Insert(s.entries, pos, e)
	return true
}

// evictLocked drops entries outside the retention range of the current
// cursor and returns how many were removed.
func (s *Session) evictLocked() int {
	lo, hi := s.window.retention(s.cursor)
	before := len(s.entries)
	s.entries = slices.DeleteFunc(s.entries, func(e *CacheEntry) bool {
		return e.Index < lo || e.Index > hi
	})
	evicted := before - len(s.entries)
	if evicted > 0 {
		metrics.CacheEvictionsTotal.Add(float64(evicted))
	}
	return evicted
}
