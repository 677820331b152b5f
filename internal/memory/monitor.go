package memory

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"annotator/internal/logging"
	"annotator/internal/metrics"
)

// Config holds memory monitor settings.
type Config struct {
	// LimitBytes is the budget usage is measured against. Zero uses
	// GOMEMLIMIT; with neither set the monitor never throttles.
	LimitBytes int64

	// HighWaterMark is the usage ratio above which prefetching is throttled.
	HighWaterMark float64

	// CriticalWaterMark is the usage ratio that additionally forces a GC.
	CriticalWaterMark float64

	CheckInterval time.Duration
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and tells prefetch sessions when to stop
// reading ahead. It satisfies prefetch.Pressure.
type Monitor struct {
	config Config
	limit  int64

	mu        sync.RWMutex
	alloc     uint64
	throttled bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a monitor. Call Start to begin sampling.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
		}
	}
	if limit == 0 {
		logging.Info("Memory monitor: no limit configured, prefetch throttling disabled")
	} else {
		logging.Info("Memory monitor: limit %s, throttling above %.0f%%", FormatBytes(limit), config.HighWaterMark*100)
	}
	return &Monitor{config: config, limit: limit, stop: make(chan struct{})}
}

// Start begins periodic sampling. Without a limit it does nothing.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				var stats runtime.MemStats
				runtime.ReadMemStats(&stats)
				m.observe(stats.Alloc)
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// observe records one heap sample and updates the throttle state.
func (m *Monitor) observe(alloc uint64) {
	if m.limit == 0 {
		return
	}
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	m.alloc = alloc
	was := m.throttled
	switch {
	case usage >= m.config.HighWaterMark:
		m.throttled = true
	case usage < m.config.HighWaterMark*0.9:
		// cleared only once usage drops 10% below the mark
		m.throttled = false
	}
	now := m.throttled
	m.mu.Unlock()

	if now != was {
		if now {
			logging.Warn("Memory high (%.1f%% of limit), prefetch limited to the current item", usage*100)
			metrics.MemoryThrottled.Set(1)
		} else {
			logging.Info("Memory recovered (%.1f%% of limit), prefetch resumed", usage*100)
			metrics.MemoryThrottled.Set(0)
		}
	}
	if usage >= m.config.CriticalWaterMark {
		metrics.MemoryForcedGCs.Inc()
		go runtime.GC()
	}
}

// ShouldThrottle reports whether heap usage is above the high water mark.
func (m *Monitor) ShouldThrottle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.throttled
}

// Usage returns the last sampled heap usage as a ratio of the limit, or 0
// without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.alloc) / float64(m.limit)
}
