package metrics

import (
	"sync"
	"time"

	"annotator/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	ActiveSessions int
	CachedEntries  int
	CachedBytes    int64
	PendingSaves   int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	ActiveSessions.Set(float64(stats.ActiveSessions))
	CachedEntries.Set(float64(stats.CachedEntries))
	CachedPayloadBytes.Set(float64(stats.CachedBytes))
	PendingSaves.Set(float64(stats.PendingSaves))

	logging.Debug("Metrics collected: sessions=%d, entries=%d, bytes=%d, pendingSaves=%d",
		stats.ActiveSessions, stats.CachedEntries, stats.CachedBytes, stats.PendingSaves)
}
