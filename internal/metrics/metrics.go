package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "annotator_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotator_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Collection indexing metrics
var (
	CollectionIndexTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_collection_index_total",
			Help: "Total number of collection index runs by status",
		},
		[]string{"status"},
	)

	CollectionIndexDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotator_collection_index_duration_seconds",
			Help:    "Time spent listing and sorting a collection directory",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	CollectionItemsIndexed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotator_collection_items_indexed",
			Help:    "Number of images found per index run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	CollectionWatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_collection_watcher_events_total",
			Help: "File system events seen in watched collection directories",
		},
		[]string{"event"},
	)

	CollectionWatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "annotator_collection_watcher_errors_total",
			Help: "Errors reported by collection watchers",
		},
	)
)

// Prefetch cache metrics
var (
	PrefetchPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_prefetch_passes_total",
			Help: "Prefetch pass requests by outcome (completed, dropped, coalesced)",
		},
		[]string{"outcome"},
	)

	PrefetchPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotator_prefetch_pass_duration_seconds",
			Help:    "Duration of a prefetch pass including fan-out loads",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	PrefetchPassTargets = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotator_prefetch_pass_targets",
			Help:    "Number of uncached indices loaded per pass",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	PrefetchLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_prefetch_loads_total",
			Help: "Cache entry loads by status",
		},
		[]string{"status"},
	)

	PrefetchLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotator_prefetch_load_duration_seconds",
			Help:    "Duration of a single cache entry load",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	PrefetchPayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotator_prefetch_payload_bytes",
			Help:    "Size of raw image payloads loaded into the cache",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_cache_lookups_total",
			Help: "Current-entry lookups after navigation by result (hit, miss)",
		},
		[]string{"result"},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "annotator_cache_evictions_total",
			Help: "Cache entries dropped by eviction sweeps",
		},
	)

	LabelValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_label_validations_total",
			Help: "Label modification-time checks by result (reused, reloaded, error)",
		},
		[]string{"result"},
	)

	SidecarRecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_sidecar_records_dropped_total",
			Help: "Malformed or out-of-range sidecar records skipped while parsing",
		},
		[]string{"kind"},
	)
)

// Persistence metrics
var (
	LabelSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_label_saves_total",
			Help: "Label sidecar saves by status",
		},
		[]string{"status"},
	)

	LabelSaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotator_label_save_duration_seconds",
			Help:    "Duration of a write-through label save",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	SaveBatchFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_save_batch_flushes_total",
			Help: "Batched save flushes by trigger (timer, force, close)",
		},
		[]string{"trigger"},
	)
)

// Session metrics, refreshed by the Collector
var (
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotator_active_sessions",
			Help: "Number of open annotation sessions",
		},
	)

	CachedEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotator_cached_entries",
			Help: "Cache entries held across all sessions",
		},
	)

	CachedPayloadBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotator_cached_payload_bytes",
			Help: "Encoded payload bytes held across all sessions",
		},
	)

	PendingSaves = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotator_pending_saves",
			Help: "Label saves queued in save batchers",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "annotator_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by file kind and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"kind", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by file kind and operation",
		},
		[]string{"kind", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_filesystem_retry_attempts_total",
			Help: "Retries performed after NFS stale file handle errors",
		},
		[]string{"operation", "kind"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "kind"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "kind"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotator_filesystem_stale_errors_total",
			Help: "NFS stale file handle errors observed",
		},
		[]string{"operation", "kind"},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "annotator_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotator_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the memory limit",
		},
	)

	MemoryThrottled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "annotator_memory_prefetch_throttled",
			Help: "1 while prefetch read-ahead is suspended for memory pressure",
		},
	)

	MemoryForcedGCs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "annotator_memory_forced_gc_total",
			Help: "Garbage collections forced at the critical water mark",
		},
	)
)
