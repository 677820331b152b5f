// Package metrics provides Prometheus instrumentation for the annotator service.
//
// All metrics are prefixed with "annotator_" and registered through promauto
// at package init.
//
// # Metric Categories
//
//   - HTTP: request counts, durations and in-flight requests.
//   - Collection: index runs, items found, watcher events.
//   - Prefetch: passes by outcome (completed, dropped, coalesced), per-load
//     duration and status, payload sizes, evictions, current-entry hits and
//     misses, label mtime validations, dropped sidecar records.
//   - Persistence: label saves and batched flushes.
//   - Sessions: gauges refreshed by Collector from a StatsProvider.
//   - Filesystem: operation latency and NFS retry behaviour, recorded through
//     the filesystem.Observer returned by NewFilesystemObserver.
//
// Call InitializeMetrics once at startup so every labeled series is exported
// from the first scrape.
package metrics
