// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - MEDIA_ROOT: Directory that holds the datasets; sessions may only open collections below it (default: /data)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - PREFETCH_PREV: Items prefetched behind the cursor (default: 2)
//   - PREFETCH_NEXT: Items prefetched ahead of the cursor (default: 3)
//   - PREFETCH_KEEP: Extra items retained on each side before eviction (default: 5)
//   - PREFETCH_POLICY: coalesce or drop, for passes requested while one is running (default: coalesce)
//   - PREFETCH_WORKERS: Override for concurrent loads per pass
//   - SAVE_BATCH_DELAY: Quiet period before queued label saves are written (default: 2s)
//   - WATCH_COLLECTION: Flag sessions stale when images are added or removed (default: true)
//   - SESSION_IDLE_TIMEOUT: Idle sessions are closed after this long (default: 30m)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_IMAGE_REQUESTS: Log raw image requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
