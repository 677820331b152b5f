// Command annotator serves image collections for YOLO label editing.
//
// Each client opens a session on a directory below MEDIA_ROOT. The session
// keeps a window of decoded-to-base64 images and their label records in
// memory around the cursor and prefetches ahead in the background, so
// paging through a dataset never waits on disk. Label edits are written
// back to the sidecar .txt files atomically, in batches.
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080): session API under /api/sessions,
//     health probes and /version.
//  2. Metrics Server (default port 9090, optional): Prometheus /metrics
//     and /health.
//
// # Environment Variables
//
//   - MEDIA_ROOT: Directory that holds the datasets (default: /data)
//   - PORT: Main HTTP server port (default: 8080)
//   - METRICS_PORT: Metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable metrics server (default: true)
//   - PREFETCH_PREV, PREFETCH_NEXT, PREFETCH_KEEP: Window radii (default: 2, 3, 5)
//   - PREFETCH_POLICY: coalesce or drop (default: coalesce)
//   - SAVE_BATCH_DELAY: Quiet period before queued saves are written (default: 2s)
//   - WATCH_COLLECTION: Flag sessions stale when their directory changes (default: true)
//   - SESSION_IDLE_TIMEOUT: Close sessions idle this long (default: 30m, 0 disables)
//   - LOG_IMAGE_REQUESTS, LOG_HEALTH_CHECKS: Access log filtering
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server stops accepting requests, flushes every
// session's queued label saves, closes the sessions and stops the metrics
// collector and server.
package main
