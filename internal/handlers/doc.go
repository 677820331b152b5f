// Package handlers exposes annotation sessions over HTTP.
//
// A session wraps a prefetch.Session for one image directory below the
// media root. Routes cover navigation (next, previous, goto, current),
// label reads and queued writes, detections, delta sync of cached entries,
// window changes, rescans, class names and raw image files.
//
// Label writes go through a SaveBatcher, which coalesces saves per item and
// writes them after SAVE_BATCH_DELAY unless the request forces a flush.
// Idle sessions are closed by CloseIdle, which main runs on a ticker.
//
// Handlers also implements metrics.StatsProvider so the metrics collector
// can report cache occupancy across sessions.
package handlers
