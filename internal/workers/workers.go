package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the environment variable that pins the prefetch loader
// concurrency regardless of available CPUs.
const OverrideEnv = "PREFETCH_WORKERS"

// Count returns the number of concurrent loaders to use.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics; prefetch loads are
// dominated by file reads, so callers normally go through ForIO.
//
// The limit parameter caps the worker count to prevent resource exhaustion.
// Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
// The limit parameter caps the maximum number of workers.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForBatch sizes a pool for a batch of n independent I/O jobs: never more
// workers than jobs, never fewer than one.
func ForBatch(n, limit int) int {
	w := ForIO(limit)
	if n > 0 && n < w {
		w = n
	}
	return w
}
