package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range []string{"success", "empty", "error"} {
		CollectionIndexTotal.WithLabelValues(status)
	}

	for _, event := range []string{"create", "write", "remove", "rename", "chmod"} {
		CollectionWatcherEventsTotal.WithLabelValues(event)
	}

	for _, outcome := range []string{"completed", "dropped", "coalesced"} {
		PrefetchPassesTotal.WithLabelValues(outcome)
	}

	for _, status := range []string{"success", "error"} {
		PrefetchLoadsTotal.WithLabelValues(status)
		LabelSavesTotal.WithLabelValues(status)
	}

	for _, result := range []string{"hit", "miss"} {
		CacheLookupsTotal.WithLabelValues(result)
	}

	for _, result := range []string{"reused", "reloaded", "error"} {
		LabelValidationsTotal.WithLabelValues(result)
	}

	for _, kind := range []string{"labels", "detections"} {
		SidecarRecordsDropped.WithLabelValues(kind)
	}

	for _, trigger := range []string{"timer", "force", "close"} {
		SaveBatchFlushesTotal.WithLabelValues(trigger)
	}

	// --- Filesystem operation metrics (per kind × operation) ---
	kinds := []string{"image", "labels", "detections", "other"}
	ops := []string{"stat", "read", "write"}

	for _, kind := range kinds {
		for _, op := range ops {
			FilesystemOperationDuration.WithLabelValues(kind, op)
			FilesystemOperationErrors.WithLabelValues(kind, op)
			FilesystemRetryAttempts.WithLabelValues(op, kind)
			FilesystemRetrySuccess.WithLabelValues(op, kind)
			FilesystemRetryFailures.WithLabelValues(op, kind)
			FilesystemStaleErrors.WithLabelValues(op, kind)
		}
	}
}
