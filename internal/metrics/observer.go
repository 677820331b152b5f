package metrics

import "annotator/internal/filesystem"

// filesystemObserver implements filesystem.Observer using the Prometheus
// metrics declared in this package.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records filesystem metrics
// into the Prometheus counters and histograms declared in metrics.go.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveOperation(kind, operation string, durationSeconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(kind, operation).Observe(durationSeconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(kind, operation).Inc()
	}
}

func (o *filesystemObserver) ObserveRetryAttempt(operation, kind string) {
	FilesystemRetryAttempts.WithLabelValues(operation, kind).Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(operation, kind string) {
	FilesystemRetrySuccess.WithLabelValues(operation, kind).Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(operation, kind string) {
	FilesystemRetryFailures.WithLabelValues(operation, kind).Inc()
}

func (o *filesystemObserver) ObserveStaleError(operation, kind string) {
	FilesystemStaleErrors.WithLabelValues(operation, kind).Inc()
}
