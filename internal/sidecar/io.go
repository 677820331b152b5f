package sidecar

import (
	"errors"
	"fmt"
	"os"
	"time"

	"annotator/internal/filesystem"
	"annotator/internal/logging"
	"annotator/internal/metrics"
)

// LabelFile is the parsed content of a label sidecar together with the
// modification time observed before it was read.
type LabelFile struct {
	Labels  []Label
	ModTime time.Time
	Exists  bool
}

// ReadLabels stats and parses a label sidecar. A missing file yields an empty
// list and a zero ModTime, not an error.
func ReadLabels(path string, config filesystem.RetryConfig) (LabelFile, error) {
	mtime, exists, err := filesystem.ModTime(path, config)
	if err != nil {
		return LabelFile{}, fmt.Errorf("stat labels %s: %w", path, err)
	}
	if !exists {
		return LabelFile{Labels: []Label{}}, nil
	}

	data, err := filesystem.ReadFileWithRetry(path, config)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LabelFile{Labels: []Label{}}, nil
		}
		return LabelFile{}, fmt.Errorf("read labels %s: %w", path, err)
	}

	labels, dropped := ParseLabels(data)
	if dropped > 0 {
		metrics.SidecarRecordsDropped.WithLabelValues("labels").Add(float64(dropped))
		logging.Debug("Dropped %d malformed label records in %s", dropped, path)
	}
	return LabelFile{Labels: labels, ModTime: mtime, Exists: true}, nil
}

// ReadDetections parses a detection sidecar. A missing file yields an empty list.
func ReadDetections(path string, config filesystem.RetryConfig) ([]Detection, error) {
	data, err := filesystem.ReadFileWithRetry(path, config)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Detection{}, nil
		}
		return nil, fmt.Errorf("read detections %s: %w", path, err)
	}

	detections, dropped := ParseDetections(data)
	if dropped > 0 {
		metrics.SidecarRecordsDropped.WithLabelValues("detections").Add(float64(dropped))
		logging.Debug("Dropped %d malformed detection records in %s", dropped, path)
	}
	return detections, nil
}

// WriteLabels validates labels and replaces the sidecar at path atomically,
// creating parent directories as needed. It returns the new file's
// modification time.
func WriteLabels(path string, labels []Label, config filesystem.RetryConfig) (time.Time, error) {
	for i, l := range labels {
		if err := l.Validate(); err != nil {
			return time.Time{}, fmt.Errorf("label %d: %w", i, err)
		}
	}

	info, err := filesystem.WriteFileAtomic(path, FormatLabels(labels), 0o644, config)
	if err != nil {
		return time.Time{}, fmt.Errorf("write labels %s: %w", path, err)
	}
	return info.ModTime(), nil
}
