/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

# Purpose

Datasets are frequently mounted over NFS. Reading an image or a label sidecar
while the server is rotating file handles produces ESTALE, which usually clears
on the next attempt. This package wraps the handful of operations the prefetch
cache needs (stat, read, atomic write) with exponential backoff for that case.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())

	// Missing files are not errors for sidecars.
	mtime, exists, err := filesystem.ModTime(labelsPath, filesystem.DefaultRetryConfig())

	// Temp file + rename; parent directories are created.
	info, err := filesystem.WriteFileAtomic(labelsPath, data, 0o644, filesystem.DefaultRetryConfig())

# Retry Behavior

Defaults: 3 retries, 50ms initial backoff doubling up to 500ms. Only ESTALE
triggers a retry; every other error fails immediately.

# Metrics

Install an Observer with SetObserver (the metrics package provides one).
Operations are labeled by file kind: image, labels, detections or other.
*/
package filesystem
