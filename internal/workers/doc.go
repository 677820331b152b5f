/*
Package workers sizes the loader pool used by prefetch passes.

A prefetch pass reads a handful of images and sidecar files concurrently.
The work is I/O-bound, so the pool defaults to two loaders per available CPU
(GOMAXPROCS, which respects container limits in Go 1.19+), capped by the
caller and by the number of jobs in the batch:

	n := workers.ForBatch(len(targets), 16)

Operators can pin the value with the PREFETCH_WORKERS environment variable.
*/
package workers
