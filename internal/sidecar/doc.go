// Package sidecar reads and writes the text files that carry per-image
// annotations next to a dataset's images.
//
// A label sidecar holds one box per line:
//
//	<classId> <cx> <cy> <w> <h>
//
// with the four floats normalized to [0,1] and written with six decimals.
// A detection sidecar adds a sixth confidence field. Lines that fail the
// field-count, parse or range checks are dropped silently; the rest of the
// file is still used. Missing sidecars read as empty.
//
// LabelsPath and DetectionsPath locate the sidecars: a sibling file wins,
// otherwise the last directory segment named exactly "images" is swapped for
// "labels" or "detections".
package sidecar
