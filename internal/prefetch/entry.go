package prefetch

import (
	"errors"
	"slices"
	"time"

	"annotator/internal/sidecar"
)

var (
	// ErrItemNotFound is returned when an index or file name does not
	// resolve to an item of the session's collection.
	ErrItemNotFound = errors.New("item not found")
	// ErrReadFailure wraps I/O errors reading an image or its sidecars.
	ErrReadFailure = errors.New("read failure")
	// ErrWriteFailure wraps errors persisting labels.
	ErrWriteFailure = errors.New("write failure")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// CacheEntry is one loaded item: the encoded image plus its annotations.
type CacheEntry struct {
	Path     string `json:"path"`
	Index    int    `json:"index"`
	MimeType string `json:"mimeType"`
	// Payload is a base64 data URL of the image bytes.
	Payload string `json:"payload"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`

	Labels        []sidecar.Label `json:"labels"`
	LabelsPath    string          `json:"labelsPath"`
	LabelsModTime time.Time       `json:"labelsModTime"`

	// Detections are loaded once and never refreshed while cached.
	Detections     []sidecar.Detection `json:"detections"`
	DetectionsPath string              `json:"detectionsPath"`

	LoadedAt time.Time `json:"loadedAt"`
}

// clone returns a copy safe to hand out while the session keeps mutating
// the original's labels.
func (e *CacheEntry) clone() *CacheEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.Labels = slices.Clone(e.Labels)
	if c.Labels == nil {
		c.Labels = []sidecar.Label{}
	}
	c.Detections = slices.Clone(e.Detections)
	return &c
}

// Ref is what navigation returns: the current item and, when it is already
// cached, its entry. A nil Entry is a deferred reference that the caller can
// resolve later or by reading Path directly.
type Ref struct {
	Index int         `json:"index"`
	Path  string      `json:"path"`
	Entry *CacheEntry `json:"entry,omitempty"`
}

// Cached reports whether the reference carries its entry.
func (r Ref) Cached() bool { return r.Entry != nil }

// End terminates a delta batch. It carries the retention radii so consumers
// can evict with the same window the session uses.
type End struct {
	Cursor       int `json:"cursor"`
	Total        int `json:"total"`
	RetainBefore int `json:"retainBefore"`
	RetainAfter  int `json:"retainAfter"`
}

// Delta is the set of cached entries a consumer does not know yet, in
// ascending index order, followed by the end marker.
type Delta struct {
	Entries []*CacheEntry `json:"entries"`
	End     End           `json:"end"`
}

// Status summarizes cache occupancy.
type Status struct {
	CachedCount          int    `json:"cachedCount"`
	TotalCount           int    `json:"totalCount"`
	CurrentIndexIsCached bool   `json:"currentIndexIsCached"`
	Cursor               int    `json:"cursor"`
	Window               Window `json:"window"`
	CachedBytes          int64  `json:"cachedBytes"`
	PassRunning          bool   `json:"passRunning"`
	// Stale is set when the collection directory changed after indexing.
	Stale bool `json:"stale"`
}
