package prefetch

import (
	"context"
	"fmt"
	"slices"
	"time"

	"annotator/internal/collection"
	"annotator/internal/filesystem"
	"annotator/internal/metrics"
	"annotator/internal/sidecar"
)

// CurrentLabels returns the labels of the item under the cursor.
func (s *Session) CurrentLabels() ([]sidecar.Label, error) {
	return s.Labels(s.Cursor())
}

// Labels returns the labels of item i. For a cached item the sidecar's
// modification time is compared with the one recorded at load: an equal or
// older file reuses the cached labels, a newer (or deleted) one is reloaded
// and the entry refreshed. Uncached items are read straight from disk.
func (s *Session) Labels(i int) ([]sidecar.Label, error) {
	s.mu.Lock()
	if i < 0 || i >= len(s.items) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: index %d", ErrItemNotFound, i)
	}
	item := s.items[i]
	entry := s.entryLocked(i)
	var (
		path     string
		cachedAt time.Time
		cached   []sidecar.Label
	)
	if entry != nil {
		path = entry.LabelsPath
		cachedAt = entry.LabelsModTime
		cached = slices.Clone(entry.Labels)
	}
	s.mu.Unlock()

	if entry == nil {
		lf, err := sidecar.ReadLabels(sidecar.LabelsPath(item.Path), s.retry)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
		}
		return lf.Labels, nil
	}

	diskAt, exists, err := filesystem.ModTime(path, s.retry)
	if err != nil {
		metrics.LabelValidationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: stat labels %s: %v", ErrReadFailure, path, err)
	}
	if !diskAt.After(cachedAt) && (exists || cachedAt.IsZero()) {
		metrics.LabelValidationsTotal.WithLabelValues("reused").Inc()
		if cached == nil {
			cached = []sidecar.Label{}
		}
		return cached, nil
	}

	lf, err := sidecar.ReadLabels(path, s.retry)
	if err != nil {
		metrics.LabelValidationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	metrics.LabelValidationsTotal.WithLabelValues("reloaded").Inc()

	s.mu.Lock()
	// Skip the refresh if the entry was evicted or saved meanwhile.
	if s.entryLocked(i) == entry && entry.LabelsModTime.Equal(cachedAt) {
		entry.Labels = slices.Clone(lf.Labels)
		entry.LabelsModTime = lf.ModTime
	}
	s.mu.Unlock()

	s.log.Debug("Reloaded labels for %s (disk %v, cached %v)", item.Name(), diskAt, cachedAt)
	return lf.Labels, nil
}

// CurrentDetections returns the detections of the item under the cursor.
func (s *Session) CurrentDetections() ([]sidecar.Detection, error) {
	return s.Detections(s.Cursor())
}

// Detections returns the detections of item i. Cached detections are never
// re-read.
func (s *Session) Detections(i int) ([]sidecar.Detection, error) {
	s.mu.Lock()
	if i < 0 || i >= len(s.items) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: index %d", ErrItemNotFound, i)
	}
	item := s.items[i]
	if entry := s.entryLocked(i); entry != nil {
		detections := slices.Clone(entry.Detections)
		s.mu.Unlock()
		if detections == nil {
			detections = []sidecar.Detection{}
		}
		return detections, nil
	}
	s.mu.Unlock()

	detections, err := sidecar.ReadDetections(sidecar.DetectionsPath(item.Path), s.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	return detections, nil
}

// SaveLabels writes labels for the item whose file name matches name and,
// when the item is cached, updates its entry with the labels and the new
// sidecar modification time. The returned entry is nil for uncached items.
// On failure nothing in the cache changes.
func (s *Session) SaveLabels(ctx context.Context, name string, labels []sidecar.Label) (*CacheEntry, error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.LabelSavesTotal.WithLabelValues(status).Inc()
		metrics.LabelSaveDuration.Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}

	s.mu.Lock()
	idx := collection.FindByName(s.items, name)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	item := s.items[idx]
	path := sidecar.LabelsPath(item.Path)
	if entry := s.entryLocked(idx); entry != nil && entry.LabelsPath != "" {
		path = entry.LabelsPath
	}
	s.mu.Unlock()

	mtime, err := sidecar.WriteLabels(path, labels, s.retry)
	if err != nil {
		s.log.Error("Failed to save labels for %s: %v", item.Name(), err)
		return nil, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	status = "success"

	saved := slices.Clone(labels)
	if saved == nil {
		saved = []sidecar.Label{}
	}

	s.mu.Lock()
	var out *CacheEntry
	if entry := s.entryLocked(item.Index); entry != nil && entry.Path == item.Path {
		entry.Labels = saved
		entry.LabelsModTime = mtime
		out = entry.clone()
	}
	s.mu.Unlock()

	s.log.Debug("Saved %d labels for %s to %s", len(labels), item.Name(), path)
	return out, nil
}

// classCache remembers the class list and the classes.txt mtime it was read at.
type classCache struct {
	path    string
	modTime time.Time
	names   []string
}

// ClassNames returns the names from the dataset's classes.txt, or an empty
// list when there is none. The file is re-read when its mtime changes.
func (s *Session) ClassNames() ([]string, error) {
	s.mu.Lock()
	cc := s.classes
	item := s.items[s.cursor]
	s.mu.Unlock()

	if cc == nil {
		cc = &classCache{path: sidecar.FindClassesFile(item.Path)}
	}
	if cc.path == "" {
		return []string{}, nil
	}

	mtime, exists, err := filesystem.ModTime(cc.path, s.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if !exists {
		// Moved or deleted; search again next time.
		s.storeClasses(nil)
		return []string{}, nil
	}
	if cc.names != nil && mtime.Equal(cc.modTime) {
		return slices.Clone(cc.names), nil
	}

	names, err := sidecar.ReadClassNames(cc.path, s.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	s.storeClasses(&classCache{path: cc.path, modTime: mtime, names: names})
	return slices.Clone(names), nil
}

func (s *Session) storeClasses(cc *classCache) {
	s.mu.Lock()
	s.classes = cc
	s.mu.Unlock()
}

// DeltaSince returns the cached entries whose indices are not in known,
// ascending, and the end marker. Evicted entries are never reported.
func (s *Session) DeltaSince(known []int) Delta {
	seen := make(map[int]struct{}, len(known))
	for _, i := range known {
		seen[i] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*CacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if _, ok := seen[e.Index]; !ok {
			entries = append(entries, e.clone())
		}
	}
	return Delta{
		Entries: entries,
		End: End{
			Cursor:       s.cursor,
			Total:        len(s.items),
			RetainBefore: s.window.RetainBefore(),
			RetainAfter:  s.window.RetainAfter(),
		},
	}
}
