package collection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"annotator/internal/logging"
	"annotator/internal/mediatypes"
	"annotator/internal/metrics"
)

// ErrEmptyCollection is returned by Index when a directory holds no images.
var ErrEmptyCollection = errors.New("collection contains no images")

// Item is one image in an indexed collection.
type Item struct {
	// Path is the absolute path of the image file.
	Path string `json:"path"`
	// Index is the item's position in the natural-sorted sequence.
	Index int `json:"index"`
}

// Name returns the item's file name.
func (it Item) Name() string {
	return filepath.Base(it.Path)
}

// Index lists dir (non-recursively) and returns its images in natural order.
// Hidden files are skipped and extensions match case-insensitively.
func Index(dir string) ([]Item, error) {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.CollectionIndexTotal.WithLabelValues(status).Inc()
		metrics.CollectionIndexDuration.Observe(time.Since(start).Seconds())
	}()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("resolve collection directory: %w", err)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("read collection directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !mediatypes.IsCollectionImage(name) {
			continue
		}
		if !entry.Type().IsRegular() {
			// Symlinks to images are accepted; directories named like images are not.
			info, err := os.Stat(filepath.Join(absDir, name))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		names = append(names, name)
	}

	if len(names) == 0 {
		status = "empty"
		return nil, fmt.Errorf("%s: %w", absDir, ErrEmptyCollection)
	}

	slices.SortFunc(names, func(a, b string) int {
		switch {
		case naturalLess(a, b):
			return -1
		case naturalLess(b, a):
			return 1
		default:
			return 0
		}
	})

	items := make([]Item, len(names))
	for i, name := range names {
		items[i] = Item{Path: filepath.Join(absDir, name), Index: i}
	}

	metrics.CollectionItemsIndexed.Observe(float64(len(items)))
	logging.Debug("Indexed %d images in %s (%v)", len(items), absDir, time.Since(start))

	return items, nil
}

// Find returns the position of path in items, or -1.
func Find(items []Item, path string) int {
	if path == "" {
		return -1
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	for _, it := range items {
		if it.Path == path {
			return it.Index
		}
	}
	return -1
}

// FindByName returns the position of the item whose file name equals the
// base name of name, or -1.
func FindByName(items []Item, name string) int {
	base := filepath.Base(name)
	for _, it := range items {
		if it.Name() == base {
			return it.Index
		}
	}
	return -1
}
