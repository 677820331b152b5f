package prefetch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"annotator/internal/collection"
	"annotator/internal/filesystem"
	"annotator/internal/logging"
	"annotator/internal/metrics"

	"github.com/google/uuid"
)

// Session holds the cache state for one user paging through one collection.
// All methods are safe for concurrent use.
type Session struct {
	id          string
	dir         string
	loader      Loader
	policy      PassPolicy
	watch       bool
	workerLimit int
	pressure    Pressure
	retry       filesystem.RetryConfig
	log         *logging.Scoped

	ctx     context.Context
	cancel  context.CancelFunc
	watcher *collection.Watcher

	// mu guards the fields below. Loads run without it.
	mu      sync.Mutex
	items   []collection.Item
	cursor  int
	window  Window
	entries []*CacheEntry // ascending by Index, one per index
	stale   bool
	classes *classCache

	// passMu guards the in-flight pass flags.
	passMu  sync.Mutex
	running bool
	pending bool
	closed  bool
	passes  sync.WaitGroup
}

// New indexes dir, places the cursor on startPath (or the first item when
// startPath is empty or not in the collection) and runs one prefetch pass
// before returning. Callers without their own settings pass DefaultWindow.
func New(ctx context.Context, dir, startPath string, window Window, opts ...Option) (*Session, error) {
	items, err := collection.Index(dir)
	if err != nil {
		return nil, err
	}

	s := &Session{
		dir:    dir,
		policy: PassPolicyCoalesce,
		retry:  filesystem.DefaultRetryConfig(),
		items:  items,
		window: window.normalize(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loader == nil {
		s.loader = &FileLoader{Retry: s.retry}
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.log = logging.Session(s.id)
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if idx := collection.Find(items, startPath); idx >= 0 {
		s.cursor = idx
	} else if startPath != "" {
		s.log.Debug("Start item %s not in collection, starting at first item", startPath)
	}

	if err := ctx.Err(); err != nil {
		s.cancel()
		return nil, err
	}

	if s.watch {
		w, err := collection.Watch(filepath.Dir(items[0].Path), s.markStale)
		if err != nil {
			s.log.Warn("Collection watcher disabled: %v", err)
		} else {
			s.watcher = w
		}
	}

	s.runPass()

	metrics.ActiveSessions.Inc()
	s.log.Info("Session opened on %s: %d items, cursor %d, window %+v, policy %s",
		dir, len(items), s.cursor, s.window, s.policy)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Dir returns the collection directory the session was created with.
func (s *Session) Dir() string { return s.dir }

// Close stops the watcher, waits for an in-flight pass and drops the cache.
// It is safe to call more than once.
func (s *Session) Close() {
	s.passMu.Lock()
	if s.closed {
		s.passMu.Unlock()
		return
	}
	s.closed = true
	s.passMu.Unlock()

	s.cancel()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.log.Warn("Closing collection watcher: %v", err)
		}
	}
	s.passes.Wait()

	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()

	metrics.ActiveSessions.Dec()
	s.log.Info("Session closed")
}

// Wait blocks until no pass is running, including a coalesced follow-up.
func (s *Session) Wait() {
	s.passes.Wait()
}

// Len returns the number of items in the collection.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Item returns the item at index i.
func (s *Session) Item(i int) (collection.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.items) {
		return collection.Item{}, fmt.Errorf("%w: index %d", ErrItemNotFound, i)
	}
	return s.items[i], nil
}

// Next moves the cursor forward by one. At the last item it does nothing.
func (s *Session) Next() Ref {
	return s.move(func(cursor, _ int) int { return cursor + 1 })
}

// Previous moves the cursor back by one. At the first item it does nothing.
func (s *Session) Previous() Ref {
	return s.move(func(cursor, _ int) int { return cursor - 1 })
}

// Goto moves the cursor to index i. An out-of-range index leaves the cursor
// where it is.
func (s *Session) Goto(i int) Ref {
	return s.move(func(cursor, n int) int {
		if i < 0 || i >= n {
			return cursor
		}
		return i
	})
}

func (s *Session) move(step func(cursor, n int) int) Ref {
	s.mu.Lock()
	target := step(s.cursor, len(s.items))
	moved := target >= 0 && target < len(s.items) && target != s.cursor
	if moved {
		s.cursor = target
	}
	ref := s.refLocked(s.cursor)
	s.mu.Unlock()

	if moved {
		s.requestPass()
	}
	return ref
}

// Current returns a reference to the item under the cursor.
func (s *Session) Current() Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refLocked(s.cursor)
}

// Cursor returns the current index.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) refLocked(i int) Ref {
	item := s.items[i]
	ref := Ref{Index: i, Path: item.Path}
	if e := s.entryLocked(i); e != nil {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		ref.Entry = e.clone()
	} else {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}
	return ref
}

// entryLocked returns the cached entry for index i, or nil.
func (s *Session) entryLocked(i int) *CacheEntry {
	pos, found := s.searchLocked(i)
	if !found {
		return nil
	}
	return s.entries[pos]
}

func (s *Session) searchLocked(i int) (int, bool) {
	return slices.BinarySearchFunc(s.entries, i, func(e *CacheEntry, target int) int {
		return e.Index - target
	})
}

// Entry returns a copy of the cached entry for index i, or nil when it is
// not cached.
func (s *Session) Entry(i int) *CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryLocked(i).clone()
}

// CachedIndices returns the cached indices in ascending order.
func (s *Session) CachedIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Index
	}
	return out
}

// Window returns the current window.
func (s *Session) Window() Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// SetWindow replaces the window and runs a pass so the cache converges to
// the new ranges. Negative values are treated as zero.
func (s *Session) SetWindow(w Window) {
	s.mu.Lock()
	s.window = w.normalize()
	s.mu.Unlock()

	s.log.Debug("Window set to %+v", w.normalize())
	s.requestPass()
}

// Status reports cache occupancy.
func (s *Session) Status() Status {
	s.passMu.Lock()
	running := s.running
	s.passMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	var bytes int64
	for _, e := range s.entries {
		bytes += int64(len(e.Payload))
	}
	return Status{
		CachedCount:          len(s.entries),
		TotalCount:           len(s.items),
		CurrentIndexIsCached: s.entryLocked(s.cursor) != nil,
		Cursor:               s.cursor,
		Window:               s.window,
		CachedBytes:          bytes,
		PassRunning:          running,
		Stale:                s.stale,
	}
}

// markStale is the watcher callback.
func (s *Session) markStale(path string) {
	s.mu.Lock()
	already := s.stale
	s.stale = true
	s.mu.Unlock()

	if !already {
		s.log.Info("Collection changed (%s); rescan to pick up the change", path)
	}
}

// Rescan re-indexes the collection. Cached entries whose files are still
// present are kept under their new index, the cursor stays on the same
// file when it still exists, and a pass is run for the new position.
func (s *Session) Rescan(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	items, err := collection.Index(s.dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	currentPath := s.items[s.cursor].Path

	byPath := make(map[string]int, len(items))
	for _, it := range items {
		byPath[it.Path] = it.Index
	}

	kept := s.entries[:0]
	for _, e := range s.entries {
		if idx, ok := byPath[e.Path]; ok {
			e.Index = idx
			kept = append(kept, e)
		}
	}
	slices.SortFunc(kept, func(a, b *CacheEntry) int { return a.Index - b.Index })
	clear(s.entries[len(kept):])
	s.entries = kept

	s.items = items
	if idx, ok := byPath[currentPath]; ok {
		s.cursor = idx
	} else {
		s.cursor = min(s.cursor, len(items)-1)
	}
	s.stale = false
	s.classes = nil
	cursor := s.cursor
	s.mu.Unlock()

	s.log.Info("Rescanned collection: %d items, cursor %d", len(items), cursor)
	s.requestPass()
	return nil
}
