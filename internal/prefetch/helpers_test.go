package prefetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"annotator/internal/collection"
)

// makeCollection creates n image files named img000.png, img001.png, ...
func makeCollection(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, fmt.Sprintf("img%03d.png", i))
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func imagePath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("img%03d.png", i))
}

// fakeLoader builds entries without touching the disk. Indices listed in
// failOnce fail on their first load; calls records every requested index.
// When gate is set, loads block until it is closed.
type fakeLoader struct {
	mu       sync.Mutex
	calls    []int
	failOnce map[int]bool
	failed   map[int]bool
	gate     chan struct{}
	started  chan int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		failOnce: map[int]bool{},
		failed:   map[int]bool{},
		started:  make(chan int, 64),
	}
}

func (l *fakeLoader) Load(ctx context.Context, item collection.Item) (*CacheEntry, error) {
	l.mu.Lock()
	l.calls = append(l.calls, item.Index)
	gate := l.gate
	fail := l.failOnce[item.Index] && !l.failed[item.Index]
	if fail {
		l.failed[item.Index] = true
	}
	l.mu.Unlock()

	select {
	case l.started <- item.Index:
	default:
	}
	if gate != nil {
		<-gate
	}
	if fail {
		return nil, fmt.Errorf("%w: injected", ErrReadFailure)
	}
	return &CacheEntry{
		Path:     item.Path,
		Index:    item.Index,
		MimeType: "image/png",
		Payload:  "data:image/png;base64,eA==",
		LoadedAt: time.Now(),
	}, nil
}

func (l *fakeLoader) block() chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gate = make(chan struct{})
	return l.gate
}

func (l *fakeLoader) unblock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gate = nil
}

func (l *fakeLoader) callsFor(i int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == i {
			n++
		}
	}
	return n
}

func (l *fakeLoader) allCalls() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

func (l *fakeLoader) resetCalls() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func waitStarted(t *testing.T, l *fakeLoader, want int) {
	t.Helper()
	select {
	case got := <-l.started:
		if got != want {
			t.Fatalf("first blocked load was index %d, want %d", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("load of index %d never started", want)
	}
}

func drainStarted(l *fakeLoader) {
	for {
		select {
		case <-l.started:
		default:
			return
		}
	}
}

func newSession(t *testing.T, dir, start string, w Window, opts ...Option) *Session {
	t.Helper()
	s, err := New(context.Background(), dir, start, w, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func rangeInts(lo, hi int) []int {
	var out []int
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

func assertCached(t *testing.T, s *Session, want []int) {
	t.Helper()
	if got := s.CachedIndices(); !slices.Equal(got, want) {
		t.Errorf("cached = %v, want %v", got, want)
	}
}
