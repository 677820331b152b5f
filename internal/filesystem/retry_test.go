package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	ops      []string
	attempts int
	success  int
	failures int
	stale    int
}

func (r *recordingObserver) ObserveOperation(kind, operation string, _ float64, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, kind+"/"+operation)
}

func (r *recordingObserver) ObserveRetryAttempt(string, string) { r.attempts++ }
func (r *recordingObserver) ObserveRetrySuccess(string, string) { r.success++ }
func (r *recordingObserver) ObserveRetryFailure(string, string) { r.failures++ }
func (r *recordingObserver) ObserveStaleError(string, string)   { r.stale++ }

func installObserver(t *testing.T) *recordingObserver {
	t.Helper()
	obs := &recordingObserver{}
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })
	return obs
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	prev := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = prev })
	return &slept
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]string{
		"/data/images/a.png":         "image",
		"/data/labels/a.txt":         "labels",
		"/data/detections/a.det.txt": "detections",
		"/data/notes.md":             "other",
	}
	for path, want := range tests {
		if got := kindOf(path); got != want {
			t.Errorf("kindOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := installObserver(t)
	slept := noSleep(t)

	calls := 0
	got, err := withRetry("read", "/data/images/a.png", DefaultRetryConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if len(*slept) != 2 || (*slept)[0] != 50*time.Millisecond || (*slept)[1] != 100*time.Millisecond {
		t.Errorf("backoff sequence = %v, want [50ms 100ms]", *slept)
	}
	if obs.success != 1 || obs.stale != 2 || obs.attempts != 2 {
		t.Errorf("observer success=%d stale=%d attempts=%d, want 1/2/2", obs.success, obs.stale, obs.attempts)
	}
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	obs := installObserver(t)
	slept := noSleep(t)

	config := RetryConfig{MaxRetries: 4, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 250 * time.Millisecond}
	calls := 0
	_, err := withRetry("stat", "/data/labels/a.txt", config, func() (struct{}, error) {
		calls++
		return struct{}{}, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 5 {
		t.Errorf("fn called %d times, want 5", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond, 250 * time.Millisecond}
	if len(*slept) != len(want) {
		t.Fatalf("slept %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, (*slept)[i], want[i])
		}
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}

func TestWithRetry_NonStaleErrorFailsFast(t *testing.T) {
	installObserver(t)
	slept := noSleep(t)

	calls := 0
	_, err := withRetry("read", "/x.png", DefaultRetryConfig(), func() (int, error) {
		calls++
		return 0, os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("error = %v, want ErrPermission", err)
	}
	if calls != 1 || len(*slept) != 0 {
		t.Errorf("calls=%d sleeps=%d, want 1/0", calls, len(*slept))
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 1 {
		t.Errorf("Size() = %d, want 1", info.Size())
	}

	_, err = StatWithRetry(filepath.Join(dir, "missing.png"), DefaultRetryConfig())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("StatWithRetry(missing) error = %v, want ErrNotExist", err)
	}
}

func TestReadFileWithRetry(t *testing.T) {
	obs := installObserver(t)

	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("0 0.5 0.5 0.1 0.1"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := ReadFileWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("ReadFileWithRetry() error = %v", err)
	}
	if string(data) != "0 0.5 0.5 0.1 0.1" {
		t.Errorf("data = %q", data)
	}
	if len(obs.ops) != 1 || obs.ops[0] != "labels/read" {
		t.Errorf("observed ops = %v, want [labels/read]", obs.ops)
	}
}

func TestModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	mtime, exists, err := ModTime(path, DefaultRetryConfig())
	if err != nil || exists || !mtime.IsZero() {
		t.Fatalf("ModTime(missing) = (%v, %v, %v), want zero/false/nil", mtime, exists, err)
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	mtime, exists, err = ModTime(path, DefaultRetryConfig())
	if err != nil || !exists {
		t.Fatalf("ModTime() = (%v, %v, %v)", mtime, exists, err)
	}
	if !mtime.Equal(stamp) {
		t.Errorf("mtime = %v, want %v", mtime, stamp)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if Exists(path) {
		t.Error("Exists() = true before creation")
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists() = false after creation")
	}
	if Exists(dir) {
		t.Error("Exists() = true for a directory")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "labels", "nested", "a.txt")

	info, err := WriteFileAtomic(path, []byte("hello"), 0o644, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size() = %d, want 5", info.Size())
	}

	got, err := os.ReadFile(path)
	if err != nil || string(got) != "hello" {
		t.Fatalf("read back = %q, %v", got, err)
	}

	// Overwrite replaces the content and leaves no temp files behind.
	if _, err := WriteFileAtomic(path, []byte("bye"), 0o644, DefaultRetryConfig()); err != nil {
		t.Fatalf("second WriteFileAtomic() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v, want [a.txt]", names)
	}
}

func TestWriteFileAtomic_ParentIsFile(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "labels")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := WriteFileAtomic(filepath.Join(blocker, "a.txt"), []byte("x"), 0o644, DefaultRetryConfig())
	if err == nil {
		t.Fatal("WriteFileAtomic() succeeded with a file as parent directory")
	}
}

func BenchmarkStatWithRetry_Success(b *testing.B) {
	path := filepath.Join(b.TempDir(), "a.png")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		b.Fatal(err)
	}
	config := DefaultRetryConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = StatWithRetry(path, config)
	}
}
