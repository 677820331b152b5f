package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"annotator/internal/prefetch"
	"annotator/internal/sidecar"
	"annotator/internal/startup"

	"github.com/gorilla/mux"
)

// newTestHandlers builds a media root holding set/images/img000.png ..
// img009.png and returns the handlers serving it.
func newTestHandlers(t *testing.T) (*Handlers, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "set", "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("img%03d.png", i)), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := New(&startup.Config{
		MediaRoot:      root,
		Window:         prefetch.Window{PrevRadius: 1, NextRadius: 2, KeepBuffer: 1},
		PassPolicy:     prefetch.PassPolicyCoalesce,
		SaveBatchDelay: time.Hour,
	})
	t.Cleanup(func() { h.Shutdown(context.Background()) })
	return h, root
}

// call invokes a handler with route variables set the way mux would.
func call(t *testing.T, fn http.HandlerFunc, method string, vars map[string]string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, "/", &buf)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func createSession(t *testing.T, h *Handlers, start string) SessionResponse {
	t.Helper()
	w := call(t, h.CreateSession, http.MethodPost, nil, CreateSessionRequest{Dir: "set/images", Start: start})
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	return decode[SessionResponse](t, w)
}

func TestCreateSession(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)

	resp := createSession(t, h, "img002.png")
	if resp.ID == "" {
		t.Fatal("expected a session id")
	}
	if resp.Dir != "set/images" {
		t.Errorf("Dir = %q, want set/images", resp.Dir)
	}
	if resp.Current.Index != 2 || resp.Current.Entry == nil {
		t.Errorf("current = %+v, want cached index 2", resp.Current)
	}
	if resp.Status.TotalCount != 10 {
		t.Errorf("TotalCount = %d, want 10", resp.Status.TotalCount)
	}
	// cursor 2 with prev 1, next 2 loads 1..4
	if resp.Status.CachedCount != 4 {
		t.Errorf("CachedCount = %d, want 4", resp.Status.CachedCount)
	}
	if resp.Current.Entry.Payload != "data:image/png;base64,eA==" {
		t.Errorf("payload = %q", resp.Current.Entry.Payload)
	}
}

func TestCreateSessionWindowOverride(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)

	w := call(t, h.CreateSession, http.MethodPost, nil, CreateSessionRequest{
		Dir:    "set/images",
		Window: &prefetch.Window{PrevRadius: 0, NextRadius: 0, KeepBuffer: 0},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decode[SessionResponse](t, w)
	if resp.Status.CachedCount != 1 || resp.Current.Index != 0 {
		t.Errorf("status = %+v, want only index 0 cached", resp.Status)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	t.Parallel()
	h, root := newTestHandlers(t)
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"bad json", "{not json", http.StatusBadRequest},
		{"unknown field", `{"folder":"set"}`, http.StatusBadRequest},
		{"escapes root", CreateSessionRequest{Dir: "../elsewhere"}, http.StatusBadRequest},
		{"start escapes dir", CreateSessionRequest{Dir: "set/images", Start: "../../x.png"}, http.StatusBadRequest},
		{"missing dir", CreateSessionRequest{Dir: "nope"}, http.StatusNotFound},
		{"empty collection", CreateSessionRequest{Dir: "empty"}, http.StatusUnprocessableEntity},
		{"negative window", CreateSessionRequest{Dir: "set/images", Window: &prefetch.Window{NextRadius: -2}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(t, h.CreateSession, http.MethodPost, nil, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
	if n := len(h.sessionIDs()); n != 0 {
		t.Errorf("%d sessions registered after failures", n)
	}
}

func TestUnknownSession(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)

	vars := map[string]string{"id": "missing"}
	for name, fn := range map[string]http.HandlerFunc{
		"next":    h.Next,
		"status":  h.Status,
		"labels":  h.GetLabels,
		"delete":  h.DeleteSession,
		"classes": h.ClassNames,
	} {
		if w := call(t, fn, http.MethodGet, vars, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", name, w.Code)
		}
	}
}

func TestNavigation(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	id := createSession(t, h, "img002.png").ID

	steps := []struct {
		name string
		fn   http.HandlerFunc
		vars map[string]string
		want int
	}{
		{"next", h.Next, nil, 3},
		{"previous", h.Previous, nil, 2},
		{"goto last", h.Goto, map[string]string{"index": "9"}, 9},
		{"next at end", h.Next, nil, 9},
		{"goto out of range", h.Goto, map[string]string{"index": "50"}, 9},
		{"goto first", h.Goto, map[string]string{"index": "0"}, 0},
		{"previous at start", h.Previous, nil, 0},
		{"current", h.Current, nil, 0},
	}
	for _, st := range steps {
		vars := map[string]string{"id": id}
		for k, v := range st.vars {
			vars[k] = v
		}
		w := call(t, st.fn, http.MethodPost, vars, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", st.name, w.Code)
		}
		ref := decode[prefetch.Ref](t, w)
		if ref.Index != st.want {
			t.Errorf("%s: index = %d, want %d", st.name, ref.Index, st.want)
		}
	}

	w := call(t, h.Goto, http.MethodPost, map[string]string{"id": id, "index": "abc"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("goto abc: status = %d, want 400", w.Code)
	}
}

func TestSaveLabelsQueuedThenForced(t *testing.T) {
	t.Parallel()
	h, root := newTestHandlers(t)
	id := createSession(t, h, "")
	vars := map[string]string{"id": id.ID}
	labelsDir := filepath.Join(root, "set", "labels")

	w := call(t, h.SaveLabels, http.MethodPut, vars, SaveLabelsRequest{
		Item:   "img001.png",
		Labels: []sidecar.Label{{ClassID: 0, CX: 0.5, CY: 0.5, W: 0.2, H: 0.3}},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("queued save: status = %d: %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(labelsDir, "img001.txt")); !os.IsNotExist(err) {
		t.Fatalf("queued save written early: %v", err)
	}

	w = call(t, h.SaveLabels, http.MethodPut, vars, SaveLabelsRequest{
		Item:   "img002.png",
		Labels: []sidecar.Label{{ClassID: 3, CX: 0.1, CY: 0.2, W: 0.1, H: 0.1}},
		Force:  true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("forced save: status = %d: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Saves []SaveResult `json:"saves"`
	}](t, w)
	if len(resp.Saves) != 2 || resp.Saves[0].Item != "img001.png" || resp.Saves[1].Item != "img002.png" {
		t.Fatalf("saves = %+v", resp.Saves)
	}
	if resp.Saves[0].Entry == nil || len(resp.Saves[0].Entry.Labels) != 1 {
		t.Errorf("cached entry for img001 not patched: %+v", resp.Saves[0].Entry)
	}

	data, err := os.ReadFile(filepath.Join(labelsDir, "img001.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "0 0.500000 0.500000 0.200000 0.300000" {
		t.Errorf("sidecar = %q", data)
	}

	w = call(t, h.GetLabels, http.MethodGet, map[string]string{"id": id.ID, "index": "2"}, nil)
	labels := decode[[]sidecar.Label](t, w)
	if len(labels) != 1 || labels[0].ClassID != 3 {
		t.Errorf("labels for index 2 = %+v", labels)
	}
}

func TestSaveLabelsErrors(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	vars := map[string]string{"id": createSession(t, h, "").ID}

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"bad json", "[", http.StatusBadRequest},
		{"missing item", SaveLabelsRequest{}, http.StatusBadRequest},
		{"invalid label", SaveLabelsRequest{Item: "img000.png", Labels: []sidecar.Label{{ClassID: 0, CX: 1.5, CY: 0.5, W: 0.1, H: 0.1}}}, http.StatusBadRequest},
		{"unknown item forced", SaveLabelsRequest{Item: "nope.png", Force: true}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(t, h.SaveLabels, http.MethodPut, vars, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestTimerSaveFailureReported(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	h.config.SaveBatchDelay = 10 * time.Millisecond
	vars := map[string]string{"id": createSession(t, h, "").ID}

	w := call(t, h.SaveLabels, http.MethodPut, vars, SaveLabelsRequest{Item: "nope.png"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("queued save: status = %d: %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(5 * time.Second)
	var status StatusResponse
	for time.Now().Before(deadline) {
		status = decode[StatusResponse](t, call(t, h.Status, http.MethodGet, vars, nil))
		if len(status.FailedSaves) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(status.FailedSaves) != 1 || status.FailedSaves[0].Item != "nope.png" || status.FailedSaves[0].Error == "" {
		t.Fatalf("failedSaves = %+v, want nope.png", status.FailedSaves)
	}
	if status.TotalCount != 10 {
		t.Errorf("TotalCount = %d, want 10", status.TotalCount)
	}

	w = call(t, h.SaveLabels, http.MethodPut, vars, SaveLabelsRequest{Item: "img000.png"})
	resp := decode[struct {
		Failed []SaveResult `json:"failed"`
	}](t, w)
	if len(resp.Failed) != 1 || resp.Failed[0].Item != "nope.png" {
		t.Errorf("failed on next save = %+v", resp.Failed)
	}
}

func TestFlushSavesAndDeleteSession(t *testing.T) {
	t.Parallel()
	h, root := newTestHandlers(t)
	id := createSession(t, h, "").ID
	vars := map[string]string{"id": id}

	call(t, h.SaveLabels, http.MethodPut, vars, SaveLabelsRequest{Item: "img004.png"})
	w := call(t, h.FlushSaves, http.MethodPost, vars, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("flush: status = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(root, "set", "labels", "img004.txt")); err != nil {
		t.Errorf("flushed save missing: %v", err)
	}

	call(t, h.SaveLabels, http.MethodPut, vars, SaveLabelsRequest{Item: "img005.png"})
	if w := call(t, h.DeleteSession, http.MethodDelete, vars, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(root, "set", "labels", "img005.txt")); err != nil {
		t.Errorf("save queued before delete was dropped: %v", err)
	}
	if w := call(t, h.DeleteSession, http.MethodDelete, vars, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", w.Code)
	}
}

func TestDelta(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	id := createSession(t, h, "img002.png").ID
	vars := map[string]string{"id": id}

	w := call(t, h.Delta, http.MethodPost, vars, DeltaRequest{Known: []int{2, 3}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	delta := decode[prefetch.Delta](t, w)
	var got []int
	for _, e := range delta.Entries {
		got = append(got, e.Index)
	}
	if fmt.Sprint(got) != "[1 4]" {
		t.Errorf("delta indices = %v, want [1 4]", got)
	}
	want := prefetch.End{Cursor: 2, Total: 10, RetainBefore: 2, RetainAfter: 3}
	if delta.End != want {
		t.Errorf("End = %+v, want %+v", delta.End, want)
	}

	// an empty body means the consumer holds nothing
	w = call(t, h.Delta, http.MethodPost, vars, nil)
	if n := len(decode[prefetch.Delta](t, w).Entries); n != 4 {
		t.Errorf("full delta has %d entries, want 4", n)
	}
}

func TestSetWindowAndStatus(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	id := createSession(t, h, "").ID
	vars := map[string]string{"id": id}

	if w := call(t, h.SetWindow, http.MethodPut, vars, prefetch.Window{PrevRadius: -1}); w.Code != http.StatusBadRequest {
		t.Errorf("negative window: status = %d, want 400", w.Code)
	}

	w := call(t, h.SetWindow, http.MethodPut, vars, prefetch.Window{PrevRadius: 0, NextRadius: 5, KeepBuffer: 0})
	if w.Code != http.StatusOK {
		t.Fatalf("set window: status = %d", w.Code)
	}
	if got := decode[prefetch.Window](t, w); got.NextRadius != 5 {
		t.Errorf("window = %+v", got)
	}

	handle, _ := h.lookup(id)
	handle.session.Wait()

	status := decode[prefetch.Status](t, call(t, h.Status, http.MethodGet, vars, nil))
	if status.CachedCount != 6 || !status.CurrentIndexIsCached {
		t.Errorf("status = %+v, want 6 cached", status)
	}
}

func TestRescanAndClasses(t *testing.T) {
	t.Parallel()
	h, root := newTestHandlers(t)
	id := createSession(t, h, "img003.png").ID
	vars := map[string]string{"id": id}

	if err := os.WriteFile(filepath.Join(root, "set", "images", "img010.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := call(t, h.Rescan, http.MethodPost, vars, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rescan: status = %d", w.Code)
	}
	resp := decode[SessionResponse](t, w)
	if resp.Status.TotalCount != 11 || resp.Current.Index != 3 {
		t.Errorf("after rescan: total %d cursor %d", resp.Status.TotalCount, resp.Current.Index)
	}

	names := decode[[]string](t, call(t, h.ClassNames, http.MethodGet, vars, nil))
	if len(names) != 0 {
		t.Errorf("classes without classes.txt = %v", names)
	}
	if err := os.WriteFile(filepath.Join(root, "set", "classes.txt"), []byte("cat\n\ndog\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	names = decode[[]string](t, call(t, h.ClassNames, http.MethodGet, vars, nil))
	if fmt.Sprint(names) != "[cat dog]" {
		t.Errorf("classes = %v", names)
	}
}

func TestGetItemFileAndDetections(t *testing.T) {
	t.Parallel()
	h, root := newTestHandlers(t)
	id := createSession(t, h, "").ID

	w := call(t, h.GetItemFile, http.MethodGet, map[string]string{"id": id, "index": "7"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("file: status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != "x" {
		t.Errorf("body = %q", w.Body.String())
	}

	if w := call(t, h.GetItemFile, http.MethodGet, map[string]string{"id": id, "index": "99"}, nil); w.Code != http.StatusNotFound {
		t.Errorf("out of range file: status = %d, want 404", w.Code)
	}

	detDir := filepath.Join(root, "set", "detections")
	if err := os.MkdirAll(detDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(detDir, "img000.det.txt"), []byte("1 0.5 0.5 0.2 0.2 0.9"), 0o644); err != nil {
		t.Fatal(err)
	}
	// detections are fixed for the lifetime of the cached entry
	dets := decode[[]sidecar.Detection](t, call(t, h.GetDetections, http.MethodGet, map[string]string{"id": id}, nil))
	if len(dets) != 0 {
		t.Errorf("detections = %+v, want none cached", dets)
	}
}

func TestListSessions(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	first := createSession(t, h, "").ID
	time.Sleep(2 * time.Millisecond)
	second := createSession(t, h, "img005.png").ID

	list := decode[[]struct {
		ID string `json:"id"`
	}](t, call(t, h.ListSessions, http.MethodGet, nil, nil))
	if len(list) != 2 || list[0].ID != first || list[1].ID != second {
		t.Errorf("sessions = %+v, want [%s %s]", list, first, second)
	}

	resp := decode[SessionResponse](t, call(t, h.GetSession, http.MethodGet, map[string]string{"id": second}, nil))
	if resp.Current.Index != 5 {
		t.Errorf("GetSession cursor = %d, want 5", resp.Current.Index)
	}
}

func TestCloseIdle(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	stale := createSession(t, h, "").ID
	fresh := createSession(t, h, "").ID

	handle, _ := h.lookup(stale)
	handle.lastUsed.Store(time.Now().Add(-time.Hour).UnixNano())

	if n := h.CloseIdle(30 * time.Minute); n != 1 {
		t.Fatalf("CloseIdle closed %d sessions, want 1", n)
	}
	if _, ok := h.lookup(stale); ok {
		t.Error("idle session still registered")
	}
	if _, ok := h.lookup(fresh); !ok {
		t.Error("active session was closed")
	}
}

func TestGetStatsAndShutdown(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandlers(t)
	id := createSession(t, h, "").ID
	createSession(t, h, "img005.png")
	call(t, h.SaveLabels, http.MethodPut, map[string]string{"id": id}, SaveLabelsRequest{Item: "img000.png"})

	stats := h.GetStats()
	// cursor 0 loads 0..2, cursor 5 loads 4..7
	if stats.ActiveSessions != 2 || stats.CachedEntries != 7 || stats.PendingSaves != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.CachedBytes <= 0 {
		t.Errorf("CachedBytes = %d, want > 0", stats.CachedBytes)
	}

	h.Shutdown(context.Background())
	if got := h.GetStats().ActiveSessions; got != 0 {
		t.Errorf("ActiveSessions after shutdown = %d", got)
	}
	w := call(t, h.CreateSession, http.MethodPost, nil, CreateSessionRequest{Dir: "set/images"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("create after shutdown: status = %d, want 503", w.Code)
	}
}
