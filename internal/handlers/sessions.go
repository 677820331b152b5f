package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"annotator/internal/logging"
	"annotator/internal/mediatypes"
	"annotator/internal/prefetch"
	"annotator/internal/sidecar"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// CreateSessionRequest opens a collection. Dir is relative to the media
// root; Start names the first item (file name or path relative to Dir).
type CreateSessionRequest struct {
	Dir    string           `json:"dir"`
	Start  string           `json:"start,omitempty"`
	Window *prefetch.Window `json:"window,omitempty"`
}

// SessionResponse describes a session and the item under its cursor.
type SessionResponse struct {
	ID      string          `json:"id"`
	Dir     string          `json:"dir"`
	Status  prefetch.Status `json:"status"`
	Current prefetch.Ref    `json:"current"`
}

// StatusResponse is the session status plus the saves whose latest write
// failed.
type StatusResponse struct {
	prefetch.Status
	FailedSaves []SaveResult `json:"failedSaves"`
}

// SaveLabelsRequest queues labels for one item. Force writes the queue
// immediately instead of waiting for the batch delay.
type SaveLabelsRequest struct {
	Item   string          `json:"item"`
	Labels []sidecar.Label `json:"labels"`
	Force  bool            `json:"force,omitempty"`
}

// DeltaRequest lists the indices the consumer already holds.
type DeltaRequest struct {
	Known []int `json:"known"`
}

func (h *Handlers) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*sessionHandle, bool) {
	id := mux.Vars(r)["id"]
	handle, ok := h.lookup(id)
	if !ok {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return handle, true
}

// CreateSession indexes a directory and returns the new session.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	dir, err := resolveUnder(h.config.MediaRoot, req.Dir)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var start string
	if req.Start != "" {
		if start, err = resolveUnder(dir, req.Start); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	window := h.config.Window
	if req.Window != nil {
		if err := checkWindow(*req.Window); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		window = *req.Window
	}

	id := uuid.NewString()
	opts := []prefetch.Option{
		prefetch.WithID(id),
		prefetch.WithPolicy(h.config.PassPolicy),
		prefetch.WithWatch(h.config.WatchCollection),
	}
	if h.pressure != nil {
		opts = append(opts, prefetch.WithPressure(h.pressure))
	}
	session, err := prefetch.New(r.Context(), dir, start, window, opts...)
	if err != nil {
		writeError(w, err)
		return
	}

	handle := &sessionHandle{
		session: session,
		saves:   NewSaveBatcher(session.SaveLabels, h.config.SaveBatchDelay, logging.Session(id)),
		created: time.Now(),
	}
	handle.touch()
	if !h.register(handle) {
		session.Close()
		writeJSONError(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	writeJSONStatus(w, http.StatusCreated, h.describe(handle))
}

func (h *Handlers) describe(handle *sessionHandle) SessionResponse {
	root, err := filepath.Abs(h.config.MediaRoot)
	rel := handle.session.Dir()
	if err == nil {
		rel, err = filepath.Rel(root, handle.session.Dir())
	}
	if err != nil {
		rel = handle.session.Dir()
	}
	return SessionResponse{
		ID:      handle.session.ID(),
		Dir:     filepath.ToSlash(rel),
		Status:  handle.session.Status(),
		Current: handle.session.Current(),
	}
}

// ListSessions returns the open sessions without their entries.
func (h *Handlers) ListSessions(w http.ResponseWriter, _ *http.Request) {
	type summary struct {
		ID     string          `json:"id"`
		Dir    string          `json:"dir"`
		Status prefetch.Status `json:"status"`
	}
	out := []summary{}
	for _, id := range h.sessionIDs() {
		h.mu.RLock()
		handle, ok := h.sessions[id]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		d := h.describe(handle)
		out = append(out, summary{ID: d.ID, Dir: d.Dir, Status: d.Status})
	}
	writeJSONStatus(w, http.StatusOK, out)
}

// GetSession returns a session's status and current item.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	writeJSONStatus(w, http.StatusOK, h.describe(handle))
}

// DeleteSession flushes queued saves and closes the session.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.remove(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "session not found", http.StatusNotFound)
		return
	}
	results := handle.saves.Close(r.Context())
	handle.session.Close()
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"status": "closed",
		"saves":  nonNil(results),
	})
}

// Next moves the cursor forward.
func (h *Handlers) Next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*prefetch.Session).Next)
}

// Previous moves the cursor back.
func (h *Handlers) Previous(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*prefetch.Session).Previous)
}

// Goto moves the cursor to {index}. Out-of-range indices leave it in place.
func (h *Handlers) Goto(w http.ResponseWriter, r *http.Request) {
	i, err := pathIndex(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.navigate(w, r, func(s *prefetch.Session) prefetch.Ref { return s.Goto(i) })
}

// Current returns the item under the cursor.
func (h *Handlers) Current(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*prefetch.Session).Current)
}

func (h *Handlers) navigate(w http.ResponseWriter, r *http.Request, move func(*prefetch.Session) prefetch.Ref) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	writeJSONStatus(w, http.StatusOK, move(handle.session))
}

// GetLabels returns the current item's labels, or item {index}'s when the
// route carries one.
func (h *Handlers) GetLabels(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var (
		labels []sidecar.Label
		err    error
	)
	if _, indexed := mux.Vars(r)["index"]; indexed {
		var i int
		if i, err = pathIndex(r); err == nil {
			labels, err = handle.session.Labels(i)
		}
	} else {
		labels, err = handle.session.CurrentLabels()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, labels)
}

// SaveLabels queues a save, or writes the whole queue when Force is set.
func (h *Handlers) SaveLabels(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req SaveLabelsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Item == "" {
		writeJSONError(w, "item is required", http.StatusBadRequest)
		return
	}
	for _, l := range req.Labels {
		if err := l.Validate(); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := handle.saves.Queue(req.Item, req.Labels); err != nil {
		writeError(w, err)
		return
	}
	if !req.Force {
		writeJSONStatus(w, http.StatusAccepted, map[string]interface{}{
			"status":  "queued",
			"pending": handle.saves.Pending(),
			"failed":  handle.saves.Failures(),
		})
		return
	}

	results := handle.saves.Flush(r.Context(), "force")
	for _, res := range results {
		if res.Err() != nil {
			writeJSONStatus(w, errorStatus(res.Err()), map[string]interface{}{
				"error": res.Error,
				"saves": results,
			})
			return
		}
	}
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"status": "saved",
		"saves":  nonNil(results),
	})
}

// FlushSaves writes every queued save now.
func (h *Handlers) FlushSaves(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"saves": nonNil(handle.saves.Flush(r.Context(), "force")),
	})
}

// GetDetections returns the current item's detections.
func (h *Handlers) GetDetections(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	detections, err := handle.session.CurrentDetections()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, detections)
}

// Delta returns the cached entries the consumer does not hold yet.
func (h *Handlers) Delta(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req DeltaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSONStatus(w, http.StatusOK, handle.session.DeltaSince(req.Known))
}

// Status returns cache occupancy.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	writeJSONStatus(w, http.StatusOK, StatusResponse{
		Status:      handle.session.Status(),
		FailedSaves: handle.saves.Failures(),
	})
}

// SetWindow replaces the session's window.
func (h *Handlers) SetWindow(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var window prefetch.Window
	if err := decodeJSON(w, r, &window); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := checkWindow(window); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	handle.session.SetWindow(window)
	writeJSONStatus(w, http.StatusOK, handle.session.Window())
}

func checkWindow(w prefetch.Window) error {
	if w.PrevRadius < 0 || w.NextRadius < 0 || w.KeepBuffer < 0 {
		return errors.New("window values must be non-negative")
	}
	return nil
}

// Rescan re-indexes the session's directory.
func (h *Handlers) Rescan(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	if err := handle.session.Rescan(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, h.describe(handle))
}

// ClassNames returns the dataset's class list.
func (h *Handlers) ClassNames(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	names, err := handle.session.ClassNames()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, names)
}

// GetItemFile serves the raw image for item {index}, letting consumers
// resolve deferred references without going through the cache.
func (h *Handlers) GetItemFile(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	i, err := pathIndex(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	item, err := handle.session.Item(i)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", mediatypes.GetMimeType(item.Path))
	w.Header().Set("Cache-Control", "private, max-age=60")
	http.ServeFile(w, r, item.Path)
}

func nonNil(results []SaveResult) []SaveResult {
	if results == nil {
		return []SaveResult{}
	}
	return results
}
