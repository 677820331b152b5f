package handlers

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"annotator/internal/logging"
	"annotator/internal/metrics"
	"annotator/internal/prefetch"
	"annotator/internal/startup"
)

// sessionHandle pairs a session with its save queue.
type sessionHandle struct {
	session  *prefetch.Session
	saves    *SaveBatcher
	created  time.Time
	lastUsed atomic.Int64
}

func (s *sessionHandle) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *sessionHandle) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// close flushes queued saves and releases the session.
func (s *sessionHandle) close(ctx context.Context) {
	s.saves.Close(ctx)
	s.session.Close()
}

// Handlers owns the open annotation sessions and serves them over HTTP.
type Handlers struct {
	config    *startup.Config
	startTime time.Time
	pressure  prefetch.Pressure

	mu       sync.RWMutex
	sessions map[string]*sessionHandle
	closed   bool
}

// New creates handlers serving collections below config.MediaRoot.
func New(config *startup.Config) *Handlers {
	return &Handlers{
		config:    config,
		startTime: time.Now(),
		sessions:  make(map[string]*sessionHandle),
	}
}

// SetPressure makes sessions opened afterwards throttle read-ahead while p
// reports memory pressure.
func (h *Handlers) SetPressure(p prefetch.Pressure) {
	h.pressure = p
}

func (h *Handlers) register(handle *sessionHandle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[handle.session.ID()] = handle
	return true
}

func (h *Handlers) lookup(id string) (*sessionHandle, bool) {
	h.mu.RLock()
	handle, ok := h.sessions[id]
	h.mu.RUnlock()
	if ok {
		handle.touch()
	}
	return handle, ok
}

func (h *Handlers) remove(id string) (*sessionHandle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	handle, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	return handle, ok
}

// sessionIDs returns the registered IDs in creation order.
func (h *Handlers) sessionIDs() []string {
	h.mu.RLock()
	handles := make([]*sessionHandle, 0, len(h.sessions))
	for _, handle := range h.sessions {
		handles = append(handles, handle)
	}
	h.mu.RUnlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i].created.Before(handles[j].created) })
	ids := make([]string, len(handles))
	for i, handle := range handles {
		ids[i] = handle.session.ID()
	}
	return ids
}

// GetStats implements metrics.StatsProvider.
func (h *Handlers) GetStats() metrics.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := metrics.Stats{ActiveSessions: len(h.sessions)}
	for _, handle := range h.sessions {
		st := handle.session.Status()
		stats.CachedEntries += st.CachedCount
		stats.CachedBytes += st.CachedBytes
		stats.PendingSaves += handle.saves.Pending()
	}
	return stats
}

// CloseIdle closes sessions unused for longer than maxIdle and returns how
// many were closed.
func (h *Handlers) CloseIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	h.mu.Lock()
	var idle []*sessionHandle
	for id, handle := range h.sessions {
		if handle.idleSince().Before(cutoff) {
			idle = append(idle, handle)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, handle := range idle {
		logging.Info("Closing idle session %s (last used %v ago)", handle.session.ID(), time.Since(handle.idleSince()).Round(time.Second))
		handle.close(context.Background())
	}
	return len(idle)
}

// Shutdown flushes pending saves and closes every session. New sessions are
// refused afterwards.
func (h *Handlers) Shutdown(ctx context.Context) {
	h.mu.Lock()
	h.closed = true
	handles := make([]*sessionHandle, 0, len(h.sessions))
	for id, handle := range h.sessions {
		handles = append(handles, handle)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, handle := range handles {
		handle.close(ctx)
	}
}
