package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"annotator/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	MediaRoot string `json:"mediaRoot"`
	Error     string `json:"error,omitempty"`

	Sessions      int   `json:"sessions"`
	CachedEntries int   `json:"cachedEntries"`
	CachedBytes   int64 `json:"cachedBytes"`
	PendingSaves  int   `json:"pendingSaves"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// mediaRootError reports why the media root cannot serve sessions.
func (h *Handlers) mediaRootError() string {
	info, err := os.Stat(h.config.MediaRoot)
	if err != nil {
		return err.Error()
	}
	if !info.IsDir() {
		return h.config.MediaRoot + " is not a directory"
	}
	return ""
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.GetStats()
	response := HealthResponse{
		Status:        statusHealthy,
		Ready:         true,
		Version:       startup.Version,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		MediaRoot:     h.config.MediaRoot,
		Sessions:      stats.ActiveSessions,
		CachedEntries: stats.CachedEntries,
		CachedBytes:   stats.CachedBytes,
		PendingSaves:  stats.PendingSaves,
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	status := http.StatusOK
	if msg := h.mediaRootError(); msg != "" {
		response.Status = statusDegraded
		response.Ready = false
		response.Error = msg
		status = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 while the media root is readable.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.mediaRootError() != "" {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
}
