package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"annotator/internal/filesystem"
	"annotator/internal/handlers"
	"annotator/internal/logging"
	"annotator/internal/memory"
	"annotator/internal/metrics"
	"annotator/internal/middleware"
	"annotator/internal/startup"

	"github.com/gorilla/mux"
)

// statsInterval is how often cache gauges are refreshed.
const statsInterval = 15 * time.Second

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.ConfigureFromEnv()
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	h := handlers.New(config)
	h.SetPressure(monitor)

	collector := metrics.NewCollector(h, statsInterval)
	collector.Start()

	// Close sessions nobody has touched for SESSION_IDLE_TIMEOUT.
	stopReaper := make(chan struct{})
	if config.SessionIdleTimeout > 0 {
		go func() {
			ticker := time.NewTicker(reapInterval(config.SessionIdleTimeout))
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := h.CloseIdle(config.SessionIdleTimeout); n > 0 {
						logging.Info("Closed %d idle sessions", n)
					}
				case <-stopReaper:
					return
				}
			}
		}()
	}

	router := setupRouter(h)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogImageRequests = config.LogImageRequests
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(
		middleware.Logger(loggingConfig)(router),
	)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", h.MetricsHandler()).Methods("GET")
		metricsRouter.HandleFunc("/health", h.HealthCheck).Methods("GET")
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsRouter,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, h, collector, monitor, stopReaper)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// reapInterval checks for idle sessions a few times per timeout, capped at a minute.
func reapInterval(timeout time.Duration) time.Duration {
	interval := timeout / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/sessions", h.CreateSession).Methods("POST")

	s := api.PathPrefix("/sessions/{id}").Subrouter()
	s.HandleFunc("", h.GetSession).Methods("GET")
	s.HandleFunc("", h.DeleteSession).Methods("DELETE")

	// Navigation
	s.HandleFunc("/next", h.Next).Methods("POST")
	s.HandleFunc("/previous", h.Previous).Methods("POST")
	s.HandleFunc("/goto/{index:[0-9]+}", h.Goto).Methods("POST")
	s.HandleFunc("/current", h.Current).Methods("GET")

	// Labels
	s.HandleFunc("/labels", h.GetLabels).Methods("GET")
	s.HandleFunc("/labels", h.SaveLabels).Methods("PUT")
	s.HandleFunc("/save", h.FlushSaves).Methods("POST")
	s.HandleFunc("/detections", h.GetDetections).Methods("GET")
	s.HandleFunc("/classes", h.ClassNames).Methods("GET")

	// Cache
	s.HandleFunc("/delta", h.Delta).Methods("POST")
	s.HandleFunc("/status", h.Status).Methods("GET")
	s.HandleFunc("/window", h.SetWindow).Methods("PUT")
	s.HandleFunc("/rescan", h.Rescan).Methods("POST")

	// Items
	s.HandleFunc("/items/{index:[0-9]+}/labels", h.GetLabels).Methods("GET")
	s.HandleFunc("/items/{index:[0-9]+}/file", h.GetItemFile).Methods("GET")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, h *handlers.Handlers, collector *metrics.Collector, monitor *memory.Monitor, stopReaper chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Flushing label saves and closing sessions")
	close(stopReaper)
	h.Shutdown(ctx)
	startup.LogShutdownStepComplete("Sessions closed")

	startup.LogShutdownStep("Stopping metrics collector and memory monitor")
	collector.Stop()
	monitor.Stop()
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}
	startup.LogShutdownStepComplete("Metrics stopped")

	startup.LogShutdownComplete()
}
