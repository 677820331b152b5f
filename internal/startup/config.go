package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"annotator/internal/logging"
	"annotator/internal/prefetch"
)

// Config holds all application configuration
type Config struct {
	MediaRoot      string
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	Window             prefetch.Window
	PassPolicy         prefetch.PassPolicy
	SaveBatchDelay     time.Duration
	WatchCollection    bool
	SessionIdleTimeout time.Duration

	LogImageRequests bool
	LogHealthChecks  bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	mediaRoot := getEnv("MEDIA_ROOT", "/data")
	policyStr := getEnv("PREFETCH_POLICY", "coalesce")

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		Window: prefetch.Window{
			PrevRadius: getEnvInt("PREFETCH_PREV", prefetch.DefaultWindow.PrevRadius),
			NextRadius: getEnvInt("PREFETCH_NEXT", prefetch.DefaultWindow.NextRadius),
			KeepBuffer: getEnvInt("PREFETCH_KEEP", prefetch.DefaultWindow.KeepBuffer),
		},
		SaveBatchDelay:     getEnvDuration("SAVE_BATCH_DELAY", 2*time.Second),
		WatchCollection:    getEnvBool("WATCH_COLLECTION", true),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		LogImageRequests:   getEnvBool("LOG_IMAGE_REQUESTS", false),
		LogHealthChecks:    getEnvBool("LOG_HEALTH_CHECKS", true),
	}

	policy, err := prefetch.ParsePassPolicy(policyStr)
	if err != nil {
		logging.Warn("  Invalid PREFETCH_POLICY %q, using default: coalesce", policyStr)
	}
	config.PassPolicy = policy

	logging.Info("  MEDIA_ROOT:           %s", mediaRoot)
	logging.Info("  PORT:                 %s", config.Port)
	logging.Info("  METRICS_PORT:         %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:      %v", config.MetricsEnabled)
	logging.Info("  PREFETCH_PREV:        %d", config.Window.PrevRadius)
	logging.Info("  PREFETCH_NEXT:        %d", config.Window.NextRadius)
	logging.Info("  PREFETCH_KEEP:        %d", config.Window.KeepBuffer)
	logging.Info("  PREFETCH_POLICY:      %s", config.PassPolicy)
	logging.Info("  SAVE_BATCH_DELAY:     %v", config.SaveBatchDelay)
	logging.Info("  WATCH_COLLECTION:     %v", config.WatchCollection)
	logging.Info("  SESSION_IDLE_TIMEOUT: %v", config.SessionIdleTimeout)
	logging.Info("  LOG_IMAGE_REQUESTS:   %v", config.LogImageRequests)
	logging.Info("  LOG_HEALTH_CHECKS:    %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	mediaRoot, err = filepath.Abs(mediaRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media root path: %w", err)
	}
	if err := checkDirectory(mediaRoot); err != nil {
		return nil, fmt.Errorf("media root: %w", err)
	}
	config.MediaRoot = mediaRoot
	logging.Info("  [OK] Media root (absolute): %s", mediaRoot)

	logging.Info("")
	logging.Info("  Cache capacity per session: %d entries", config.Window.Capacity())

	return config, nil
}

// checkDirectory verifies path is an existing directory. Datasets are
// mounted, never created.
func checkDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	if logging.IsDebugEnabled() {
		if entries, err := os.ReadDir(path); err == nil {
			logging.Debug("    Contents: %d entries (top level)", len(entries))
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvInt parses a non-negative integer.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid non-negative integer for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
