package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Version is set at build time via -ldflags
// Default "dev" is used for development builds
var Version = "dev"

// Config holds all application configuration loaded from environment variables.
// All fields have sensible defaults if environment variables are not set.
type Config struct {
	// Port is the HTTP server listen port (default: 3080)
	Port string

	// LogLevel controls logging verbosity: "debug", "info", "warn", "error" (default: "info")
	LogLevel string

	// ProfileID identifies the library profile used for roots and blacklist scoping (default: "default")
	ProfileID string

	// MinScanInterval is the minimum time between two scans; triggers inside the
	// window are rejected as no-ops (default: 30s)
	MinScanInterval time.Duration

	// DebounceWindow is the quiet period after the last filesystem event before
	// a watcher-triggered rescan fires (default: 2s)
	DebounceWindow time.Duration

	// WatchEnabled controls whether filesystem watchers are started (default: true)
	WatchEnabled bool

	// AudioExtensions is the supported audio file allow-list, lowercase with dots
	AudioExtensions []string

	// EnrichmentBatchSize is the maximum number of artists fetched per
	// background enrichment pass (default: 25)
	EnrichmentBatchSize int

	// EnrichmentRateLimitRPS is the maximum requests per second to the
	// enrichment API (default: 1, MusicBrainz etiquette)
	EnrichmentRateLimitRPS float64

	// EnrichmentRateLimitBurst is the burst size for enrichment rate limiting (default: 3)
	EnrichmentRateLimitBurst int

	// EnrichmentBaseURL is the artist enrichment API endpoint
	EnrichmentBaseURL string

	// ScanSchedule is a cron expression for periodic full library scans
	// (default: "0 2 * * *", 02:00 daily). Empty disables scheduled scans.
	ScanSchedule string

	// MaintenanceSchedule is a cron expression for database maintenance and
	// backups (default: "30 3 * * 0", 03:30 Sunday). Empty disables it.
	MaintenanceSchedule string

	// RetentionDays is the number of days to keep old events and scan history (default: 90)
	// Set to 0 to disable automatic pruning
	RetentionDays int

	// DataDir is the directory for persistent data (database, logs, pid file)
	DataDir string

	// DatabasePath is the SQLite database file path (default: <DataDir>/melodarr.db)
	DatabasePath string

	// LogDir is the directory for log files (default: <DataDir>/logs)
	LogDir string
}

// DefaultAudioExtensions is the built-in audio allow-list.
var DefaultAudioExtensions = []string{".mp3", ".flac", ".wav", ".ogg", ".aac", ".m4a"}

// Global singleton
var cfg *Config

// Load reads configuration from environment variables with sensible defaults.
// Should be called once at application startup.
func Load() *Config {
	// Determine DataDir - this is where all persistent data lives.
	// Default: ./config (relative to executable or cwd); /config in Docker.
	dataDir := getEnvOrDefault("MELODARR_DATA_DIR", "")
	if dataDir == "" {
		if info, err := os.Stat("/config"); err == nil && info.IsDir() {
			dataDir = "/config"
		} else if execPath, err := os.Executable(); err == nil {
			dataDir = filepath.Join(filepath.Dir(execPath), "config")
		} else if cwd, err := os.Getwd(); err == nil {
			dataDir = filepath.Join(cwd, "config")
		} else {
			dataDir = "./config"
		}
	}
	if absDataDir, err := filepath.Abs(dataDir); err == nil {
		dataDir = absDataDir
	}
	os.MkdirAll(dataDir, 0755)

	dbPath := getEnvOrDefault("MELODARR_DATABASE_PATH", "")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "melodarr.db")
	}

	logDir := filepath.Join(dataDir, "logs")
	os.MkdirAll(logDir, 0755)

	cfg = &Config{
		Port:                     getEnvOrDefault("MELODARR_PORT", "3080"),
		LogLevel:                 strings.ToLower(getEnvOrDefault("MELODARR_LOG_LEVEL", "info")),
		ProfileID:                getEnvOrDefault("MELODARR_PROFILE_ID", "default"),
		MinScanInterval:          getEnvDurationOrDefault("MELODARR_MIN_SCAN_INTERVAL", 30*time.Second),
		DebounceWindow:           getEnvDurationOrDefault("MELODARR_DEBOUNCE_WINDOW", 2*time.Second),
		WatchEnabled:             getEnvBoolOrDefault("MELODARR_WATCH_ENABLED", true),
		AudioExtensions:          parseExtensions(getEnvOrDefault("MELODARR_AUDIO_EXTENSIONS", "")),
		EnrichmentBatchSize:      getEnvIntOrDefault("MELODARR_ENRICHMENT_BATCH_SIZE", 25),
		EnrichmentRateLimitRPS:   getEnvFloatOrDefault("MELODARR_ENRICHMENT_RATE_LIMIT_RPS", 1.0),
		EnrichmentRateLimitBurst: getEnvIntOrDefault("MELODARR_ENRICHMENT_RATE_LIMIT_BURST", 3),
		EnrichmentBaseURL:        getEnvOrDefault("MELODARR_ENRICHMENT_BASE_URL", "https://musicbrainz.org/ws/2"),
		ScanSchedule:             getEnvOrDefault("MELODARR_SCAN_SCHEDULE", "0 2 * * *"),
		MaintenanceSchedule:      getEnvOrDefault("MELODARR_MAINTENANCE_SCHEDULE", "30 3 * * 0"),
		RetentionDays:            getEnvIntOrDefault("MELODARR_RETENTION_DAYS", 90),
		DataDir:                  dataDir,
		DatabasePath:             dbPath,
		LogDir:                   logDir,
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// Valid
	default:
		cfg.LogLevel = "info"
	}

	return cfg
}

// parseExtensions converts a comma-separated extension list ("mp3,.flac") into
// the canonical lowercase dotted form. Empty input yields the built-in list.
func parseExtensions(raw string) []string {
	if raw == "" {
		exts := make([]string, len(DefaultAudioExtensions))
		copy(exts, DefaultAudioExtensions)
		return exts
	}
	var exts []string
	for _, part := range strings.Split(raw, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		return parseExtensions("")
	}
	return exts
}

// Get returns the current configuration. Panics if Load() hasn't been called.
func Get() *Config {
	if cfg == nil {
		panic("config.Load() must be called before config.Get()")
	}
	return cfg
}

// SetForTesting allows tests to set the global config without calling Load().
// This should ONLY be used in test code.
func SetForTesting(c *Config) {
	cfg = c
}

// NewTestConfig returns a minimal Config suitable for unit tests.
func NewTestConfig() *Config {
	return &Config{
		Port:                     "8080",
		LogLevel:                 "debug",
		ProfileID:                "default",
		MinScanInterval:          0,
		DebounceWindow:           2 * time.Second,
		WatchEnabled:             false,
		AudioExtensions:          parseExtensions(""),
		EnrichmentBatchSize:      25,
		EnrichmentRateLimitRPS:   100,
		EnrichmentRateLimitBurst: 10,
		EnrichmentBaseURL:        "http://127.0.0.1:0",
		ScanSchedule:             "",
		MaintenanceSchedule:      "",
		RetentionDays:            90,
		DataDir:                  "/tmp/melodarr-test",
		DatabasePath:             "/tmp/melodarr-test/melodarr.db",
		LogDir:                   "/tmp/melodarr-test/logs",
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable as an int or the default if not set/invalid.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the environment variable as a duration or the default if not set/invalid.
// Accepts Go duration strings like "30s", "5m", "72h".
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable as a bool or the default if not set.
// Accepts "true", "1", "yes" as true values (case-insensitive).
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

// getEnvFloatOrDefault returns the environment variable as a float64 or the default if not set/invalid.
func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FlagOverrides holds command-line flag values that can override environment variables
type FlagOverrides struct {
	Port            *string
	LogLevel        *string
	DataDir         *string
	DatabasePath    *string
	MinScanInterval *time.Duration
	DebounceWindow  *time.Duration
	WatchEnabled    *bool
	RetentionDays   *int
}

// ApplyFlags applies command-line flag overrides to the configuration.
// Should be called after Load() and after flag parsing.
// Only non-nil values with non-default flag values will override.
func ApplyFlags(flags FlagOverrides) {
	if cfg == nil {
		return
	}

	if flags.Port != nil && *flags.Port != "" {
		cfg.Port = *flags.Port
	}
	if flags.LogLevel != nil && *flags.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(*flags.LogLevel)
	}
	if flags.DataDir != nil && *flags.DataDir != "" {
		cfg.DataDir = *flags.DataDir
	}
	if flags.DatabasePath != nil && *flags.DatabasePath != "" {
		cfg.DatabasePath = *flags.DatabasePath
	}
	if flags.MinScanInterval != nil && *flags.MinScanInterval != 0 {
		cfg.MinScanInterval = *flags.MinScanInterval
	}
	if flags.DebounceWindow != nil && *flags.DebounceWindow != 0 {
		cfg.DebounceWindow = *flags.DebounceWindow
	}
	if flags.WatchEnabled != nil {
		cfg.WatchEnabled = *flags.WatchEnabled
	}
	if flags.RetentionDays != nil {
		cfg.RetentionDays = *flags.RetentionDays
	}
}
