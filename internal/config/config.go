// Package config provides engine configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the engine configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Scheduler SchedulerConfig
	Workers   WorkerConfig
	Guard     GuardConfig
	Tuning    TuningConfig
	Metrics   MetricsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk locations.
type DataConfig struct {
	BasePath string
	// DatabasePath is the sqlite file (default: {base}/engine.db).
	DatabasePath string
	// CachePath is the badger directory (default: {base}/cache).
	CachePath string
	// CacheInMemory keeps the ranking cache off disk.
	CacheInMemory bool
}

// SchedulerConfig holds batch job intervals. Zero disables a job's ticker.
type SchedulerConfig struct {
	RankingInterval        time.Duration // default: 1h
	RelatedInterval        time.Duration // default: 24h
	RecommendationInterval time.Duration // default: 6h
	ActiveUserWindow       time.Duration // default: 168h
	RunOnStart             bool          // default: true
}

// WorkerConfig bounds fan-out inside each batch.
type WorkerConfig struct {
	RankingConcurrency        int
	RelatedConcurrency        int
	RecommendationConcurrency int
	// UnitTimeout bounds one ranking type, item or user.
	UnitTimeout time.Duration
}

// GuardConfig holds signal reader protection settings.
type GuardConfig struct {
	RequestsPerSecond float64
	Burst             int
	FailureThreshold  int
	OpenTimeout       time.Duration
}

// TuningConfig points at the optional scoring weights file.
type TuningConfig struct {
	Path string
}

// MetricsConfig controls the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("engine", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for engine data")
	dbPath := fs.String("db-path", "", "Path to the sqlite database (default: {data}/engine.db)")
	cachePath := fs.String("cache-path", "", "Path to the ranking cache (default: {data}/cache)")
	cacheInMemory := fs.String("cache-in-memory", "", "Keep the ranking cache in memory (default: false)")

	// Scheduler flags
	rankingInterval := fs.String("ranking-interval", "", "Ranking recompute interval (default: 1h, 0 disables)")
	relatedInterval := fs.String("related-interval", "", "Related graph rebuild interval (default: 24h, 0 disables)")
	recInterval := fs.String("recommendation-interval", "", "Recommendation refresh interval (default: 6h, 0 disables)")
	activeWindow := fs.String("active-user-window", "", "Activity window for batch recommendations (default: 168h)")
	runOnStart := fs.String("run-on-start", "", "Run every job once at startup (default: true)")

	// Worker flags
	rankingWorkers := fs.String("ranking-workers", "", "Ranking types computed in parallel (default: 2)")
	relatedWorkers := fs.String("related-workers", "", "Items computed in parallel (default: 4)")
	recWorkers := fs.String("recommendation-workers", "", "Users generated in parallel (default: 4)")
	unitTimeout := fs.String("unit-timeout", "", "Timeout for one unit of work (default: 2m)")

	// Signal guard flags
	signalRPS := fs.String("signal-rps", "", "Signal queries per second (default: 200, 0 disables)")
	signalBurst := fs.String("signal-burst", "", "Signal query burst (default: 50)")
	breakerThreshold := fs.String("breaker-threshold", "", "Consecutive failures that open the breaker (default: 5)")
	breakerTimeout := fs.String("breaker-timeout", "", "How long the breaker stays open (default: 30s)")

	tuningPath := fs.String("tuning", "", "Path to a scoring weights YAML file")
	metricsAddr := fs.String("metrics-addr", "", "Address for the /metrics endpoint (default: disabled)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath:      getConfigValue(*dataPath, "DATA_PATH", ""),
			DatabasePath:  getConfigValue(*dbPath, "DB_PATH", ""),
			CachePath:     getConfigValue(*cachePath, "CACHE_PATH", ""),
			CacheInMemory: getBoolConfigValue(*cacheInMemory, "CACHE_IN_MEMORY", false),
		},
		Scheduler: SchedulerConfig{
			RunOnStart: getBoolConfigValue(*runOnStart, "RUN_ON_START", true),
		},
		Workers: WorkerConfig{
			RankingConcurrency:        getIntConfigValue(*rankingWorkers, "RANKING_WORKERS", 2),
			RelatedConcurrency:        getIntConfigValue(*relatedWorkers, "RELATED_WORKERS", 4),
			RecommendationConcurrency: getIntConfigValue(*recWorkers, "RECOMMENDATION_WORKERS", 4),
		},
		Guard: GuardConfig{
			Burst:            getIntConfigValue(*signalBurst, "SIGNAL_BURST", 50),
			FailureThreshold: getIntConfigValue(*breakerThreshold, "BREAKER_THRESHOLD", 5),
		},
		Tuning: TuningConfig{
			Path: getConfigValue(*tuningPath, "TUNING_PATH", ""),
		},
		Metrics: MetricsConfig{
			Addr: getConfigValue(*metricsAddr, "METRICS_ADDR", ""),
		},
	}

	rps, err := strconv.ParseFloat(getConfigValue(*signalRPS, "SIGNAL_RPS", "200"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid signal rps: %w", err)
	}
	cfg.Guard.RequestsPerSecond = rps

	durations := []struct {
		dst          *time.Duration
		flagValue    string
		envKey       string
		defaultValue string
	}{
		{&cfg.Scheduler.RankingInterval, *rankingInterval, "RANKING_INTERVAL", "1h"},
		{&cfg.Scheduler.RelatedInterval, *relatedInterval, "RELATED_INTERVAL", "24h"},
		{&cfg.Scheduler.RecommendationInterval, *recInterval, "RECOMMENDATION_INTERVAL", "6h"},
		{&cfg.Scheduler.ActiveUserWindow, *activeWindow, "ACTIVE_USER_WINDOW", "168h"},
		{&cfg.Workers.UnitTimeout, *unitTimeout, "UNIT_TIMEOUT", "2m"},
		{&cfg.Guard.OpenTimeout, *breakerTimeout, "BREAKER_TIMEOUT", "30s"},
	}
	for _, d := range durations {
		v, err := getDurationConfigValue(d.flagValue, d.envKey, d.defaultValue)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	// Expand and validate data paths.
	if err := cfg.expandDataPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if cfg.Tuning.Path != "" {
		expanded, err := expandPath(cfg.Tuning.Path, "")
		if err != nil {
			return nil, fmt.Errorf("invalid tuning path: %w", err)
		}
		cfg.Tuning.Path = expanded
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Scheduler.RankingInterval < 0 || c.Scheduler.RelatedInterval < 0 || c.Scheduler.RecommendationInterval < 0 {
		return errors.New("scheduler intervals cannot be negative")
	}
	if c.Scheduler.ActiveUserWindow <= 0 {
		return errors.New("active user window must be positive")
	}

	if c.Workers.RankingConcurrency < 1 || c.Workers.RelatedConcurrency < 1 || c.Workers.RecommendationConcurrency < 1 {
		return errors.New("worker counts must be at least 1")
	}
	if c.Workers.UnitTimeout <= 0 {
		return errors.New("unit timeout must be positive")
	}

	if c.Guard.RequestsPerSecond < 0 {
		return errors.New("signal rps cannot be negative")
	}
	if c.Guard.FailureThreshold < 1 {
		return errors.New("breaker threshold must be at least 1")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPaths resolves the base path and derives the database and cache
// locations from it unless they were set explicitly.
func (c *Config) expandDataPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.Data.BasePath, filepath.Join(homeDir, "BookLibrio", "engine"))
	if err != nil {
		return err
	}
	c.Data.BasePath = base

	dbPath, err := expandPath(c.Data.DatabasePath, filepath.Join(base, "engine.db"))
	if err != nil {
		return err
	}
	c.Data.DatabasePath = dbPath

	cachePath, err := expandPath(c.Data.CachePath, filepath.Join(base, "cache"))
	if err != nil {
		return err
	}
	c.Data.CachePath = cachePath
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue parses a duration from flag, env var, or default.
// "0" is accepted and means disabled where the caller allows it.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	if strValue == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
