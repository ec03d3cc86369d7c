// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir                string // Base directory for all databases (always absolute)
	LogLevel               string
	YahooBaseURL           string
	HistoryCache           string // "memory" or "sqlite"
	RecommendationSchedule string // cron spec with seconds field
	CacheCleanupSchedule   string
	Port                   int
	YahooRateLimit         float64 // requests per second, 0 disables limiting
	DevMode                bool
	Analysis               AnalysisSettings
}

// AnalysisSettings is passed explicitly to every analysis entry point
type AnalysisSettings struct {
	Benchmark                string
	OptimizerStrategy        string
	LookbackDays             int
	MaxConcurrentFetches     int
	MinOverlapObservations   int // shared daily returns needed before series are combined
	MaxFreeStockViews        int // Carried for the serving layer, not enforced by the engine
	FetchTimeout             time.Duration
	CacheTTL                 time.Duration
	RiskFreeRate             float64
	SectorConcentrationLimit float64 // percent
	HighVolatilityThreshold  float64 // annualized
	HighBetaThreshold        float64
	LossReviewRatio          float64 // price / average cost below this triggers a review
}

// DefaultAnalysisSettings returns the documented defaults
func DefaultAnalysisSettings() AnalysisSettings {
	return AnalysisSettings{
		Benchmark:                "^GSPC",
		OptimizerStrategy:        "min_volatility",
		LookbackDays:             365,
		MaxConcurrentFetches:     4,
		MinOverlapObservations:   20,
		MaxFreeStockViews:        3,
		FetchTimeout:             10 * time.Second,
		CacheTTL:                 15 * time.Minute,
		RiskFreeRate:             0,
		SectorConcentrationLimit: 50,
		HighVolatilityThreshold:  0.20,
		HighBetaThreshold:        1.2,
		LossReviewRatio:          0.8,
	}
}

// Lookback returns the history window as a duration
func (s AnalysisSettings) Lookback() time.Duration {
	return time.Duration(s.LookbackDays) * 24 * time.Hour
}

// Validate rejects settings the engine cannot work with
func (s AnalysisSettings) Validate() error {
	if s.LookbackDays < 2 {
		return fmt.Errorf("lookback must be at least 2 days, got %d", s.LookbackDays)
	}
	if s.MaxConcurrentFetches < 1 {
		return fmt.Errorf("max concurrent fetches must be positive, got %d", s.MaxConcurrentFetches)
	}
	if s.MinOverlapObservations < 2 {
		return fmt.Errorf("min overlap observations must be at least 2, got %d", s.MinOverlapObservations)
	}
	if s.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", s.FetchTimeout)
	}
	if s.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must not be negative, got %s", s.CacheTTL)
	}
	if s.SectorConcentrationLimit <= 0 || s.SectorConcentrationLimit > 100 {
		return fmt.Errorf("sector concentration limit must be in (0, 100], got %f", s.SectorConcentrationLimit)
	}
	if s.HighVolatilityThreshold <= 0 {
		return fmt.Errorf("volatility threshold must be positive, got %f", s.HighVolatilityThreshold)
	}
	if s.HighBetaThreshold <= 0 {
		return fmt.Errorf("beta threshold must be positive, got %f", s.HighBetaThreshold)
	}
	if s.LossReviewRatio <= 0 || s.LossReviewRatio > 1 {
		return fmt.Errorf("loss review ratio must be in (0, 1], got %f", s.LossReviewRatio)
	}
	if s.MaxFreeStockViews < 0 {
		return fmt.Errorf("max free stock views must not be negative, got %d", s.MaxFreeStockViews)
	}
	switch s.OptimizerStrategy {
	case "min_volatility", "max_sharpe":
	default:
		return fmt.Errorf("unknown optimizer strategy %q", s.OptimizerStrategy)
	}
	if strings.TrimSpace(s.Benchmark) == "" {
		return fmt.Errorf("benchmark symbol is required")
	}
	return nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QTOP_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                absDataDir,
		Port:                   getEnvAsInt("QTOP_PORT", 8001),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		YahooBaseURL:           getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		YahooRateLimit:         getEnvAsFloat("YAHOO_RATE_LIMIT", 5),
		HistoryCache:           strings.ToLower(getEnv("HISTORY_CACHE", "sqlite")),
		RecommendationSchedule: getEnv("RECOMMENDATION_SCHEDULE", "0 30 22 * * MON-FRI"),
		CacheCleanupSchedule:   getEnv("CACHE_CLEANUP_SCHEDULE", "0 */30 * * * *"),
		Analysis:               loadAnalysisSettings(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.HistoryCache {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown history cache %q (want memory or sqlite)", c.HistoryCache)
	}
	if c.YahooRateLimit < 0 {
		return fmt.Errorf("yahoo rate limit must not be negative, got %f", c.YahooRateLimit)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("invalid analysis settings: %w", err)
	}
	return nil
}

func loadAnalysisSettings() AnalysisSettings {
	d := DefaultAnalysisSettings()
	return AnalysisSettings{
		Benchmark:                getEnv("ANALYSIS_BENCHMARK", d.Benchmark),
		OptimizerStrategy:        getEnv("OPTIMIZER_STRATEGY", d.OptimizerStrategy),
		LookbackDays:             getEnvAsInt("ANALYSIS_LOOKBACK_DAYS", d.LookbackDays),
		MaxConcurrentFetches:     getEnvAsInt("ANALYSIS_MAX_CONCURRENCY", d.MaxConcurrentFetches),
		MinOverlapObservations:   getEnvAsInt("ANALYSIS_MIN_OVERLAP", d.MinOverlapObservations),
		MaxFreeStockViews:        getEnvAsInt("MAX_FREE_STOCK_VIEWS", d.MaxFreeStockViews),
		FetchTimeout:             getEnvAsDuration("ANALYSIS_FETCH_TIMEOUT", d.FetchTimeout),
		CacheTTL:                 getEnvAsDuration("ANALYSIS_CACHE_TTL", d.CacheTTL),
		RiskFreeRate:             getEnvAsFloat("ANALYSIS_RISK_FREE_RATE", d.RiskFreeRate),
		SectorConcentrationLimit: getEnvAsFloat("ADVICE_SECTOR_CONCENTRATION_PCT", d.SectorConcentrationLimit),
		HighVolatilityThreshold:  getEnvAsFloat("ADVICE_MAX_VOLATILITY", d.HighVolatilityThreshold),
		HighBetaThreshold:        getEnvAsFloat("ADVICE_MAX_BETA", d.HighBetaThreshold),
		LossReviewRatio:          getEnvAsFloat("ADVICE_LOSS_RATIO", d.LossReviewRatio),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
