// Package config handles application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the YAML config path
const EnvConfigPath = "TIXCALC_CONFIG"

// Config holds every tunable of the server and CLI. Values come from the
// defaults, then the optional YAML file, then environment variables.
type Config struct {
	Port               string   `yaml:"port"`
	DBPath             string   `yaml:"db_path"`
	DatabaseURL        string   `yaml:"database_url"` // PostgreSQL; takes precedence over db_path when set
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	FrontendDistPath   string   `yaml:"frontend_dist_path"`

	GoatbotsBaseURL string `yaml:"goatbots_base_url"`
	ScryfallBaseURL string `yaml:"scryfall_base_url"`

	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchRate    float64       `yaml:"fetch_rate"` // requests per second, 0 = unlimited
	FetchBurst   int           `yaml:"fetch_burst"`
	FetchJitter  time.Duration `yaml:"fetch_jitter"`

	CacheFreshness       time.Duration `yaml:"cache_freshness"`
	MemoryCacheSize      int           `yaml:"memory_cache_size"`
	ValuationConcurrency int           `yaml:"valuation_concurrency"`

	// FallbackToEarliest prices a card valued before its first listing at
	// its earliest recorded price. Off by default, so such back-dated
	// valuations report the card as unavailable; set it to true to get the
	// historical goatbots-calculator totals.
	FallbackToEarliest bool `yaml:"fallback_to_earliest"`

	RefreshInterval  time.Duration `yaml:"refresh_interval"` // background cache refresh, 0 = off
	RefreshBatchSize int           `yaml:"refresh_batch_size"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Port:                 "8080",
		DBPath:               "./tix_calc.db",
		CORSAllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		GoatbotsBaseURL:      "https://www.goatbots.com",
		ScryfallBaseURL:      "https://api.scryfall.com",
		FetchTimeout:         15 * time.Second,
		FetchRate:            2,
		FetchBurst:           4,
		FetchJitter:          5 * time.Second,
		CacheFreshness:       24 * time.Hour,
		MemoryCacheSize:      128,
		ValuationConcurrency: 8,
		RefreshInterval:      15 * time.Minute,
		RefreshBatchSize:     50,
	}
}

// Load builds the config. configPath may be empty, in which case the path
// from TIXCALC_CONFIG is used if set; with no file only defaults and the
// environment apply.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables. getenv is injected
// so tests do not touch the process environment.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}
	if v := getenv("FRONTEND_DIST_PATH"); v != "" {
		c.FrontendDistPath = v
	}
	if v := getenv("GOATBOTS_BASE_URL"); v != "" {
		c.GoatbotsBaseURL = v
	}
	if v := getenv("SCRYFALL_BASE_URL"); v != "" {
		c.ScryfallBaseURL = v
	}

	var errs []error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FETCH_TIMEOUT", &c.FetchTimeout},
		{"FETCH_JITTER", &c.FetchJitter},
		{"CACHE_FRESHNESS", &c.CacheFreshness},
		{"REFRESH_INTERVAL", &c.RefreshInterval},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", d.key, v, err))
			continue
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"FETCH_BURST", &c.FetchBurst},
		{"MEMORY_CACHE_SIZE", &c.MemoryCacheSize},
		{"VALUATION_CONCURRENCY", &c.ValuationConcurrency},
		{"REFRESH_BATCH_SIZE", &c.RefreshBatchSize},
	}
	for _, i := range ints {
		v := getenv(i.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", i.key, v, err))
			continue
		}
		*i.dst = parsed
	}

	if v := getenv("FETCH_RATE"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid FETCH_RATE %q: %w", v, err))
		} else {
			c.FetchRate = parsed
		}
	}
	if v := getenv("FALLBACK_TO_EARLIEST"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid FALLBACK_TO_EARLIEST %q: %w", v, err))
		} else {
			c.FallbackToEarliest = parsed
		}
	}

	return errors.Join(errs...)
}

// Validate rejects values the services cannot run with
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if c.DatabaseURL == "" && c.DBPath == "" {
		return errors.New("either db_path or database_url is required")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.FetchRate < 0 {
		return fmt.Errorf("fetch_rate must not be negative, got %g", c.FetchRate)
	}
	if c.FetchBurst < 1 {
		return fmt.Errorf("fetch_burst must be at least 1, got %d", c.FetchBurst)
	}
	if c.FetchJitter < 0 {
		return fmt.Errorf("fetch_jitter must not be negative, got %s", c.FetchJitter)
	}
	if c.CacheFreshness <= 0 {
		return fmt.Errorf("cache_freshness must be positive, got %s", c.CacheFreshness)
	}
	if c.MemoryCacheSize < 1 {
		return fmt.Errorf("memory_cache_size must be at least 1, got %d", c.MemoryCacheSize)
	}
	if c.ValuationConcurrency < 1 {
		return fmt.Errorf("valuation_concurrency must be at least 1, got %d", c.ValuationConcurrency)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval must not be negative, got %s", c.RefreshInterval)
	}
	if c.RefreshBatchSize < 1 {
		return fmt.Errorf("refresh_batch_size must be at least 1, got %d", c.RefreshBatchSize)
	}
	return nil
}

// RefreshEnabled reports whether the server runs the background cache refresher
func (c *Config) RefreshEnabled() bool {
	return c.RefreshInterval > 0
}

// UsesPostgres reports whether the cache lives in PostgreSQL
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
