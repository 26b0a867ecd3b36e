// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every runtime setting of the service. All fields map to
// PULSE_* environment variables; unset endpoints disable the matching
// collaborator rather than failing startup.
type Config struct {
	// Collaborator endpoints.
	SearchURL       string
	VideoURL        string
	DiscoverURL     string
	SentimentURL    string
	QueryBuilderURL string

	// Pipeline knobs.
	MaxWorkers    int
	TopDiscover   int
	WebMaxResults int
	RetryAttempts int

	// HTTP behavior.
	RequestTimeout time.Duration
	VideoTimeout   time.Duration
	UserAgent      string

	// Call pacing in requests per second; 0 disables pacing.
	VideoRPS   float64
	ArticleRPS float64

	// Article extraction.
	MaxContentLen int
	TLSProfile    string

	// Run persistence. Driver is one of "", "json", "sqlite", "postgres".
	StoreDriver string
	StoreDSN    string

	// API server.
	ListenAddr string
}

// FromEnv builds a Config from PULSE_* environment variables, applying
// defaults for everything unset.
func FromEnv() (Config, error) {
	cfg := Config{
		SearchURL:       os.Getenv("PULSE_SEARCH_URL"),
		VideoURL:        os.Getenv("PULSE_VIDEO_URL"),
		DiscoverURL:     os.Getenv("PULSE_DISCOVER_URL"),
		SentimentURL:    os.Getenv("PULSE_SENTIMENT_URL"),
		QueryBuilderURL: os.Getenv("PULSE_QUERY_BUILDER_URL"),
		UserAgent:       os.Getenv("PULSE_USER_AGENT"),
		TLSProfile:      os.Getenv("PULSE_TLS_PROFILE"),
		StoreDriver:     os.Getenv("PULSE_STORE_DRIVER"),
		StoreDSN:        os.Getenv("PULSE_STORE_DSN"),
		ListenAddr:      envOr("PULSE_LISTEN_ADDR", ":8080"),
	}

	var err error
	if cfg.MaxWorkers, err = envInt("PULSE_MAX_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.TopDiscover, err = envInt("PULSE_TOP_DISCOVER", 10); err != nil {
		return Config{}, err
	}
	if cfg.WebMaxResults, err = envInt("PULSE_WEB_MAX_RESULTS", 10); err != nil {
		return Config{}, err
	}
	if cfg.RetryAttempts, err = envInt("PULSE_RETRY_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.MaxContentLen, err = envInt("PULSE_MAX_CONTENT_LEN", 20000); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = envDuration("PULSE_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.VideoTimeout, err = envDuration("PULSE_VIDEO_TIMEOUT", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.VideoRPS, err = envFloat("PULSE_VIDEO_RPS", 0); err != nil {
		return Config{}, err
	}
	if cfg.ArticleRPS, err = envFloat("PULSE_ARTICLE_RPS", 2); err != nil {
		return Config{}, err
	}

	switch cfg.StoreDriver {
	case "", "json", "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver != "" && cfg.StoreDSN == "" {
		return Config{}, fmt.Errorf("PULSE_STORE_DSN required for store driver %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
