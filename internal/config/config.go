// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults and bounds for dispatch batching.
const (
	minDispatchBatch = 20
	maxDispatchBatch = 500
)

// Config holds the application configuration.
type Config struct {
	DatabasePath     string
	ResendAPIKey     string
	SendingEmail     string
	ScanMode         string
	LeaseTTL         time.Duration
	DispatchBatch    int
	HTTPAddr         string
	ScanSchedule     string
	DispatchSchedule string
	LogLevel         string
	UserAgent        string
}

// Load reads configuration from a local .env file (if present) and the
// environment. Missing required settings are fatal here, not per-cycle.
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required")
	}

	sendingEmail := os.Getenv("SENDING_EMAIL")
	if sendingEmail == "" {
		return nil, fmt.Errorf("SENDING_EMAIL is required")
	}

	mode := envOrDefault("SCAN_MODE", "keyword")
	if mode != "keyword" && mode != "firehose" {
		return nil, fmt.Errorf("invalid SCAN_MODE %q (want keyword or firehose)", mode)
	}

	leaseTTL := 5 * time.Minute
	if raw := os.Getenv("LEASE_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LEASE_TTL %q: %w", raw, err)
		}
		leaseTTL = d
	}

	batch := 50
	if raw := os.Getenv("DISPATCH_BATCH"); raw != "" {
		b, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_BATCH %q: %w", raw, err)
		}
		batch = b
	}
	if batch < minDispatchBatch {
		batch = minDispatchBatch
	}
	if batch > maxDispatchBatch {
		batch = maxDispatchBatch
	}

	return &Config{
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/alerts.db"),
		ResendAPIKey:     apiKey,
		SendingEmail:     sendingEmail,
		ScanMode:         mode,
		LeaseTTL:         leaseTTL,
		DispatchBatch:    batch,
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		ScanSchedule:     os.Getenv("SCAN_SCHEDULE"),
		DispatchSchedule: os.Getenv("DISPATCH_SCHEDULE"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		UserAgent:        envOrDefault("USER_AGENT", "reddit-alert/1.0 (keyword notifier)"),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
