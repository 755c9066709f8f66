package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the NextRide service.
type Config struct {
	// Storage. DATABASE_URL selects Postgres; otherwise SQLite at
	// SQLitePath.
	DatabaseURL string
	SQLitePath  string

	// Real-time polling.
	DepartureInterval time.Duration
	AlertsInterval    time.Duration
	FetchTimeout      time.Duration
	GraceWindow       time.Duration

	// Feed endpoints. TripUpdateURLs holds the per-line-group trip-update
	// feeds (the MTA publishes one per line group); AlertsURL the single
	// service-alerts feed. A feeds file, when present, overrides
	// TripUpdateURLs.
	TripUpdateURLs []string
	AlertsURL      string
	FeedsFile      string
	FeedAPIKey     string

	// Outbound notification hook. Empty means log-only delivery.
	NotifyWebhookURL string

	// HTTP command surface.
	Port string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_DATABASE", "./data/nextride.db"),

		DepartureInterval: time.Duration(getEnvInt("DEPARTURE_POLL_INTERVAL", 30)) * time.Second,
		AlertsInterval:    time.Duration(getEnvInt("ALERTS_POLL_INTERVAL", 30)) * time.Second,
		FetchTimeout:      time.Duration(getEnvInt("FETCH_TIMEOUT", 15)) * time.Second,
		GraceWindow:       time.Duration(getEnvInt("DEPARTURE_GRACE_MINUTES", 5)) * time.Minute,

		AlertsURL:  getEnv("GTFS_ALERTS_URL", ""),
		FeedsFile:  getEnv("FEEDS_FILE", ""),
		FeedAPIKey: getEnv("FEED_API_KEY", ""),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),

		Port: getEnv("PORT", "8080"),
	}

	if urls := getEnv("GTFS_TRIP_UPDATE_URLS", ""); urls != "" {
		for _, u := range strings.Split(urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.TripUpdateURLs = append(cfg.TripUpdateURLs, u)
			}
		}
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
