package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "SQLITE_DATABASE", "DEPARTURE_POLL_INTERVAL",
		"ALERTS_POLL_INTERVAL", "FETCH_TIMEOUT", "DEPARTURE_GRACE_MINUTES",
		"GTFS_TRIP_UPDATE_URLS", "GTFS_ALERTS_URL", "FEEDS_FILE",
		"FEED_API_KEY", "NOTIFY_WEBHOOK_URL", "PORT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, "", cfg.DatabaseURL)
	require.Equal(t, "./data/nextride.db", cfg.SQLitePath)
	require.Equal(t, 30*time.Second, cfg.DepartureInterval)
	require.Equal(t, 30*time.Second, cfg.AlertsInterval)
	require.Equal(t, 15*time.Second, cfg.FetchTimeout)
	require.Equal(t, 5*time.Minute, cfg.GraceWindow)
	require.Empty(t, cfg.TripUpdateURLs)
	require.Equal(t, "8080", cfg.Port)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/nextride")
	t.Setenv("DEPARTURE_POLL_INTERVAL", "60")
	t.Setenv("DEPARTURE_GRACE_MINUTES", "10")
	t.Setenv("GTFS_TRIP_UPDATE_URLS", "https://feeds.example.com/ace, https://feeds.example.com/bdfm ,")
	t.Setenv("GTFS_ALERTS_URL", "https://feeds.example.com/alerts")
	t.Setenv("PORT", "9090")

	cfg := Load()
	require.Equal(t, "postgres://localhost/nextride", cfg.DatabaseURL)
	require.Equal(t, 60*time.Second, cfg.DepartureInterval)
	require.Equal(t, 10*time.Minute, cfg.GraceWindow)
	require.Equal(t, []string{
		"https://feeds.example.com/ace",
		"https://feeds.example.com/bdfm",
	}, cfg.TripUpdateURLs)
	require.Equal(t, "https://feeds.example.com/alerts", cfg.AlertsURL)
	require.Equal(t, "9090", cfg.Port)
}

func TestLoad_BadIntFallsBackToDefault(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "soon")

	cfg := Load()
	require.Equal(t, 15*time.Second, cfg.FetchTimeout)
}

func writeFeedsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFeeds(t *testing.T) {
	path := writeFeedsFile(t, `
tripUpdates:
  - name: ace
    url: https://feeds.example.com/ace
  - name: bdfm
    url: https://feeds.example.com/bdfm
alerts:
  name: alerts
  url: https://feeds.example.com/alerts
`)

	cfg := &Config{TripUpdateURLs: []string{"https://stale.example.com"}}
	require.NoError(t, LoadFeeds(cfg, path))

	// The feeds file replaces, not appends.
	require.Equal(t, []string{
		"https://feeds.example.com/ace",
		"https://feeds.example.com/bdfm",
	}, cfg.TripUpdateURLs)
	require.Equal(t, "https://feeds.example.com/alerts", cfg.AlertsURL)
}

func TestLoadFeeds_AlertsOptional(t *testing.T) {
	path := writeFeedsFile(t, `
tripUpdates:
  - name: ace
    url: https://feeds.example.com/ace
`)

	cfg := &Config{AlertsURL: "https://env.example.com/alerts"}
	require.NoError(t, LoadFeeds(cfg, path))
	require.Equal(t, "https://env.example.com/alerts", cfg.AlertsURL)
}

func TestLoadFeeds_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty trip updates", "tripUpdates: []\n"},
		{"missing url", "tripUpdates:\n  - name: ace\n"},
		{"bad url", "tripUpdates:\n  - name: ace\n    url: not-a-url\n"},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFeedsFile(t, tt.content)
			require.Error(t, LoadFeeds(&Config{}, path))
		})
	}
}

func TestLoadFeeds_MissingFile(t *testing.T) {
	require.Error(t, LoadFeeds(&Config{}, filepath.Join(t.TempDir(), "absent.yml")))
}
