package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Feed names one realtime endpoint in the feeds file.
type Feed struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,url"`
}

// FeedsFile is the optional YAML file listing the trip-update feed endpoints
// and, optionally, the alerts feed. Transit authorities that shard trip
// updates across several endpoints (the MTA publishes eight) are configured
// this way instead of a comma-separated env var.
type FeedsFile struct {
	TripUpdates []Feed `yaml:"tripUpdates" validate:"required,min=1,dive"`
	Alerts      *Feed  `yaml:"alerts" validate:"omitempty"`
}

// LoadFeeds reads and validates the feeds file at path, then applies it to
// cfg.
func LoadFeeds(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read feeds file: %w", err)
	}

	var ff FeedsFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return fmt.Errorf("failed to parse feeds file: %w", err)
	}

	v := validator.New()
	if err := v.Struct(ff); err != nil {
		return fmt.Errorf("invalid feeds file: %w", err)
	}
	if ff.Alerts != nil {
		if err := v.Struct(ff.Alerts); err != nil {
			return fmt.Errorf("invalid alerts feed: %w", err)
		}
	}

	cfg.TripUpdateURLs = cfg.TripUpdateURLs[:0]
	for _, f := range ff.TripUpdates {
		cfg.TripUpdateURLs = append(cfg.TripUpdateURLs, f.URL)
	}
	if ff.Alerts != nil {
		cfg.AlertsURL = ff.Alerts.URL
	}
	return nil
}
