// Package store is the durable state layer shared by the pollers, the
// dispatcher and the command surface. All mutation happens through natural-key
// upserts so every reconciliation cycle is safe to re-run in full.
//
// Two backends implement the same interface: SQLite (default, single file,
// used by the poller deployment) and Postgres (selected when DATABASE_URL is
// set). Backend selection happens once in Open.
package store

import (
	"context"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// Store is the single source of truth for schedule, realtime and
// subscription state.
type Store interface {
	// Schedule snapshot (read-only during operation, replaced wholesale by
	// the importer).
	ReplaceSchedule(ctx context.Context, snap *ScheduleSnapshot) error
	StationExists(ctx context.Context, stopID string) (bool, error)
	RouteExists(ctx context.Context, routeID string) (bool, error)
	RouteServesStation(ctx context.Context, routeID, stopID string) (bool, error)
	ListStations(ctx context.Context) ([]models.Station, error)
	ListRoutes(ctx context.Context) ([]models.Route, error)
	ScheduledStopTimes(ctx context.Context, stopID, routeID string) ([]models.ScheduledStopTime, error)

	// Live departures.
	UpsertDepartures(ctx context.Context, deps []models.LiveDeparture) error
	PruneDepartures(ctx context.Context, olderThan time.Time) (int64, error)
	LiveDepartures(ctx context.Context, stopID, routeID string, after time.Time) ([]models.LiveDeparture, error)

	// Alerts.
	UpsertAlerts(ctx context.Context, alerts []models.Alert) error
	MarkInactiveAlerts(ctx context.Context, activeIDs []string, now time.Time) (int64, error)
	ExpireElapsedAlerts(ctx context.Context, now time.Time) (int64, error)
	ActiveAlerts(ctx context.Context) ([]models.Alert, error)

	// Users and subscriptions.
	GetOrCreateUser(ctx context.Context, username string) (int64, error)
	CreateSubscription(ctx context.Context, userID int64, kind, targetID string) (models.Subscription, error)
	DeleteSubscription(ctx context.Context, userID int64, subscriptionID string) error
	ListSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error)
	AllSubscriptions(ctx context.Context) ([]models.Subscription, error)
	AlertsForUser(ctx context.Context, userID int64) ([]models.UserAlert, error)

	// Notification dedup gate. RecordNotification returns false when the
	// (subscription, alert) pair was already recorded.
	RecordNotification(ctx context.Context, subscriptionID, alertID string, sentAt time.Time) (bool, error)
	NotifiedPairs(ctx context.Context, alertIDs []string) (map[models.NotificationKey]bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// ScheduleSnapshot is a complete static schedule ready to replace the
// current one.
type ScheduleSnapshot struct {
	Stations  []models.Station
	Routes    []models.Route
	Trips     []models.Trip
	StopTimes []models.ScheduledStopTime
}

// Open selects a backend: Postgres when databaseURL is non-empty, otherwise
// SQLite at sqlitePath. The schema is ensured on open.
func Open(ctx context.Context, databaseURL, sqlitePath string) (Store, error) {
	if databaseURL != "" {
		return OpenPostgres(ctx, databaseURL)
	}
	return OpenSQLite(ctx, sqlitePath)
}
