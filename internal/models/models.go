package models

import (
	"errors"
	"time"
)

// Station is a physical stop from the static schedule snapshot.
type Station struct {
	StopID   string   `db:"stop_id" json:"stopId"`
	StopName string   `db:"stop_name" json:"stopName"`
	Lat      *float64 `db:"lat" json:"lat"`
	Lon      *float64 `db:"lon" json:"lon"`
}

// Route is a transit line from the static schedule snapshot.
type Route struct {
	RouteID   string `db:"route_id" json:"routeId"`
	ShortName string `db:"route_short_name" json:"shortName"`
	LongName  string `db:"route_long_name" json:"longName"`
}

// Trip is one scheduled vehicle run on a route.
type Trip struct {
	TripID      string `db:"trip_id" json:"tripId"`
	RouteID     string `db:"route_id" json:"routeId"`
	ServiceID   string `db:"service_id" json:"serviceId"`
	Headsign    string `db:"headsign" json:"headsign"`
	DirectionID int    `db:"direction_id" json:"directionId"`
}

// ScheduledStopTime is a static stop_times row: the scheduled departure of a
// trip at a stop, as seconds after local midnight (GTFS allows values past
// 24:00:00 for trips that run over midnight).
type ScheduledStopTime struct {
	TripID           string
	RouteID          string
	StopID           string
	StopSequence     int
	DepartureSeconds int
}

// LiveDeparture is a real-time departure prediction for one trip at one stop.
// Unique per (TripID, StopID); a newer FeedTimestamp supersedes the stored row.
type LiveDeparture struct {
	TripID             string    `db:"trip_id" json:"tripId"`
	StopID             string    `db:"stop_id" json:"stopId"`
	RouteID            string    `db:"route_id" json:"routeId"`
	PredictedDeparture time.Time `db:"predicted_departure_utc" json:"predictedDeparture"`
	FeedTimestamp      time.Time `db:"feed_timestamp_utc" json:"feedTimestamp"`
	PolledAt           time.Time `db:"polled_at_utc" json:"polledAt"`
}

// Departure source labels.
const (
	SourceLive      = "live"
	SourceScheduled = "scheduled"
)

// Departure is one entry on a departure board: either a live prediction or a
// static scheduled time, labeled by Source.
type Departure struct {
	TripID    string    `json:"tripId"`
	RouteID   string    `json:"routeId"`
	StopID    string    `json:"stopId"`
	Departure time.Time `json:"departure"`
	Source    string    `json:"source"`
}

// AlertEntity is one route or stop affected by an alert.
type AlertEntity struct {
	RouteID string `db:"route_id" json:"routeId,omitempty"`
	StopID  string `db:"stop_id" json:"stopId,omitempty"`
}

// Alert is a service disruption notice keyed by the feed-assigned id.
type Alert struct {
	AlertID           string        `db:"alert_id" json:"alertId"`
	HeaderText        string        `db:"header_text" json:"headerText"`
	DescriptionText   string        `db:"description_text" json:"descriptionText"`
	ActivePeriodStart *time.Time    `db:"active_period_start" json:"activePeriodStart"`
	ActivePeriodEnd   *time.Time    `db:"active_period_end" json:"activePeriodEnd"`
	IsActive          bool          `db:"is_active" json:"isActive"`
	FirstSeenAt       time.Time     `db:"first_seen_at" json:"firstSeenAt"`
	LastSeenAt        time.Time     `db:"last_seen_at" json:"lastSeenAt"`
	ResolvedAt        *time.Time    `db:"resolved_at" json:"resolvedAt,omitempty"`
	Entities          []AlertEntity `json:"entities"`
}

// Alert period status labels relative to a point in time.
const (
	AlertUpcoming = "upcoming"
	AlertOngoing  = "active"
	AlertPast     = "past"
)

// StatusAt classifies the alert's active period relative to now.
func (a *Alert) StatusAt(now time.Time) string {
	if a.ActivePeriodStart != nil && a.ActivePeriodStart.After(now) {
		return AlertUpcoming
	}
	if a.ActivePeriodEnd != nil && a.ActivePeriodEnd.Before(now) {
		return AlertPast
	}
	return AlertOngoing
}

// PeriodElapsed reports whether the alert's declared active period has fully
// passed. Alerts without an end time never elapse on their own.
func (a *Alert) PeriodElapsed(now time.Time) bool {
	return a.ActivePeriodEnd != nil && a.ActivePeriodEnd.Before(now)
}

// Subscription target kinds.
const (
	TargetStation = "station"
	TargetRoute   = "route"
)

// ValidTargetKind reports whether kind names a subscribable target type.
func ValidTargetKind(kind string) bool {
	return kind == TargetStation || kind == TargetRoute
}

// Subscription is a user's durable interest in a station or route.
type Subscription struct {
	SubscriptionID string    `db:"subscription_id" json:"subscriptionId"`
	UserID         int64     `db:"user_id" json:"-"`
	TargetKind     string    `db:"target_kind" json:"targetKind"`
	TargetID       string    `db:"target_id" json:"targetId"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Matches reports whether the subscription's target is directly affected by
// the alert. Station subscriptions match affected-stop entries, route
// subscriptions match affected-route entries.
func (s *Subscription) Matches(a *Alert) bool {
	for _, e := range a.Entities {
		switch s.TargetKind {
		case TargetStation:
			if e.StopID != "" && e.StopID == s.TargetID {
				return true
			}
		case TargetRoute:
			if e.RouteID != "" && e.RouteID == s.TargetID {
				return true
			}
		}
	}
	return false
}

// NotificationKey identifies one (subscription, alert) notification pair.
type NotificationKey struct {
	SubscriptionID string
	AlertID        string
}

// UserAlert is an alert matched to one of a user's subscriptions, as returned
// to the command surface.
type UserAlert struct {
	Alert      Alert  `json:"alert"`
	TargetKind string `json:"targetKind"`
	TargetID   string `json:"targetId"`
	Status     string `json:"status"`
}

// Validate checks structural validity of a live departure before it is
// written to the store.
func (d *LiveDeparture) Validate() error {
	if d.TripID == "" {
		return errors.New("trip_id is required")
	}
	if d.StopID == "" {
		return errors.New("stop_id is required")
	}
	if d.PredictedDeparture.IsZero() {
		return errors.New("predicted departure is required")
	}
	return nil
}
