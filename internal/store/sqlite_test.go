package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSchedule(t *testing.T, s *SQLite) {
	t.Helper()
	err := s.ReplaceSchedule(context.Background(), &ScheduleSnapshot{
		Stations: []models.Station{
			{StopID: "S1", StopName: "Times Sq"},
			{StopID: "S2", StopName: "Union Sq"},
		},
		Routes: []models.Route{
			{RouteID: "A", ShortName: "A"},
			{RouteID: "Q", ShortName: "Q"},
		},
		Trips: []models.Trip{
			{TripID: "trip-a1", RouteID: "A"},
			{TripID: "trip-q1", RouteID: "Q"},
		},
		StopTimes: []models.ScheduledStopTime{
			{TripID: "trip-a1", StopSequence: 1, StopID: "S1", DepartureSeconds: 8 * 3600},
			{TripID: "trip-q1", StopSequence: 1, StopID: "S2", DepartureSeconds: 9 * 3600},
		},
	})
	require.NoError(t, err)
}

func TestUpsertDepartures_NewerTimestampWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := models.LiveDeparture{
		TripID: "trip-a1", StopID: "S1", RouteID: "A",
		PredictedDeparture: base.Add(5 * time.Minute),
		FeedTimestamp:      base,
		PolledAt:           base,
	}
	require.NoError(t, s.UpsertDepartures(ctx, []models.LiveDeparture{first}))

	// A fresher prediction replaces the row.
	newer := first
	newer.PredictedDeparture = base.Add(7 * time.Minute)
	newer.FeedTimestamp = base.Add(30 * time.Second)
	require.NoError(t, s.UpsertDepartures(ctx, []models.LiveDeparture{newer}))

	got, err := s.LiveDepartures(ctx, "S1", "", base)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, newer.PredictedDeparture, got[0].PredictedDeparture)

	// A stale fetch racing in afterwards must not regress the row.
	stale := first
	stale.PredictedDeparture = base.Add(1 * time.Minute)
	stale.FeedTimestamp = base.Add(-1 * time.Minute)
	require.NoError(t, s.UpsertDepartures(ctx, []models.LiveDeparture{stale}))

	got, err = s.LiveDepartures(ctx, "S1", "", base)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, newer.PredictedDeparture, got[0].PredictedDeparture)
}

func TestUpsertDepartures_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deps := []models.LiveDeparture{
		{TripID: "t1", StopID: "S1", RouteID: "A", PredictedDeparture: base.Add(time.Minute), FeedTimestamp: base, PolledAt: base},
		{TripID: "t2", StopID: "S1", RouteID: "A", PredictedDeparture: base.Add(2 * time.Minute), FeedTimestamp: base, PolledAt: base},
	}

	require.NoError(t, s.UpsertDepartures(ctx, deps))
	require.NoError(t, s.UpsertDepartures(ctx, deps))

	got, err := s.LiveDepartures(ctx, "S1", "", base)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestPruneDepartures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deps := []models.LiveDeparture{
		{TripID: "old", StopID: "S1", PredictedDeparture: base.Add(-20 * time.Minute), FeedTimestamp: base, PolledAt: base},
		{TripID: "new", StopID: "S1", PredictedDeparture: base.Add(10 * time.Minute), FeedTimestamp: base, PolledAt: base},
	}
	require.NoError(t, s.UpsertDepartures(ctx, deps))

	n, err := s.PruneDepartures(ctx, base.Add(-5*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.LiveDepartures(ctx, "S1", "", base)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "new", got[0].TripID)
}

func alertFixture(id string, seenAt time.Time) models.Alert {
	return models.Alert{
		AlertID:         id,
		HeaderText:      "Delays on A",
		DescriptionText: "Signal problems",
		IsActive:        true,
		LastSeenAt:      seenAt,
		Entities: []models.AlertEntity{
			{StopID: "S1"},
			{RouteID: "A"},
		},
	}
}

func TestAlertLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := alertFixture("A123", now)
	require.NoError(t, s.UpsertAlerts(ctx, []models.Alert{a}))

	active, err := s.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "A123", active[0].AlertID)
	require.Len(t, active[0].Entities, 2)

	// Re-sighting with edited content refreshes in place, no duplicate.
	a.HeaderText = "Major delays on A"
	a.LastSeenAt = now.Add(30 * time.Second)
	require.NoError(t, s.UpsertAlerts(ctx, []models.Alert{a}))

	active, err = s.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Major delays on A", active[0].HeaderText)
	require.Equal(t, now, active[0].FirstSeenAt)

	// Absent from the next fetch: marked inactive, row retained.
	n, err := s.MarkInactiveAlerts(ctx, nil, now.Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	active, err = s.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	// Re-sighting flips it back to active.
	a.LastSeenAt = now.Add(2 * time.Minute)
	require.NoError(t, s.UpsertAlerts(ctx, []models.Alert{a}))

	active, err = s.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Nil(t, active[0].ResolvedAt)
}

func TestMarkInactiveAlerts_SparesSightedIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertAlerts(ctx, []models.Alert{
		alertFixture("A1", now), alertFixture("A2", now),
	}))

	n, err := s.MarkInactiveAlerts(ctx, []string{"A1"}, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	active, err := s.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "A1", active[0].AlertID)
}

func TestExpireElapsedAlerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ended := now.Add(-time.Hour)
	a := alertFixture("A1", now)
	a.ActivePeriodEnd = &ended
	b := alertFixture("A2", now)
	require.NoError(t, s.UpsertAlerts(ctx, []models.Alert{a, b}))

	n, err := s.ExpireElapsedAlerts(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	active, err := s.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "A2", active[0].AlertID)
}

func TestCreateSubscription_Idempotent(t *testing.T) {
	s := newTestStore(t)
	seedSchedule(t, s)
	ctx := context.Background()

	userID, err := s.GetOrCreateUser(ctx, "ana")
	require.NoError(t, err)

	first, err := s.CreateSubscription(ctx, userID, models.TargetStation, "S1")
	require.NoError(t, err)
	second, err := s.CreateSubscription(ctx, userID, models.TargetStation, "S1")
	require.NoError(t, err)
	require.Equal(t, first.SubscriptionID, second.SubscriptionID)

	subs, err := s.ListSubscriptions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
}

func TestCreateSubscription_InvalidTarget(t *testing.T) {
	s := newTestStore(t)
	seedSchedule(t, s)
	ctx := context.Background()

	userID, err := s.GetOrCreateUser(ctx, "ana")
	require.NoError(t, err)

	_, err = s.CreateSubscription(ctx, userID, models.TargetStation, "unknown-id")
	require.ErrorIs(t, err, ErrInvalidTarget)

	_, err = s.CreateSubscription(ctx, userID, "vehicle", "S1")
	require.ErrorIs(t, err, ErrInvalidTarget)

	subs, err := s.ListSubscriptions(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestDeleteSubscription(t *testing.T) {
	s := newTestStore(t)
	seedSchedule(t, s)
	ctx := context.Background()

	ana, err := s.GetOrCreateUser(ctx, "ana")
	require.NoError(t, err)
	bob, err := s.GetOrCreateUser(ctx, "bob")
	require.NoError(t, err)

	sub, err := s.CreateSubscription(ctx, ana, models.TargetRoute, "A")
	require.NoError(t, err)

	// Someone else's subscription is not found.
	require.ErrorIs(t, s.DeleteSubscription(ctx, bob, sub.SubscriptionID), ErrNotFound)

	require.NoError(t, s.DeleteSubscription(ctx, ana, sub.SubscriptionID))
	require.ErrorIs(t, s.DeleteSubscription(ctx, ana, sub.SubscriptionID), ErrNotFound)
}

func TestListSubscriptions_ScopedToUser(t *testing.T) {
	s := newTestStore(t)
	seedSchedule(t, s)
	ctx := context.Background()

	ana, err := s.GetOrCreateUser(ctx, "ana")
	require.NoError(t, err)
	bob, err := s.GetOrCreateUser(ctx, "bob")
	require.NoError(t, err)

	_, err = s.CreateSubscription(ctx, ana, models.TargetStation, "S2")
	require.NoError(t, err)
	_, err = s.CreateSubscription(ctx, ana, models.TargetRoute, "A")
	require.NoError(t, err)
	_, err = s.CreateSubscription(ctx, bob, models.TargetStation, "S1")
	require.NoError(t, err)

	subs, err := s.ListSubscriptions(ctx, ana)
	require.NoError(t, err)
	targets := make([]string, len(subs))
	for i, sub := range subs {
		targets[i] = sub.TargetID
	}
	require.ElementsMatch(t, []string{"S2", "A"}, targets)

	all, err := s.AllSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestRecordNotification_Gate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inserted, err := s.RecordNotification(ctx, "sub-1", "A123", now)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.RecordNotification(ctx, "sub-1", "A123", now.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, inserted)

	pairs, err := s.NotifiedPairs(ctx, []string{"A123"})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	require.True(t, pairs[models.NotificationKey{SubscriptionID: "sub-1", AlertID: "A123"}])
}

func TestAlertsForUser_DirectMatch(t *testing.T) {
	s := newTestStore(t)
	seedSchedule(t, s)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stationAlert := alertFixture("A-station", now)
	stationAlert.Entities = []models.AlertEntity{{StopID: "S1"}}
	routeAlert := alertFixture("A-route", now)
	routeAlert.Entities = []models.AlertEntity{{RouteID: "Q"}}
	unrelated := alertFixture("A-other", now)
	unrelated.Entities = []models.AlertEntity{{StopID: "S2"}}
	require.NoError(t, s.UpsertAlerts(ctx, []models.Alert{stationAlert, routeAlert, unrelated}))

	userID, err := s.GetOrCreateUser(ctx, "ana")
	require.NoError(t, err)
	_, err = s.CreateSubscription(ctx, userID, models.TargetStation, "S1")
	require.NoError(t, err)
	_, err = s.CreateSubscription(ctx, userID, models.TargetRoute, "Q")
	require.NoError(t, err)

	alerts, err := s.AlertsForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	ids := []string{alerts[0].Alert.AlertID, alerts[1].Alert.AlertID}
	require.ElementsMatch(t, []string{"A-station", "A-route"}, ids)

	// Inactive alerts drop out.
	_, err = s.MarkInactiveAlerts(ctx, []string{"A-route", "A-other"}, now)
	require.NoError(t, err)

	alerts, err = s.AlertsForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "A-route", alerts[0].Alert.AlertID)
}

func TestRouteServesStation(t *testing.T) {
	s := newTestStore(t)
	seedSchedule(t, s)
	ctx := context.Background()

	serves, err := s.RouteServesStation(ctx, "A", "S1")
	require.NoError(t, err)
	require.True(t, serves)

	serves, err = s.RouteServesStation(ctx, "Q", "S1")
	require.NoError(t, err)
	require.False(t, serves)
}
