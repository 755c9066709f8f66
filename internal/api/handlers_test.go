package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
	"github.com/bhuvana-manjunath/NextRide/internal/query"
	"github.com/bhuvana-manjunath/NextRide/internal/store"
)

func newTestServer(t *testing.T) (store.Store, http.Handler) {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	err = s.ReplaceSchedule(ctx, &store.ScheduleSnapshot{
		Stations: []models.Station{
			{StopID: "S1", StopName: "Times Sq"},
			{StopID: "S2", StopName: "Union Sq"},
		},
		Routes: []models.Route{{RouteID: "A", ShortName: "A"}},
		Trips:  []models.Trip{{TripID: "trip-1", RouteID: "A"}},
		StopTimes: []models.ScheduledStopTime{
			{TripID: "trip-1", StopSequence: 1, StopID: "S1", DepartureSeconds: 8 * 3600},
		},
	})
	require.NoError(t, err)

	h := NewHandler(s, query.NewService(s))
	return s, NewRouter(h, []string{"*"})
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetDepartures(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "GET", "/api/departures/S1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GetDeparturesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "S1", resp.StationID)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "trip-1", resp.Departures[0].TripID)
	require.Equal(t, models.SourceScheduled, resp.Departures[0].Source)
}

func TestGetDepartures_UnknownStation(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "GET", "/api/departures/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "unknown station", resp.Error)
}

func TestGetDepartures_RouteNotServingStation(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "GET", "/api/departures/S2?route=A", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDepartures_BadLimit(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "GET", "/api/departures/S1?limit=zero", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "GET", "/api/departures/S1?limit=0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscribeAndList(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "POST", "/api/users/ana/subscriptions",
		`{"kind":"station","targetId":"S1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	require.NotEmpty(t, sub.SubscriptionID)
	require.Equal(t, models.TargetStation, sub.TargetKind)
	require.Equal(t, "S1", sub.TargetID)

	// Same request again returns the existing subscription.
	rec = doJSON(t, router, "POST", "/api/users/ana/subscriptions",
		`{"kind":"station","targetId":"S1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var dup models.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dup))
	require.Equal(t, sub.SubscriptionID, dup.SubscriptionID)

	rec = doJSON(t, router, "GET", "/api/users/ana/subscriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListSubscriptionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
}

func TestSubscribe_InvalidTarget(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "POST", "/api/users/ana/subscriptions",
		`{"kind":"station","targetId":"nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "POST", "/api/users/ana/subscriptions",
		`{"kind":"vehicle","targetId":"S1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscribe_MissingFields(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "POST", "/api/users/ana/subscriptions", `{"kind":"station"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "POST", "/api/users/ana/subscriptions", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnsubscribe(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "POST", "/api/users/ana/subscriptions",
		`{"kind":"route","targetId":"A"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sub models.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))

	rec = doJSON(t, router, "DELETE", "/api/users/ana/subscriptions/"+sub.SubscriptionID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, "DELETE", "/api/users/ana/subscriptions/"+sub.SubscriptionID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListUserAlerts(t *testing.T) {
	s, router := newTestServer(t)
	ctx := context.Background()

	rec := doJSON(t, router, "POST", "/api/users/ana/subscriptions",
		`{"kind":"station","targetId":"S1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, s.UpsertAlerts(ctx, []models.Alert{{
		AlertID:    "A123",
		HeaderText: "Delays on A",
		IsActive:   true,
		LastSeenAt: time.Now().UTC(),
		Entities:   []models.AlertEntity{{StopID: "S1"}},
	}}))

	rec = doJSON(t, router, "GET", "/api/users/ana/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListUserAlertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "A123", resp.Alerts[0].Alert.AlertID)
	require.Equal(t, models.AlertOngoing, resp.Alerts[0].Status)
	require.Equal(t, models.TargetStation, resp.Alerts[0].TargetKind)
}

func TestListUserAlerts_EmptyForNewUser(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "GET", "/api/users/newbie/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListUserAlertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Count)
	require.NotNil(t, resp.Alerts)
}

func TestListStationsAndRoutes(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "GET", "/api/stations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stations []models.Station
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stations))
	require.Len(t, stations, 2)

	rec = doJSON(t, router, "GET", "/api/routes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var routes []models.Route
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	require.Len(t, routes, 1)
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}
