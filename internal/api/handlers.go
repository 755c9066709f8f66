// Package api is the HTTP command surface consumed by the external chat
// front end. Caller errors come back as typed JSON failures; storage and feed
// internals never leak into responses.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
	"github.com/bhuvana-manjunath/NextRide/internal/query"
	"github.com/bhuvana-manjunath/NextRide/internal/store"
)

// Handler serves the command surface against the shared store.
type Handler struct {
	store store.Store
	query *query.Service
}

// NewHandler creates the command-surface handler.
func NewHandler(st store.Store, qs *query.Service) *Handler {
	return &Handler{store: st, query: qs}
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg})
}

// GetDeparturesResponse is the body for GET /api/departures/{stationID}.
type GetDeparturesResponse struct {
	StationID  string             `json:"stationId"`
	RouteID    string             `json:"routeId,omitempty"`
	Departures []models.Departure `json:"departures"`
	Count      int                `json:"count"`
}

// GetDepartures handles GET /api/departures/{stationID}?route=&limit=
func (h *Handler) GetDepartures(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationID")
	routeID := r.URL.Query().Get("route")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	deps, err := h.query.NextDepartures(r.Context(), stationID, routeID, limit)
	switch {
	case errors.Is(err, query.ErrUnknownStation):
		respondError(w, http.StatusNotFound, "unknown station")
		return
	case errors.Is(err, query.ErrInvalidRouteForStation):
		respondError(w, http.StatusBadRequest, "route does not serve station")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to retrieve departures")
		return
	}

	if deps == nil {
		deps = []models.Departure{}
	}
	respondJSON(w, http.StatusOK, GetDeparturesResponse{
		StationID:  stationID,
		RouteID:    routeID,
		Departures: deps,
		Count:      len(deps),
	})
}

// SubscribeRequest is the body for POST /api/users/{username}/subscriptions.
type SubscribeRequest struct {
	Kind     string `json:"kind"`
	TargetID string `json:"targetId"`
}

// Subscribe handles POST /api/users/{username}/subscriptions
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" || req.TargetID == "" {
		respondError(w, http.StatusBadRequest, "kind and targetId are required")
		return
	}

	userID, err := h.store.GetOrCreateUser(r.Context(), username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	sub, err := h.store.CreateSubscription(r.Context(), userID, req.Kind, req.TargetID)
	switch {
	case errors.Is(err, store.ErrInvalidTarget):
		respondError(w, http.StatusBadRequest, "target does not exist")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	respondJSON(w, http.StatusCreated, sub)
}

// ListSubscriptionsResponse is the body for GET /api/users/{username}/subscriptions.
type ListSubscriptionsResponse struct {
	Subscriptions []models.Subscription `json:"subscriptions"`
	Count         int                   `json:"count"`
}

// ListSubscriptions handles GET /api/users/{username}/subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	userID, err := h.store.GetOrCreateUser(r.Context(), username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	subs, err := h.store.ListSubscriptions(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	respondJSON(w, http.StatusOK, ListSubscriptionsResponse{Subscriptions: subs, Count: len(subs)})
}

// Unsubscribe handles DELETE /api/users/{username}/subscriptions/{subscriptionID}
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	subscriptionID := chi.URLParam(r, "subscriptionID")

	userID, err := h.store.GetOrCreateUser(r.Context(), username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	err = h.store.DeleteSubscription(r.Context(), userID, subscriptionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "subscription not found")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListUserAlertsResponse is the body for GET /api/users/{username}/alerts.
type ListUserAlertsResponse struct {
	Alerts []models.UserAlert `json:"alerts"`
	Count  int                `json:"count"`
}

// ListUserAlerts handles GET /api/users/{username}/alerts
func (h *Handler) ListUserAlerts(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	userID, err := h.store.GetOrCreateUser(r.Context(), username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	alerts, err := h.store.AlertsForUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	now := time.Now()
	for i := range alerts {
		alerts[i].Status = alerts[i].Alert.StatusAt(now)
	}
	if alerts == nil {
		alerts = []models.UserAlert{}
	}
	respondJSON(w, http.StatusOK, ListUserAlertsResponse{Alerts: alerts, Count: len(alerts)})
}

// ListStations handles GET /api/stations — the option list the front end's
// station dropdown is built from.
func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.store.ListStations(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list stations")
		return
	}
	if stations == nil {
		stations = []models.Station{}
	}
	respondJSON(w, http.StatusOK, stations)
}

// ListRoutes handles GET /api/routes
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.store.ListRoutes(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list routes")
		return
	}
	if routes == nil {
		routes = []models.Route{}
	}
	respondJSON(w, http.StatusOK, routes)
}

// Health handles GET /health with a store connectivity check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	})
}
