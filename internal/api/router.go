package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter wires the command surface routes.
func NewRouter(h *Handler, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Get("/api/stations", h.ListStations)
	r.Get("/api/routes", h.ListRoutes)
	r.Get("/api/departures/{stationID}", h.GetDepartures)

	r.Route("/api/users/{username}", func(r chi.Router) {
		r.Get("/subscriptions", h.ListSubscriptions)
		r.Post("/subscriptions", h.Subscribe)
		r.Delete("/subscriptions/{subscriptionID}", h.Unsubscribe)
		r.Get("/alerts", h.ListUserAlerts)
	})

	return r
}
