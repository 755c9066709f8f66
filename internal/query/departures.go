// Package query answers "next departures" questions by joining live
// predictions with the static schedule, preferring live data and falling
// back to scheduled times for trips without a prediction.
package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
	"github.com/bhuvana-manjunath/NextRide/internal/store"
)

// Caller errors, surfaced as typed failures to the command surface.
var (
	ErrUnknownStation         = errors.New("unknown station")
	ErrInvalidRouteForStation = errors.New("route does not serve station")
)

// DefaultLimit caps a departure board when the caller gives no limit.
const DefaultLimit = 10

// Service answers departure queries against the shared store.
type Service struct {
	store store.Store

	now func() time.Time
}

// NewService creates a departure query service.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// NextDepartures returns up to limit departures at stationID, soonest first.
// routeID, when non-empty, narrows to one route and must serve the station.
// Each entry carries its source: a live prediction when one exists for the
// (trip, stop), otherwise the next occurrence of the scheduled time.
func (s *Service) NextDepartures(ctx context.Context, stationID, routeID string, limit int) ([]models.Departure, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	exists, err := s.store.StationExists(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUnknownStation
	}

	if routeID != "" {
		serves, err := s.store.RouteServesStation(ctx, routeID, stationID)
		if err != nil {
			return nil, err
		}
		if !serves {
			return nil, ErrInvalidRouteForStation
		}
	}

	now := s.now()

	live, err := s.store.LiveDepartures(ctx, stationID, routeID, now)
	if err != nil {
		return nil, err
	}

	board := make([]models.Departure, 0, limit)
	havePrediction := make(map[string]bool, len(live))
	for _, d := range live {
		havePrediction[d.TripID] = true
		board = append(board, models.Departure{
			TripID:    d.TripID,
			RouteID:   d.RouteID,
			StopID:    d.StopID,
			Departure: d.PredictedDeparture,
			Source:    models.SourceLive,
		})
	}

	scheduled, err := s.store.ScheduledStopTimes(ctx, stationID, routeID)
	if err != nil {
		return nil, err
	}
	for _, st := range scheduled {
		if havePrediction[st.TripID] {
			continue
		}
		dep := nextOccurrence(st.DepartureSeconds, now)
		board = append(board, models.Departure{
			TripID:    st.TripID,
			RouteID:   st.RouteID,
			StopID:    st.StopID,
			Departure: dep,
			Source:    models.SourceScheduled,
		})
	}

	sort.Slice(board, func(i, j int) bool {
		if !board[i].Departure.Equal(board[j].Departure) {
			return board[i].Departure.Before(board[j].Departure)
		}
		return board[i].TripID < board[j].TripID
	})

	if len(board) > limit {
		board = board[:limit]
	}
	return board, nil
}

// nextOccurrence maps a GTFS departure clock (seconds after local midnight,
// possibly past 24:00:00 for over-midnight trips) to its next absolute time
// at or after now.
func nextOccurrence(departureSeconds int, now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dep := midnight.Add(time.Duration(departureSeconds) * time.Second)
	if dep.Before(now) {
		dep = dep.Add(24 * time.Hour)
	}
	return dep
}
