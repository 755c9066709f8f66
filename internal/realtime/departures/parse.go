package departures

import (
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// ParseFeed extracts one departure prediction per (trip, stop) from a
// trip-update feed snapshot. The feed header timestamp becomes the record's
// FeedTimestamp, which the store uses to decide "newer" during
// reconciliation; when the header carries none, polledAt stands in.
func ParseFeed(feed *gtfs.FeedMessage, polledAt time.Time) []models.LiveDeparture {
	feedTS := polledAt
	if feed.Header != nil && feed.Header.Timestamp != nil {
		feedTS = time.Unix(int64(*feed.Header.Timestamp), 0).UTC()
	}

	var deps []models.LiveDeparture
	for _, entity := range feed.Entity {
		tu := entity.TripUpdate
		if tu == nil || tu.Trip == nil || tu.Trip.TripId == nil {
			continue
		}

		tripID := *tu.Trip.TripId
		routeID := ""
		if tu.Trip.RouteId != nil {
			routeID = *tu.Trip.RouteId
		}

		for _, stu := range tu.StopTimeUpdate {
			if stu.StopId == nil {
				continue
			}

			// Departure time preferred; arrival stands in for terminal
			// stops that only report arrivals.
			var predicted *time.Time
			if stu.Departure != nil && stu.Departure.Time != nil {
				t := time.Unix(*stu.Departure.Time, 0).UTC()
				predicted = &t
			} else if stu.Arrival != nil && stu.Arrival.Time != nil {
				t := time.Unix(*stu.Arrival.Time, 0).UTC()
				predicted = &t
			}
			if predicted == nil {
				continue
			}

			deps = append(deps, models.LiveDeparture{
				TripID:             tripID,
				StopID:             *stu.StopId,
				RouteID:            routeID,
				PredictedDeparture: *predicted,
				FeedTimestamp:      feedTS,
				PolledAt:           polledAt,
			})
		}
	}
	return deps
}
