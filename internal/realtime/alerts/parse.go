package alerts

import (
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// ParseFeed extracts service alerts from an alerts feed snapshot. The
// feed-assigned entity id keys the alert across cycles.
func ParseFeed(feed *gtfs.FeedMessage, seenAt time.Time) []models.Alert {
	var alerts []models.Alert
	for _, entity := range feed.Entity {
		if entity.Alert == nil || entity.Id == nil {
			continue
		}

		a := entity.Alert
		parsed := models.Alert{
			AlertID:         *entity.Id,
			HeaderText:      translatedText(a.HeaderText),
			DescriptionText: translatedText(a.DescriptionText),
			IsActive:        true,
			LastSeenAt:      seenAt,
		}

		// First declared period wins when the feed lists several.
		if len(a.ActivePeriod) > 0 {
			period := a.ActivePeriod[0]
			if period.Start != nil {
				t := time.Unix(int64(*period.Start), 0).UTC()
				parsed.ActivePeriodStart = &t
			}
			if period.End != nil {
				t := time.Unix(int64(*period.End), 0).UTC()
				parsed.ActivePeriodEnd = &t
			}
		}

		for _, ie := range a.InformedEntity {
			var e models.AlertEntity
			if ie.RouteId != nil {
				e.RouteID = *ie.RouteId
			}
			if ie.StopId != nil {
				e.StopID = *ie.StopId
			}
			if e.RouteID == "" && e.StopID == "" {
				continue
			}
			parsed.Entities = append(parsed.Entities, e)
		}

		alerts = append(alerts, parsed)
	}
	return alerts
}

// translatedText picks the English translation when present, otherwise the
// first one.
func translatedText(ts *gtfs.TranslatedString) string {
	if ts == nil || len(ts.Translation) == 0 {
		return ""
	}
	for _, tr := range ts.Translation {
		if tr.Text == nil {
			continue
		}
		if tr.Language != nil && *tr.Language == "en" {
			return *tr.Text
		}
	}
	for _, tr := range ts.Translation {
		if tr.Text != nil {
			return *tr.Text
		}
	}
	return ""
}
