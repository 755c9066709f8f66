package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// UpsertDepartures reconciles a poll cycle's predictions into rt_departures.
// A stored row is replaced only when the incoming feed timestamp is strictly
// newer, so a retried or out-of-order fetch can never regress the table.
func (s *SQLite) UpsertDepartures(ctx context.Context, deps []models.LiveDeparture) error {
	if len(deps) == 0 {
		return nil
	}

	tx, release, err := s.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer release()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rt_departures (trip_id, stop_id, route_id, predicted_departure_utc, feed_timestamp_utc, polled_at_utc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (trip_id, stop_id) DO UPDATE SET
			route_id = excluded.route_id,
			predicted_departure_utc = excluded.predicted_departure_utc,
			feed_timestamp_utc = excluded.feed_timestamp_utc,
			polled_at_utc = excluded.polled_at_utc
		WHERE excluded.feed_timestamp_utc > rt_departures.feed_timestamp_utc
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare departure statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range deps {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("invalid departure %s/%s: %w", d.TripID, d.StopID, err)
		}
		_, err := stmt.ExecContext(ctx,
			d.TripID, d.StopID, d.RouteID,
			fmtTime(d.PredictedDeparture), fmtTime(d.FeedTimestamp), fmtTime(d.PolledAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert departure %s/%s: %w", d.TripID, d.StopID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit departures: %w", err)
	}
	return nil
}

// PruneDepartures deletes predictions whose departure passed before the
// cutoff (now minus the grace window), bounding table growth.
func (s *SQLite) PruneDepartures(ctx context.Context, olderThan time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM rt_departures WHERE predicted_departure_utc < ?",
		fmtTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune departures: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LiveDepartures returns predictions at a stop departing after the given
// time, soonest first. routeID narrows to one route when non-empty.
func (s *SQLite) LiveDepartures(ctx context.Context, stopID, routeID string, after time.Time) ([]models.LiveDeparture, error) {
	query := `
		SELECT trip_id, stop_id, route_id, predicted_departure_utc, feed_timestamp_utc, polled_at_utc
		FROM rt_departures
		WHERE stop_id = ? AND predicted_departure_utc > ?
	`
	args := []interface{}{stopID, fmtTime(after)}
	if routeID != "" {
		query += " AND route_id = ?"
		args = append(args, routeID)
	}
	query += " ORDER BY predicted_departure_utc ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query live departures: %w", err)
	}
	defer rows.Close()

	var deps []models.LiveDeparture
	for rows.Next() {
		var d models.LiveDeparture
		var predicted, feedTS, polledAt string
		if err := rows.Scan(&d.TripID, &d.StopID, &d.RouteID, &predicted, &feedTS, &polledAt); err != nil {
			return nil, fmt.Errorf("failed to scan departure: %w", err)
		}
		d.PredictedDeparture = parseTime(predicted)
		d.FeedTimestamp = parseTime(feedTS)
		d.PolledAt = parseTime(polledAt)
		deps = append(deps, d)
	}
	return deps, rows.Err()
}
