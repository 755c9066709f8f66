package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// UpsertDepartures mirrors the SQLite reconciliation rule: replace only when
// the incoming feed timestamp is strictly newer.
func (p *Postgres) UpsertDepartures(ctx context.Context, deps []models.LiveDeparture) error {
	if len(deps) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range deps {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("invalid departure %s/%s: %w", d.TripID, d.StopID, err)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO rt_departures (trip_id, stop_id, route_id, predicted_departure_utc, feed_timestamp_utc, polled_at_utc)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (trip_id, stop_id) DO UPDATE SET
				route_id = excluded.route_id,
				predicted_departure_utc = excluded.predicted_departure_utc,
				feed_timestamp_utc = excluded.feed_timestamp_utc,
				polled_at_utc = excluded.polled_at_utc
			WHERE excluded.feed_timestamp_utc > rt_departures.feed_timestamp_utc
		`, d.TripID, d.StopID, d.RouteID, d.PredictedDeparture.UTC(), d.FeedTimestamp.UTC(), d.PolledAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert departure %s/%s: %w", d.TripID, d.StopID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit departures: %w", err)
	}
	return nil
}

// PruneDepartures deletes predictions departed before the cutoff.
func (p *Postgres) PruneDepartures(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		"DELETE FROM rt_departures WHERE predicted_departure_utc < $1", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune departures: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LiveDepartures returns predictions at a stop after the given time.
func (p *Postgres) LiveDepartures(ctx context.Context, stopID, routeID string, after time.Time) ([]models.LiveDeparture, error) {
	query := `
		SELECT trip_id, stop_id, route_id, predicted_departure_utc, feed_timestamp_utc, polled_at_utc
		FROM rt_departures
		WHERE stop_id = $1 AND predicted_departure_utc > $2
	`
	args := []interface{}{stopID, after.UTC()}
	if routeID != "" {
		query += " AND route_id = $3"
		args = append(args, routeID)
	}
	query += " ORDER BY predicted_departure_utc ASC"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query live departures: %w", err)
	}
	defer rows.Close()

	var deps []models.LiveDeparture
	for rows.Next() {
		var d models.LiveDeparture
		if err := rows.Scan(&d.TripID, &d.StopID, &d.RouteID, &d.PredictedDeparture, &d.FeedTimestamp, &d.PolledAt); err != nil {
			return nil, fmt.Errorf("failed to scan departure: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}
