package store

import (
	"context"
	"fmt"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// ReplaceSchedule swaps in a fresh static snapshot in one transaction.
func (p *Postgres) ReplaceSchedule(ctx context.Context, snap *ScheduleSnapshot) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"stop_times", "trips", "routes", "stations"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, st := range snap.Stations {
		if _, err := tx.Exec(ctx,
			"INSERT INTO stations (stop_id, stop_name, lat, lon) VALUES ($1, $2, $3, $4)",
			st.StopID, st.StopName, st.Lat, st.Lon,
		); err != nil {
			return fmt.Errorf("failed to insert station %s: %w", st.StopID, err)
		}
	}
	for _, r := range snap.Routes {
		if _, err := tx.Exec(ctx,
			"INSERT INTO routes (route_id, route_short_name, route_long_name) VALUES ($1, $2, $3)",
			r.RouteID, r.ShortName, r.LongName,
		); err != nil {
			return fmt.Errorf("failed to insert route %s: %w", r.RouteID, err)
		}
	}
	for _, t := range snap.Trips {
		if _, err := tx.Exec(ctx,
			"INSERT INTO trips (trip_id, route_id, service_id, headsign, direction_id) VALUES ($1, $2, $3, $4, $5)",
			t.TripID, t.RouteID, t.ServiceID, t.Headsign, t.DirectionID,
		); err != nil {
			return fmt.Errorf("failed to insert trip %s: %w", t.TripID, err)
		}
	}
	for _, st := range snap.StopTimes {
		if _, err := tx.Exec(ctx,
			"INSERT INTO stop_times (trip_id, stop_sequence, stop_id, departure_seconds) VALUES ($1, $2, $3, $4)",
			st.TripID, st.StopSequence, st.StopID, st.DepartureSeconds,
		); err != nil {
			return fmt.Errorf("failed to insert stop_time %s/%d: %w", st.TripID, st.StopSequence, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit schedule snapshot: %w", err)
	}
	return nil
}

// StationExists reports whether the stop id is in the schedule snapshot.
func (p *Postgres) StationExists(ctx context.Context, stopID string) (bool, error) {
	var n int
	err := p.pool.QueryRow(ctx, "SELECT COUNT(1) FROM stations WHERE stop_id = $1", stopID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check station: %w", err)
	}
	return n > 0, nil
}

// RouteExists reports whether the route id is in the schedule snapshot.
func (p *Postgres) RouteExists(ctx context.Context, routeID string) (bool, error) {
	var n int
	err := p.pool.QueryRow(ctx, "SELECT COUNT(1) FROM routes WHERE route_id = $1", routeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check route: %w", err)
	}
	return n > 0, nil
}

// RouteServesStation reports whether any trip on the route stops at the
// station.
func (p *Postgres) RouteServesStation(ctx context.Context, routeID, stopID string) (bool, error) {
	var n int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(1) FROM stop_times st
		JOIN trips t ON t.trip_id = st.trip_id
		WHERE st.stop_id = $1 AND t.route_id = $2
	`, stopID, routeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check route/station: %w", err)
	}
	return n > 0, nil
}

// ListStations returns all stations ordered by name.
func (p *Postgres) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT stop_id, stop_name, lat, lon FROM stations ORDER BY stop_name, stop_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.StopID, &st.StopName, &st.Lat, &st.Lon); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// ListRoutes returns all routes ordered by id.
func (p *Postgres) ListRoutes(ctx context.Context) ([]models.Route, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT route_id, route_short_name, route_long_name FROM routes ORDER BY route_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(&r.RouteID, &r.ShortName, &r.LongName); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// ScheduledStopTimes returns static departures at a stop, optionally narrowed
// to one route.
func (p *Postgres) ScheduledStopTimes(ctx context.Context, stopID, routeID string) ([]models.ScheduledStopTime, error) {
	query := `
		SELECT st.trip_id, t.route_id, st.stop_id, st.stop_sequence, st.departure_seconds
		FROM stop_times st
		JOIN trips t ON t.trip_id = st.trip_id
		WHERE st.stop_id = $1
	`
	args := []interface{}{stopID}
	if routeID != "" {
		query += " AND t.route_id = $2"
		args = append(args, routeID)
	}
	query += " ORDER BY st.departure_seconds ASC"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stop times: %w", err)
	}
	defer rows.Close()

	var out []models.ScheduledStopTime
	for rows.Next() {
		var st models.ScheduledStopTime
		if err := rows.Scan(&st.TripID, &st.RouteID, &st.StopID, &st.StopSequence, &st.DepartureSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan stop time: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
