// Package gtfs parses a static GTFS zip into a schedule snapshot for the
// importer. Only the files the core needs are read: stops, routes, trips and
// stop_times.
package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
	"github.com/bhuvana-manjunath/NextRide/internal/store"
)

// Parse reads a GTFS zip and returns the schedule snapshot.
func Parse(zipPath string) (*store.ScheduleSnapshot, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	files := make(map[string]*zip.File)
	for _, f := range r.File {
		files[f.Name] = f
	}

	snap := &store.ScheduleSnapshot{}

	f, ok := files["stops.txt"]
	if !ok {
		return nil, fmt.Errorf("stops.txt missing from %s", zipPath)
	}
	if snap.Stations, err = parseStops(f); err != nil {
		return nil, fmt.Errorf("failed to parse stops.txt: %w", err)
	}

	f, ok = files["routes.txt"]
	if !ok {
		return nil, fmt.Errorf("routes.txt missing from %s", zipPath)
	}
	if snap.Routes, err = parseRoutes(f); err != nil {
		return nil, fmt.Errorf("failed to parse routes.txt: %w", err)
	}

	f, ok = files["trips.txt"]
	if !ok {
		return nil, fmt.Errorf("trips.txt missing from %s", zipPath)
	}
	if snap.Trips, err = parseTrips(f); err != nil {
		return nil, fmt.Errorf("failed to parse trips.txt: %w", err)
	}

	f, ok = files["stop_times.txt"]
	if !ok {
		return nil, fmt.Errorf("stop_times.txt missing from %s", zipPath)
	}
	if snap.StopTimes, err = parseStopTimes(f); err != nil {
		return nil, fmt.Errorf("failed to parse stop_times.txt: %w", err)
	}

	return snap, nil
}

// readCSV opens a zipped CSV and returns header indices plus a row iterator.
func readCSV(f *zip.File, fn func(get func(col string) string) error) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return err
	}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if err := fn(get); err != nil {
			return err
		}
	}
	return nil
}

func parseStops(f *zip.File) ([]models.Station, error) {
	var stations []models.Station
	err := readCSV(f, func(get func(string) string) error {
		id := get("stop_id")
		if id == "" {
			return nil
		}
		st := models.Station{StopID: id, StopName: get("stop_name")}
		if lat, err := strconv.ParseFloat(get("stop_lat"), 64); err == nil {
			st.Lat = &lat
		}
		if lon, err := strconv.ParseFloat(get("stop_lon"), 64); err == nil {
			st.Lon = &lon
		}
		stations = append(stations, st)
		return nil
	})
	return stations, err
}

func parseRoutes(f *zip.File) ([]models.Route, error) {
	var routes []models.Route
	err := readCSV(f, func(get func(string) string) error {
		id := get("route_id")
		if id == "" {
			return nil
		}
		routes = append(routes, models.Route{
			RouteID:   id,
			ShortName: get("route_short_name"),
			LongName:  get("route_long_name"),
		})
		return nil
	})
	return routes, err
}

func parseTrips(f *zip.File) ([]models.Trip, error) {
	var trips []models.Trip
	err := readCSV(f, func(get func(string) string) error {
		id := get("trip_id")
		if id == "" {
			return nil
		}
		t := models.Trip{
			TripID:    id,
			RouteID:   get("route_id"),
			ServiceID: get("service_id"),
			Headsign:  get("trip_headsign"),
		}
		if d, err := strconv.Atoi(get("direction_id")); err == nil {
			t.DirectionID = d
		}
		trips = append(trips, t)
		return nil
	})
	return trips, err
}

func parseStopTimes(f *zip.File) ([]models.ScheduledStopTime, error) {
	var stopTimes []models.ScheduledStopTime
	skipped := 0
	err := readCSV(f, func(get func(string) string) error {
		tripID := get("trip_id")
		stopID := get("stop_id")
		if tripID == "" || stopID == "" {
			return nil
		}
		secs, err := ParseClock(get("departure_time"))
		if err != nil {
			skipped++
			return nil
		}
		st := models.ScheduledStopTime{
			TripID:           tripID,
			StopID:           stopID,
			DepartureSeconds: secs,
		}
		if seq, err := strconv.Atoi(get("stop_sequence")); err == nil {
			st.StopSequence = seq
		}
		stopTimes = append(stopTimes, st)
		return nil
	})
	if skipped > 0 {
		log.Printf("GTFS: skipped %d stop_times rows without a departure time", skipped)
	}
	return stopTimes, err
}

// ParseClock converts a GTFS HH:MM:SS clock to seconds after midnight.
// Hours past 24 are valid (over-midnight trips).
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	sec, err := strconv.Atoi(parts[2])
	if err != nil || sec > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*3600 + m*60 + sec, nil
}
