// Command import-gtfs loads a static GTFS zip into the schedule tables,
// replacing the previous snapshot wholesale. The realtime and subscription
// tables are untouched.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/bhuvana-manjunath/NextRide/internal/config"
	"github.com/bhuvana-manjunath/NextRide/internal/static/gtfs"
	"github.com/bhuvana-manjunath/NextRide/internal/store"
)

func main() {
	zipPath := flag.String("zip", "", "path to the GTFS zip file")
	flag.Parse()

	if *zipPath == "" {
		log.Fatal("usage: import-gtfs -zip <gtfs.zip>")
	}

	_ = godotenv.Load()
	cfg := config.Load()

	snap, err := gtfs.Parse(*zipPath)
	if err != nil {
		log.Fatalf("Failed to parse GTFS zip: %v", err)
	}
	log.Printf("Parsed %d stations, %d routes, %d trips, %d stop times",
		len(snap.Stations), len(snap.Routes), len(snap.Trips), len(snap.StopTimes))

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.ReplaceSchedule(ctx, snap); err != nil {
		log.Fatalf("Failed to replace schedule snapshot: %v", err)
	}
	log.Println("Schedule snapshot replaced")
}
