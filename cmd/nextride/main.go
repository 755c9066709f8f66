package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bhuvana-manjunath/NextRide/internal/api"
	"github.com/bhuvana-manjunath/NextRide/internal/config"
	"github.com/bhuvana-manjunath/NextRide/internal/dispatch"
	"github.com/bhuvana-manjunath/NextRide/internal/query"
	"github.com/bhuvana-manjunath/NextRide/internal/realtime/alerts"
	"github.com/bhuvana-manjunath/NextRide/internal/realtime/departures"
	"github.com/bhuvana-manjunath/NextRide/internal/store"
)

func main() {
	log.Println("Starting NextRide service...")

	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.FeedsFile != "" {
		if err := config.LoadFeeds(cfg, cfg.FeedsFile); err != nil {
			log.Fatalf("Failed to load feeds file: %v", err)
		}
	}
	log.Printf("Config loaded: departures every %v, alerts every %v, %d trip-update feeds",
		cfg.DepartureInterval, cfg.AlertsInterval, len(cfg.TripUpdateURLs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	var notifier dispatch.Notifier = dispatch.LogNotifier{}
	if cfg.NotifyWebhookURL != "" {
		notifier = dispatch.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.FetchTimeout)
		log.Printf("Notifications delivered to webhook %s", cfg.NotifyWebhookURL)
	}

	departurePoller := departures.NewPoller(st, cfg)
	alertsPoller := alerts.NewPoller(st, cfg)
	dispatcher := dispatch.NewDispatcher(st, notifier)

	// Departure polling loop. Cycles are strictly sequential: the next tick
	// is consumed only after the previous cycle finishes.
	go func() {
		if len(cfg.TripUpdateURLs) == 0 {
			log.Println("No trip-update feeds configured; departure poller idle")
			return
		}
		runCycle := func() {
			if err := departurePoller.Poll(ctx); err != nil {
				log.Printf("Departure poll error: %v", err)
			}
		}
		runCycle()

		ticker := time.NewTicker(cfg.DepartureInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCycle()
			case <-ctx.Done():
				log.Println("Departure polling loop stopped")
				return
			}
		}
	}()

	// Alerts polling loop; the dispatcher runs synchronously at the end of
	// every successful cycle.
	go func() {
		if cfg.AlertsURL == "" {
			log.Println("No alerts feed configured; alerts poller idle")
			return
		}
		runCycle := func() {
			if err := alertsPoller.Poll(ctx); err != nil {
				log.Printf("Alerts poll error: %v", err)
				return
			}
			if err := dispatcher.Dispatch(ctx); err != nil {
				log.Printf("Dispatch error: %v", err)
			}
		}
		runCycle()

		ticker := time.NewTicker(cfg.AlertsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCycle()
			case <-ctx.Done():
				log.Println("Alerts polling loop stopped")
				return
			}
		}
	}()

	handler := api.NewHandler(st, query.NewService(st))
	router := api.NewRouter(handler, []string{"*"})

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("Command surface listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}
