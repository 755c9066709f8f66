// Package departures polls the trip-update feeds and reconciles departure
// predictions into the store.
package departures

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/config"
	"github.com/bhuvana-manjunath/NextRide/internal/models"
	"github.com/bhuvana-manjunath/NextRide/internal/realtime"
	"github.com/bhuvana-manjunath/NextRide/internal/store"
)

// Poller runs one fetch-parse-reconcile cycle per Poll call. Cycles are
// driven sequentially by the caller's ticker loop, so reconciliation of two
// fetches never interleaves.
type Poller struct {
	store  store.Store
	client *realtime.Client
	urls   []string
	grace  time.Duration

	now func() time.Time
}

// NewPoller creates a departure poller over the configured trip-update feeds.
func NewPoller(st store.Store, cfg *config.Config) *Poller {
	return &Poller{
		store:  st,
		client: realtime.NewClient(cfg.FetchTimeout, cfg.FeedAPIKey),
		urls:   cfg.TripUpdateURLs,
		grace:  cfg.GraceWindow,
		now:    time.Now,
	}
}

// Poll runs one cycle: prune departed predictions, then fetch every
// configured feed and upsert its tuples. A failed fetch skips that feed for
// this cycle; the cycle fails only when no feed could be read at all.
func (p *Poller) Poll(ctx context.Context) error {
	now := p.now().UTC()

	pruned, err := p.store.PruneDepartures(ctx, now.Add(-p.grace))
	if err != nil {
		return fmt.Errorf("failed to prune departures: %w", err)
	}
	if pruned > 0 {
		log.Printf("Departures: pruned %d departed predictions", pruned)
	}

	var all []models.LiveDeparture
	fetched := 0
	for _, url := range p.urls {
		feed, err := p.client.Fetch(ctx, url)
		if err != nil {
			log.Printf("Departures: failed to fetch %s (skipping this cycle): %v", url, err)
			continue
		}
		fetched++
		all = append(all, ParseFeed(feed, now)...)
	}

	if fetched == 0 && len(p.urls) > 0 {
		return fmt.Errorf("all %d trip-update feeds failed", len(p.urls))
	}

	if err := p.store.UpsertDepartures(ctx, all); err != nil {
		return fmt.Errorf("failed to reconcile departures: %w", err)
	}

	log.Printf("Departures: reconciled %d predictions from %d feeds", len(all), fetched)
	return nil
}
