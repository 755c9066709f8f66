// Package alerts polls the service-alerts feed and reconciles the alert
// table: sighted ids are upserted, absent ids are marked inactive, elapsed
// periods are expired.
package alerts

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/config"
	"github.com/bhuvana-manjunath/NextRide/internal/realtime"
	"github.com/bhuvana-manjunath/NextRide/internal/store"
)

// Poller runs one alerts fetch-parse-reconcile cycle per Poll call.
type Poller struct {
	store  store.Store
	client *realtime.Client
	url    string

	now func() time.Time
}

// NewPoller creates an alerts poller over the configured alerts feed.
func NewPoller(st store.Store, cfg *config.Config) *Poller {
	return &Poller{
		store:  st,
		client: realtime.NewClient(cfg.FetchTimeout, cfg.FeedAPIKey),
		url:    cfg.AlertsURL,
		now:    time.Now,
	}
}

// Poll runs one cycle. On a fetch or parse failure the stored alert state is
// left untouched (absence of a fetch is not absence from the feed).
func (p *Poller) Poll(ctx context.Context) error {
	now := p.now().UTC()

	feed, err := p.client.Fetch(ctx, p.url)
	if err != nil {
		return fmt.Errorf("failed to fetch alerts feed: %w", err)
	}

	parsed := ParseFeed(feed, now)

	if err := p.store.UpsertAlerts(ctx, parsed); err != nil {
		return fmt.Errorf("failed to reconcile alerts: %w", err)
	}

	activeIDs := make([]string, 0, len(parsed))
	for _, a := range parsed {
		activeIDs = append(activeIDs, a.AlertID)
	}
	resolved, err := p.store.MarkInactiveAlerts(ctx, activeIDs, now)
	if err != nil {
		return fmt.Errorf("failed to mark absent alerts inactive: %w", err)
	}

	expired, err := p.store.ExpireElapsedAlerts(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to expire elapsed alerts: %w", err)
	}

	log.Printf("Alerts: reconciled %d alerts (%d resolved, %d expired)", len(parsed), resolved, expired)
	return nil
}
