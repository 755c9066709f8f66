// Package dispatch decides, once per (subscription, alert) pair, that a user
// should be notified about an alert, and hands the intent to a Notifier.
//
// The decision is durable: notification_log's primary key is the dedup gate,
// so re-sighting an alert across any number of poll cycles never produces a
// second intent for the same pair. Delivery itself is best-effort and
// external; a failed delivery does not undo the recorded decision.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
	"github.com/bhuvana-manjunath/NextRide/internal/store"
)

// Dispatcher runs after each alerts poll cycle.
type Dispatcher struct {
	store    store.Store
	notifier Notifier

	now func() time.Time
}

// NewDispatcher creates a dispatcher emitting through notifier.
func NewDispatcher(st store.Store, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		store:    st,
		notifier: notifier,
		now:      time.Now,
	}
}

// Dispatch computes the newly relevant (subscription, alert) pairs and emits
// one intent each. The emit happens before the record is written, so a crash
// between the two at worst repeats a notification on the next cycle — never
// silently loses one. The unique-key insert suppresses the duplicate send on
// every later cycle.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	alerts, err := d.store.ActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	subs, err := d.store.AllSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	alertIDs := make([]string, 0, len(alerts))
	for _, a := range alerts {
		alertIDs = append(alertIDs, a.AlertID)
	}
	notified, err := d.store.NotifiedPairs(ctx, alertIDs)
	if err != nil {
		return fmt.Errorf("failed to load notification log: %w", err)
	}

	emitted := 0
	for _, sub := range subs {
		for i := range alerts {
			alert := &alerts[i]
			if !sub.Matches(alert) {
				continue
			}
			key := models.NotificationKey{SubscriptionID: sub.SubscriptionID, AlertID: alert.AlertID}
			if notified[key] {
				continue
			}

			if err := d.notifier.Notify(ctx, intentFor(sub, *alert)); err != nil {
				// Dispatch decided; delivery is the external mechanism's
				// problem. Record anyway.
				log.Printf("Dispatch: delivery failed for (%s, %s): %v",
					sub.SubscriptionID, alert.AlertID, err)
			}

			inserted, err := d.store.RecordNotification(ctx, sub.SubscriptionID, alert.AlertID, d.now().UTC())
			if err != nil {
				return fmt.Errorf("failed to record notification (%s, %s): %w",
					sub.SubscriptionID, alert.AlertID, err)
			}
			if inserted {
				emitted++
			}
		}
	}

	if emitted > 0 {
		log.Printf("Dispatch: emitted %d notifications for %d active alerts", emitted, len(alerts))
	}
	return nil
}
