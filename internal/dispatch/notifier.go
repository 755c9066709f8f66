package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// Intent is one notification handed to the delivery mechanism: a user should
// be told about an alert because of one of their subscriptions.
type Intent struct {
	UserID          int64      `json:"userId"`
	SubscriptionID  string     `json:"subscriptionId"`
	TargetKind      string     `json:"targetKind"`
	TargetID        string     `json:"targetId"`
	AlertID         string     `json:"alertId"`
	HeaderText      string     `json:"headerText"`
	DescriptionText string     `json:"descriptionText"`
	PeriodStart     *time.Time `json:"periodStart,omitempty"`
	PeriodEnd       *time.Time `json:"periodEnd,omitempty"`
}

// Notifier delivers notification intents. Delivery is best-effort: a failed
// delivery does not undo the dispatch decision.
type Notifier interface {
	Notify(ctx context.Context, intent Intent) error
}

// LogNotifier writes intents to the log. Default when no webhook is
// configured.
type LogNotifier struct{}

// Notify logs the intent.
func (LogNotifier) Notify(_ context.Context, intent Intent) error {
	log.Printf("Notify user %d: [%s] %s (subscription %s, %s %s)",
		intent.UserID, intent.AlertID, intent.HeaderText,
		intent.SubscriptionID, intent.TargetKind, intent.TargetID)
	return nil
}

// WebhookNotifier POSTs intents as JSON to the chat sender's endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier returns a notifier posting to url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify posts the intent. Non-2xx responses are delivery failures.
func (n *WebhookNotifier) Notify(ctx context.Context, intent Intent) error {
	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// intentFor builds the delivery payload for one matched pair.
func intentFor(sub models.Subscription, alert models.Alert) Intent {
	return Intent{
		UserID:          sub.UserID,
		SubscriptionID:  sub.SubscriptionID,
		TargetKind:      sub.TargetKind,
		TargetID:        sub.TargetID,
		AlertID:         alert.AlertID,
		HeaderText:      alert.HeaderText,
		DescriptionText: alert.DescriptionText,
		PeriodStart:     alert.ActivePeriodStart,
		PeriodEnd:       alert.ActivePeriodEnd,
	}
}
