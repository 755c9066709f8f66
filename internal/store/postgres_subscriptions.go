package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// GetOrCreateUser returns the user id for username, creating it on first use.
func (p *Postgres) GetOrCreateUser(ctx context.Context, username string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, "SELECT user_id FROM users WHERE username = $1", username).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up user: %w", err)
	}

	if _, err := p.pool.Exec(ctx,
		"INSERT INTO users (username) VALUES ($1) ON CONFLICT (username) DO NOTHING", username,
	); err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	if err := p.pool.QueryRow(ctx, "SELECT user_id FROM users WHERE username = $1", username).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read back user: %w", err)
	}
	return id, nil
}

// CreateSubscription validates the target and inserts idempotently.
func (p *Postgres) CreateSubscription(ctx context.Context, userID int64, kind, targetID string) (models.Subscription, error) {
	var sub models.Subscription

	if !models.ValidTargetKind(kind) {
		return sub, ErrInvalidTarget
	}

	var exists bool
	var err error
	switch kind {
	case models.TargetStation:
		exists, err = p.StationExists(ctx, targetID)
	case models.TargetRoute:
		exists, err = p.RouteExists(ctx, targetID)
	}
	if err != nil {
		return sub, err
	}
	if !exists {
		return sub, ErrInvalidTarget
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO subscriptions (subscription_id, user_id, target_kind, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, target_kind, target_id) DO NOTHING
	`, uuid.New().String(), userID, kind, targetID, time.Now().UTC())
	if err != nil {
		return sub, fmt.Errorf("failed to create subscription: %w", err)
	}

	err = p.pool.QueryRow(ctx, `
		SELECT subscription_id, user_id, target_kind, target_id, created_at
		FROM subscriptions WHERE user_id = $1 AND target_kind = $2 AND target_id = $3
	`, userID, kind, targetID).Scan(&sub.SubscriptionID, &sub.UserID, &sub.TargetKind, &sub.TargetID, &sub.CreatedAt)
	if err != nil {
		return sub, fmt.Errorf("failed to read back subscription: %w", err)
	}
	return sub, nil
}

// DeleteSubscription removes one subscription owned by userID.
func (p *Postgres) DeleteSubscription(ctx context.Context, userID int64, subscriptionID string) error {
	tag, err := p.pool.Exec(ctx,
		"DELETE FROM subscriptions WHERE subscription_id = $1 AND user_id = $2",
		subscriptionID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSubscriptions returns a user's subscriptions in creation order.
func (p *Postgres) ListSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error) {
	return p.querySubscriptions(ctx, `
		SELECT subscription_id, user_id, target_kind, target_id, created_at
		FROM subscriptions WHERE user_id = $1
		ORDER BY created_at ASC, subscription_id ASC
	`, userID)
}

// AllSubscriptions returns every subscription.
func (p *Postgres) AllSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	return p.querySubscriptions(ctx, `
		SELECT subscription_id, user_id, target_kind, target_id, created_at
		FROM subscriptions
		ORDER BY created_at ASC, subscription_id ASC
	`)
}

func (p *Postgres) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]models.Subscription, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.SubscriptionID, &sub.UserID, &sub.TargetKind, &sub.TargetID, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// AlertsForUser returns active alerts matching the user's subscriptions.
func (p *Postgres) AlertsForUser(ctx context.Context, userID int64) ([]models.UserAlert, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT a.alert_id, a.header_text, a.description_text,
			a.active_period_start, a.active_period_end, a.is_active,
			a.first_seen_at, a.last_seen_at, a.resolved_at,
			sub.target_kind, sub.target_id
		FROM rt_alerts a
		JOIN rt_alert_entities e ON e.alert_id = a.alert_id
		JOIN subscriptions sub ON (
			(sub.target_kind = 'station' AND sub.target_id = e.stop_id)
			OR (sub.target_kind = 'route' AND sub.target_id = e.route_id)
		)
		WHERE a.is_active AND sub.user_id = $1
		ORDER BY sub.target_id, a.active_period_start ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user alerts: %w", err)
	}
	defer rows.Close()

	var out []models.UserAlert
	for rows.Next() {
		var ua models.UserAlert
		var a models.Alert
		if err := rows.Scan(&a.AlertID, &a.HeaderText, &a.DescriptionText,
			&a.ActivePeriodStart, &a.ActivePeriodEnd, &a.IsActive,
			&a.FirstSeenAt, &a.LastSeenAt, &a.ResolvedAt,
			&ua.TargetKind, &ua.TargetID); err != nil {
			return nil, fmt.Errorf("failed to scan user alert: %w", err)
		}
		ua.Alert = a
		out = append(out, ua)
	}
	return out, rows.Err()
}

// RecordNotification inserts dispatch evidence; false when already recorded.
func (p *Postgres) RecordNotification(ctx context.Context, subscriptionID, alertID string, sentAt time.Time) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO notification_log (subscription_id, alert_id, sent_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (subscription_id, alert_id) DO NOTHING
	`, subscriptionID, alertID, sentAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record notification: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// NotifiedPairs returns already-recorded pairs for the given alert ids.
func (p *Postgres) NotifiedPairs(ctx context.Context, alertIDs []string) (map[models.NotificationKey]bool, error) {
	pairs := make(map[models.NotificationKey]bool)
	if len(alertIDs) == 0 {
		return pairs, nil
	}

	rows, err := p.pool.Query(ctx,
		"SELECT subscription_id, alert_id FROM notification_log WHERE alert_id = ANY($1)", alertIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k models.NotificationKey
		if err := rows.Scan(&k.SubscriptionID, &k.AlertID); err != nil {
			return nil, fmt.Errorf("failed to scan notification pair: %w", err)
		}
		pairs[k] = true
	}
	return pairs, rows.Err()
}
