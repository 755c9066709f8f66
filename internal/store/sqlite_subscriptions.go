package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// GetOrCreateUser returns the user id for username, creating the row on
// first use.
func (s *SQLite) GetOrCreateUser(ctx context.Context, username string) (int64, error) {
	var id int64
	err := s.conn.QueryRowContext(ctx, "SELECT user_id FROM users WHERE username = ?", username).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up user: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Another caller may have inserted between the select and here; the
	// unique index makes the insert a no-op in that case.
	if _, err := s.conn.ExecContext(ctx,
		"INSERT INTO users (username) VALUES (?) ON CONFLICT (username) DO NOTHING", username,
	); err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	if err := s.conn.QueryRowContext(ctx, "SELECT user_id FROM users WHERE username = ?", username).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read back user: %w", err)
	}
	return id, nil
}

// CreateSubscription validates the target against the schedule snapshot and
// inserts idempotently: subscribing twice to the same target returns the
// existing subscription instead of an error.
func (s *SQLite) CreateSubscription(ctx context.Context, userID int64, kind, targetID string) (models.Subscription, error) {
	var sub models.Subscription

	if !models.ValidTargetKind(kind) {
		return sub, ErrInvalidTarget
	}

	var exists bool
	var err error
	switch kind {
	case models.TargetStation:
		exists, err = s.StationExists(ctx, targetID)
	case models.TargetRoute:
		exists, err = s.RouteExists(ctx, targetID)
	}
	if err != nil {
		return sub, err
	}
	if !exists {
		return sub, ErrInvalidTarget
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO subscriptions (subscription_id, user_id, target_kind, target_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, target_kind, target_id) DO NOTHING
	`, uuid.New().String(), userID, kind, targetID, fmtTime(now))
	if err != nil {
		return sub, fmt.Errorf("failed to create subscription: %w", err)
	}

	var created string
	err = s.conn.QueryRowContext(ctx, `
		SELECT subscription_id, user_id, target_kind, target_id, created_at
		FROM subscriptions WHERE user_id = ? AND target_kind = ? AND target_id = ?
	`, userID, kind, targetID).Scan(&sub.SubscriptionID, &sub.UserID, &sub.TargetKind, &sub.TargetID, &created)
	if err != nil {
		return sub, fmt.Errorf("failed to read back subscription: %w", err)
	}
	sub.CreatedAt = parseTime(created)
	return sub, nil
}

// DeleteSubscription removes one subscription owned by userID. ErrNotFound
// when it does not exist or belongs to someone else.
func (s *SQLite) DeleteSubscription(ctx context.Context, userID int64, subscriptionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.conn.ExecContext(ctx,
		"DELETE FROM subscriptions WHERE subscription_id = ? AND user_id = ?",
		subscriptionID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSubscriptions returns a user's subscriptions in creation order.
func (s *SQLite) ListSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error) {
	return s.querySubscriptions(ctx, `
		SELECT subscription_id, user_id, target_kind, target_id, created_at
		FROM subscriptions WHERE user_id = ?
		ORDER BY created_at ASC, subscription_id ASC
	`, userID)
}

// AllSubscriptions returns every subscription, for the dispatcher's matching
// pass.
func (s *SQLite) AllSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	return s.querySubscriptions(ctx, `
		SELECT subscription_id, user_id, target_kind, target_id, created_at
		FROM subscriptions
		ORDER BY created_at ASC, subscription_id ASC
	`)
}

func (s *SQLite) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]models.Subscription, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		var created string
		if err := rows.Scan(&sub.SubscriptionID, &sub.UserID, &sub.TargetKind, &sub.TargetID, &created); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		sub.CreatedAt = parseTime(created)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// AlertsForUser returns active alerts whose affected entities directly match
// one of the user's subscriptions.
func (s *SQLite) AlertsForUser(ctx context.Context, userID int64) ([]models.UserAlert, error) {
	rows, err := s.conn.QueryContext(ctx, `
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
		WHERE a.is_active = 1 AND sub.user_id = ?
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
		var start, end, resolved *string
		var firstSeen, lastSeen string
		if err := rows.Scan(&a.AlertID, &a.HeaderText, &a.DescriptionText, &start, &end,
			&a.IsActive, &firstSeen, &lastSeen, &resolved, &ua.TargetKind, &ua.TargetID); err != nil {
			return nil, fmt.Errorf("failed to scan user alert: %w", err)
		}
		a.ActivePeriodStart = parseTimePtr(start)
		a.ActivePeriodEnd = parseTimePtr(end)
		a.FirstSeenAt = parseTime(firstSeen)
		a.LastSeenAt = parseTime(lastSeen)
		a.ResolvedAt = parseTimePtr(resolved)
		ua.Alert = a
		out = append(out, ua)
	}
	return out, rows.Err()
}

// RecordNotification inserts dispatch evidence for one (subscription, alert)
// pair. Returns false when the pair was already recorded; the primary key is
// the exactly-once gate.
func (s *SQLite) RecordNotification(ctx context.Context, subscriptionID, alertID string, sentAt time.Time) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO notification_log (subscription_id, alert_id, sent_at)
		VALUES (?, ?, ?)
		ON CONFLICT (subscription_id, alert_id) DO NOTHING
	`, subscriptionID, alertID, fmtTime(sentAt))
	if err != nil {
		return false, fmt.Errorf("failed to record notification: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// NotifiedPairs returns the already-recorded (subscription, alert) pairs for
// the given alert ids.
func (s *SQLite) NotifiedPairs(ctx context.Context, alertIDs []string) (map[models.NotificationKey]bool, error) {
	pairs := make(map[models.NotificationKey]bool)
	if len(alertIDs) == 0 {
		return pairs, nil
	}

	placeholders := make([]string, len(alertIDs))
	args := make([]interface{}, len(alertIDs))
	for i, id := range alertIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		"SELECT subscription_id, alert_id FROM notification_log WHERE alert_id IN (%s)",
		strings.Join(placeholders, ","),
	)
	rows, err := s.conn.QueryContext(ctx, query, args...)
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
