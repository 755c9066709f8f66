package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// UpsertAlerts mirrors the SQLite backend: refresh content in place, flip
// back to active, replace entities wholesale.
func (p *Postgres) UpsertAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range alerts {
		var start, end *time.Time
		if a.ActivePeriodStart != nil {
			t := a.ActivePeriodStart.UTC()
			start = &t
		}
		if a.ActivePeriodEnd != nil {
			t := a.ActivePeriodEnd.UTC()
			end = &t
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO rt_alerts (alert_id, header_text, description_text,
				active_period_start, active_period_end, is_active, first_seen_at, last_seen_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
			ON CONFLICT (alert_id) DO UPDATE SET
				header_text = excluded.header_text,
				description_text = excluded.description_text,
				active_period_start = excluded.active_period_start,
				active_period_end = excluded.active_period_end,
				is_active = TRUE,
				last_seen_at = excluded.last_seen_at,
				resolved_at = NULL
		`, a.AlertID, a.HeaderText, a.DescriptionText, start, end, a.LastSeenAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert alert %s: %w", a.AlertID, err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM rt_alert_entities WHERE alert_id = $1", a.AlertID); err != nil {
			return fmt.Errorf("failed to clear entities for alert %s: %w", a.AlertID, err)
		}
		for _, e := range a.Entities {
			if _, err := tx.Exec(ctx,
				"INSERT INTO rt_alert_entities (alert_id, route_id, stop_id) VALUES ($1, $2, $3)",
				a.AlertID, e.RouteID, e.StopID,
			); err != nil {
				return fmt.Errorf("failed to insert entity for alert %s: %w", a.AlertID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}
	return nil
}

// MarkInactiveAlerts deactivates active alerts absent from the current fetch.
func (p *Postgres) MarkInactiveAlerts(ctx context.Context, activeIDs []string, now time.Time) (int64, error) {
	if len(activeIDs) == 0 {
		tag, err := p.pool.Exec(ctx,
			"UPDATE rt_alerts SET is_active = FALSE, resolved_at = $1 WHERE is_active", now.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to mark alerts inactive: %w", err)
		}
		return tag.RowsAffected(), nil
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE rt_alerts SET is_active = FALSE, resolved_at = $1
		WHERE is_active AND alert_id <> ALL($2)
	`, now.UTC(), activeIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to mark alerts inactive: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireElapsedAlerts deactivates alerts whose active period has passed.
func (p *Postgres) ExpireElapsedAlerts(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE rt_alerts SET is_active = FALSE, resolved_at = $1
		WHERE is_active AND active_period_end IS NOT NULL AND active_period_end < $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ActiveAlerts returns all active alerts with their entities.
func (p *Postgres) ActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT alert_id, header_text, description_text, active_period_start, active_period_end,
			is_active, first_seen_at, last_seen_at, resolved_at
		FROM rt_alerts
		WHERE is_active
		ORDER BY alert_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	byID := make(map[string]int)
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.AlertID, &a.HeaderText, &a.DescriptionText,
			&a.ActivePeriodStart, &a.ActivePeriodEnd, &a.IsActive,
			&a.FirstSeenAt, &a.LastSeenAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		byID[a.AlertID] = len(alerts)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return alerts, nil
	}

	erows, err := p.pool.Query(ctx, "SELECT alert_id, route_id, stop_id FROM rt_alert_entities")
	if err != nil {
		return nil, fmt.Errorf("failed to query alert entities: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		var alertID string
		var e models.AlertEntity
		if err := erows.Scan(&alertID, &e.RouteID, &e.StopID); err != nil {
			return nil, fmt.Errorf("failed to scan alert entity: %w", err)
		}
		if i, ok := byID[alertID]; ok {
			alerts[i].Entities = append(alerts[i].Entities, e)
		}
	}
	return alerts, erows.Err()
}
