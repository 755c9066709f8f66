package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bhuvana-manjunath/NextRide/internal/models"
)

// UpsertAlerts inserts or refreshes every alert sighted in the current feed
// cycle. Re-sighting an id updates its content in place, flips it back to
// active and clears resolved_at; first_seen_at is preserved. Affected
// entities are replaced wholesale per alert.
func (s *SQLite) UpsertAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, release, err := s.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer release()

	alertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rt_alerts (alert_id, header_text, description_text,
			active_period_start, active_period_end, is_active, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (alert_id) DO UPDATE SET
			header_text = excluded.header_text,
			description_text = excluded.description_text,
			active_period_start = excluded.active_period_start,
			active_period_end = excluded.active_period_end,
			is_active = 1,
			last_seen_at = excluded.last_seen_at,
			resolved_at = NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare alert statement: %w", err)
	}
	defer alertStmt.Close()

	entityStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rt_alert_entities (alert_id, route_id, stop_id) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare entity statement: %w", err)
	}
	defer entityStmt.Close()

	for _, a := range alerts {
		_, err := alertStmt.ExecContext(ctx,
			a.AlertID, a.HeaderText, a.DescriptionText,
			fmtTimePtr(a.ActivePeriodStart), fmtTimePtr(a.ActivePeriodEnd),
			fmtTime(a.LastSeenAt), fmtTime(a.LastSeenAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert alert %s: %w", a.AlertID, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM rt_alert_entities WHERE alert_id = ?", a.AlertID); err != nil {
			return fmt.Errorf("failed to clear entities for alert %s: %w", a.AlertID, err)
		}
		for _, e := range a.Entities {
			if _, err := entityStmt.ExecContext(ctx, a.AlertID, e.RouteID, e.StopID); err != nil {
				return fmt.Errorf("failed to insert entity for alert %s: %w", a.AlertID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}
	return nil
}

// MarkInactiveAlerts flips every active alert whose id is absent from the
// current fetch to inactive. Rows are kept so notification evidence stays
// valid.
func (s *SQLite) MarkInactiveAlerts(ctx context.Context, activeIDs []string, now time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	nowStr := fmtTime(now)

	if len(activeIDs) == 0 {
		res, err := s.conn.ExecContext(ctx,
			"UPDATE rt_alerts SET is_active = 0, resolved_at = ? WHERE is_active = 1",
			nowStr,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to mark alerts inactive: %w", err)
		}
		n, _ := res.RowsAffected()
		return n, nil
	}

	placeholders := make([]string, len(activeIDs))
	args := make([]interface{}, 0, len(activeIDs)+1)
	args = append(args, nowStr)
	for i, id := range activeIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		"UPDATE rt_alerts SET is_active = 0, resolved_at = ? WHERE is_active = 1 AND alert_id NOT IN (%s)",
		strings.Join(placeholders, ","),
	)
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark alerts inactive: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ExpireElapsedAlerts deactivates alerts whose declared active period has
// fully passed, regardless of feed presence.
func (s *SQLite) ExpireElapsedAlerts(ctx context.Context, now time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	nowStr := fmtTime(now)
	res, err := s.conn.ExecContext(ctx, `
		UPDATE rt_alerts SET is_active = 0, resolved_at = ?
		WHERE is_active = 1 AND active_period_end IS NOT NULL AND active_period_end < ?
	`, nowStr, nowStr)
	if err != nil {
		return 0, fmt.Errorf("failed to expire alerts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ActiveAlerts returns all currently active alerts with their affected
// entities, for the dispatcher.
func (s *SQLite) ActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT alert_id, header_text, description_text, active_period_start, active_period_end,
			is_active, first_seen_at, last_seen_at, resolved_at
		FROM rt_alerts
		WHERE is_active = 1
		ORDER BY alert_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	byID := make(map[string]int)
	for rows.Next() {
		a, err := scanSQLiteAlert(rows)
		if err != nil {
			return nil, err
		}
		byID[a.AlertID] = len(alerts)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachEntities(ctx, alerts, byID); err != nil {
		return nil, err
	}
	return alerts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteAlert(r rowScanner) (models.Alert, error) {
	var a models.Alert
	var start, end, resolved *string
	var firstSeen, lastSeen string
	if err := r.Scan(&a.AlertID, &a.HeaderText, &a.DescriptionText, &start, &end,
		&a.IsActive, &firstSeen, &lastSeen, &resolved); err != nil {
		return a, fmt.Errorf("failed to scan alert: %w", err)
	}
	a.ActivePeriodStart = parseTimePtr(start)
	a.ActivePeriodEnd = parseTimePtr(end)
	a.FirstSeenAt = parseTime(firstSeen)
	a.LastSeenAt = parseTime(lastSeen)
	a.ResolvedAt = parseTimePtr(resolved)
	return a, nil
}

func (s *SQLite) attachEntities(ctx context.Context, alerts []models.Alert, byID map[string]int) error {
	if len(alerts) == 0 {
		return nil
	}

	rows, err := s.conn.QueryContext(ctx, "SELECT alert_id, route_id, stop_id FROM rt_alert_entities")
	if err != nil {
		return fmt.Errorf("failed to query alert entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var alertID string
		var e models.AlertEntity
		if err := rows.Scan(&alertID, &e.RouteID, &e.StopID); err != nil {
			return fmt.Errorf("failed to scan alert entity: %w", err)
		}
		if i, ok := byID[alertID]; ok {
			alerts[i].Entities = append(alerts[i].Entities, e)
		}
	}
	return rows.Err()
}
