package data

import (
	"context"
	"database/sql"
	"time"
)

type EventModel struct {
	DB DBTX
}

// HasRecent reports whether a committed event with the same dedup tuple
// exists at or after since. Backed by the
// (site_id, channel, event_type, to_status, created_at DESC) index.
func (m EventModel) HasRecent(ctx context.Context, siteID int64, channel int, eventType, toStatus string, since time.Time) (bool, error) {
	query := `
		SELECT 1 FROM camera_events
		WHERE site_id = $1 AND channel = $2 AND event_type = $3 AND to_status = $4
		  AND created_at >= $5
		LIMIT 1`

	var one int
	err := m.DB.QueryRowContext(ctx, query, siteID, channel, eventType, toStatus, since).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m EventModel) Insert(ctx context.Context, e *CameraEvent) error {
	query := `
		INSERT INTO camera_events (site_id, camera_id, channel, event_type, from_status, to_status, severity, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	var cameraID sql.NullInt64
	if e.CameraID != nil {
		cameraID = sql.NullInt64{Int64: *e.CameraID, Valid: true}
	}
	return m.DB.QueryRowContext(ctx, query,
		e.SiteID, cameraID, e.Channel, e.EventType, e.FromStatus, e.ToStatus, e.Severity, e.Message,
	).Scan(&e.ID, &e.CreatedAt)
}

// ListBySite returns recent events, newest first.
func (m EventModel) ListBySite(ctx context.Context, siteID int64, limit int) ([]*CameraEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, site_id, camera_id, channel, event_type, from_status, to_status, severity, message, created_at
		FROM camera_events
		WHERE site_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := m.DB.QueryContext(ctx, query, siteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*CameraEvent
	for rows.Next() {
		var e CameraEvent
		var cameraID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.SiteID, &cameraID, &e.Channel, &e.EventType,
			&e.FromStatus, &e.ToStatus, &e.Severity, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		if cameraID.Valid {
			e.CameraID = &cameraID.Int64
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

type SnapshotModel struct {
	DB DBTX
}

// Insert appends one run snapshot. Snapshots are never updated.
func (m SnapshotModel) Insert(ctx context.Context, siteID int64, runID, payload string) error {
	_, err := m.DB.ExecContext(ctx,
		`INSERT INTO camera_snapshots (site_id, run_id, payload_json) VALUES ($1, $2, $3)`,
		siteID, runID, payload)
	return err
}
