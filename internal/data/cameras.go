package data

import (
	"context"
	"database/sql"
)

type CameraModel struct {
	DB DBTX
}

const cameraColumns = `
	id, site_id, recorder_id, channel, name, cam_type, ip, model, serial, mac,
	status, configured, status_config, status_real, last_seen_at, offline_streak,
	created_at, updated_at`

func scanCamera(row interface{ Scan(...any) error }) (*Camera, error) {
	var c Camera
	var recorderID sql.NullInt64
	var lastSeen sql.NullTime

	err := row.Scan(
		&c.ID, &c.SiteID, &recorderID, &c.Channel, &c.Name, &c.CamType, &c.IP,
		&c.Model, &c.Serial, &c.MAC, &c.Status, &c.Configured, &c.StatusConfig,
		&c.StatusReal, &lastSeen, &c.OfflineStreak, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if recorderID.Valid {
		c.RecorderID = &recorderID.Int64
	}
	if lastSeen.Valid {
		c.LastSeenAt = &lastSeen.Time
	}
	return &c, nil
}

// ListBySite returns the site's cameras, optionally scoped to one recorder
// when the credential is recorder-bound.
func (m CameraModel) ListBySite(ctx context.Context, siteID int64, recorderID *int64) ([]*Camera, error) {
	query := `SELECT ` + cameraColumns + ` FROM cameras WHERE site_id = $1`
	args := []any{siteID}
	if recorderID != nil {
		query += ` AND recorder_id = $2`
		args = append(args, *recorderID)
	}
	query += ` ORDER BY channel NULLS LAST, id`

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cams []*Camera
	for rows.Next() {
		c, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cams = append(cams, c)
	}
	return cams, rows.Err()
}

func (m CameraModel) Insert(ctx context.Context, c *Camera) error {
	query := `
		INSERT INTO cameras (
			site_id, recorder_id, channel, name, cam_type, ip, model, serial, mac,
			status, configured, status_config, status_real, last_seen_at, offline_streak
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	var recorderID sql.NullInt64
	if c.RecorderID != nil {
		recorderID = sql.NullInt64{Int64: *c.RecorderID, Valid: true}
	}
	var lastSeen sql.NullTime
	if c.LastSeenAt != nil {
		lastSeen = sql.NullTime{Time: *c.LastSeenAt, Valid: true}
	}

	return m.DB.QueryRowContext(ctx, query,
		c.SiteID, recorderID, c.Channel, c.Name, c.CamType, c.IP, c.Model,
		c.Serial, c.MAC, c.Status, c.Configured, c.StatusConfig, c.StatusReal,
		lastSeen, c.OfflineStreak,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update persists the inventory and monitoring fields the sync touches.
func (m CameraModel) Update(ctx context.Context, c *Camera) error {
	query := `
		UPDATE cameras SET
			name = $1, ip = $2, model = $3, serial = $4, mac = $5,
			status = $6, configured = $7, status_config = $8, status_real = $9,
			last_seen_at = $10, offline_streak = $11, updated_at = NOW()
		WHERE id = $12`

	var lastSeen sql.NullTime
	if c.LastSeenAt != nil {
		lastSeen = sql.NullTime{Time: *c.LastSeenAt, Valid: true}
	}

	res, err := m.DB.ExecContext(ctx, query,
		c.Name, c.IP, c.Model, c.Serial, c.MAC, c.Status, c.Configured,
		c.StatusConfig, c.StatusReal, lastSeen, c.OfflineStreak, c.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
