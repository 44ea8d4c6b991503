package data

import "context"

type SyncLogModel struct {
	DB DBTX
}

func (m SyncLogModel) Insert(ctx context.Context, l *SyncLog) error {
	query := `
		INSERT INTO sync_logs (
			credential_id, site_id, action, status,
			cameras_found, cameras_added, cameras_updated, cameras_online, cameras_offline,
			error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	return m.DB.QueryRowContext(ctx, query,
		l.CredentialID, l.SiteID, l.Action, l.Status,
		l.CamerasFound, l.CamerasAdded, l.CamerasUpdated, l.CamerasOnline, l.CamerasOffline,
		l.ErrorMessage,
	).Scan(&l.ID, &l.CreatedAt)
}

func (m SyncLogModel) ListBySite(ctx context.Context, siteID int64, limit int) ([]*SyncLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT id, credential_id, site_id, action, status,
		       cameras_found, cameras_added, cameras_updated, cameras_online, cameras_offline,
		       error_message, created_at
		FROM sync_logs
		WHERE site_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := m.DB.QueryContext(ctx, query, siteID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*SyncLog
	for rows.Next() {
		var l SyncLog
		if err := rows.Scan(&l.ID, &l.CredentialID, &l.SiteID, &l.Action, &l.Status,
			&l.CamerasFound, &l.CamerasAdded, &l.CamerasUpdated, &l.CamerasOnline,
			&l.CamerasOffline, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
