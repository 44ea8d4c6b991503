package data

import (
	"context"
	"database/sql"
	"time"
)

type CredentialModel struct {
	DB DBTX
}

const credentialColumns = `
	id, site_id, recorder_id, label, host, port, username, password_enc,
	active, last_sync, last_status, created_at`

func scanCredential(row interface{ Scan(...any) error }) (*NvrCredential, error) {
	var c NvrCredential
	var recorderID sql.NullInt64
	var lastSync sql.NullTime

	err := row.Scan(
		&c.ID, &c.SiteID, &recorderID, &c.Label, &c.Host, &c.Port, &c.Username,
		&c.PasswordEnc, &c.Active, &lastSync, &c.LastStatus, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if recorderID.Valid {
		c.RecorderID = &recorderID.Int64
	}
	if lastSync.Valid {
		c.LastSync = &lastSync.Time
	}
	return &c, nil
}

// FindActive returns the first active credential for a site.
func (m CredentialModel) FindActive(ctx context.Context, siteID int64) (*NvrCredential, error) {
	query := `SELECT ` + credentialColumns + `
		FROM nvr_credentials
		WHERE site_id = $1 AND active = TRUE
		ORDER BY id
		LIMIT 1`

	c, err := scanCredential(m.DB.QueryRowContext(ctx, query, siteID))
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListActive returns every active credential across sites, ordered so the
// fleet runner visits sites deterministically.
func (m CredentialModel) ListActive(ctx context.Context) ([]*NvrCredential, error) {
	query := `SELECT ` + credentialColumns + `
		FROM nvr_credentials
		WHERE active = TRUE
		ORDER BY site_id, id`

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*NvrCredential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (m CredentialModel) ListBySite(ctx context.Context, siteID int64) ([]*NvrCredential, error) {
	query := `SELECT ` + credentialColumns + `
		FROM nvr_credentials
		WHERE site_id = $1
		ORDER BY id`

	rows, err := m.DB.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*NvrCredential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (m CredentialModel) Insert(ctx context.Context, c *NvrCredential) error {
	query := `
		INSERT INTO nvr_credentials (site_id, recorder_id, label, host, port, username, password_enc, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	var recorderID sql.NullInt64
	if c.RecorderID != nil {
		recorderID = sql.NullInt64{Int64: *c.RecorderID, Valid: true}
	}
	return m.DB.QueryRowContext(ctx, query,
		c.SiteID, recorderID, c.Label, c.Host, c.Port, c.Username, c.PasswordEnc, c.Active,
	).Scan(&c.ID, &c.CreatedAt)
}

// Update rewrites the editable fields. An empty PasswordEnc keeps the stored
// password.
func (m CredentialModel) Update(ctx context.Context, c *NvrCredential) error {
	query := `
		UPDATE nvr_credentials SET
			label = $1, host = $2, port = $3, username = $4, active = $5,
			password_enc = CASE WHEN $6 = '' THEN password_enc ELSE $6 END
		WHERE id = $7`

	res, err := m.DB.ExecContext(ctx, query, c.Label, c.Host, c.Port, c.Username, c.Active, c.PasswordEnc, c.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (m CredentialModel) Delete(ctx context.Context, id int64) error {
	res, err := m.DB.ExecContext(ctx, `DELETE FROM nvr_credentials WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// UpdateSyncResult records a run outcome on the credential. syncedAt is nil
// on failed runs so last_sync keeps pointing at the last good run.
func (m CredentialModel) UpdateSyncResult(ctx context.Context, id int64, status string, syncedAt *time.Time) error {
	if syncedAt == nil {
		_, err := m.DB.ExecContext(ctx,
			`UPDATE nvr_credentials SET last_status = $1 WHERE id = $2`, status, id)
		return err
	}
	_, err := m.DB.ExecContext(ctx,
		`UPDATE nvr_credentials SET last_status = $1, last_sync = $2 WHERE id = $3`,
		status, *syncedAt, id)
	return err
}
