package data

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialModel_FindActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "site_id", "recorder_id", "label", "host", "port", "username",
		"password_enc", "active", "last_sync", "last_status", "created_at",
	}).AddRow(int64(4), int64(1), nil, "NVR Principal", "10.1.1.200", 80, "admin",
		"gcm:abc", true, nil, "ok", now)

	mock.ExpectQuery("SELECT (.+) FROM nvr_credentials").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	cred, err := CredentialModel{DB: db}.FindActive(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cred.ID)
	assert.Equal(t, "10.1.1.200", cred.Host)
	assert.Nil(t, cred.RecorderID)
	assert.Nil(t, cred.LastSync)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialModel_FindActive_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM nvr_credentials").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := CredentialModel{DB: db}.FindActive(context.Background(), 99)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestCredentialModel_UpdateSyncResult(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	// Failed run: only last_status moves.
	mock.ExpectExec("UPDATE nvr_credentials SET last_status").
		WithArgs("error", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, CredentialModel{DB: db}.UpdateSyncResult(context.Background(), 4, "error", nil))

	// Successful run: last_sync moves too.
	now := time.Now()
	mock.ExpectExec("UPDATE nvr_credentials SET last_status (.+) last_sync").
		WithArgs("ok", now, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, CredentialModel{DB: db}.UpdateSyncResult(context.Background(), 4, "ok", &now))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCameraModel_Insert(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO cameras").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(12), now, now))

	cam := &Camera{SiteID: 1, Channel: 3, Name: "Porton", IP: "10.1.1.203", CamType: "ip-net",
		Status: "online", Configured: true, StatusConfig: "enabled", StatusReal: "online"}
	require.NoError(t, CameraModel{DB: db}.Insert(context.Background(), cam))
	assert.Equal(t, int64(12), cam.ID)
}

func TestCameraModel_Update_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	mock.ExpectExec("UPDATE cameras SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := CameraModel{DB: db}.Update(context.Background(), &Camera{ID: 77})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestEventModel_HasRecent(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	since := time.Now().Add(-5 * time.Minute)

	mock.ExpectQuery("SELECT 1 FROM camera_events").
		WithArgs(int64(1), 3, "status_change", "offline", since).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	found, err := EventModel{DB: db}.HasRecent(context.Background(), 1, 3, "status_change", "offline", since)
	require.NoError(t, err)
	assert.True(t, found)

	mock.ExpectQuery("SELECT 1 FROM camera_events").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	found, err = EventModel{DB: db}.HasRecent(context.Background(), 1, 3, "status_change", "online", since)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGateway_TxFlow(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO camera_snapshots").
		WithArgs(int64(1), "abc123def456", `[]`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	g := NewGateway(db)
	tx, err := g.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.InsertSnapshot(context.Background(), 1, "abc123def456", `[]`))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
