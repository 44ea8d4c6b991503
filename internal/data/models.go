package data

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrRecordNotFound = errors.New("record not found")

// DBTX is a common interface for *sql.DB and *sql.Tx so the same models can
// run standalone or inside the sync run's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Camera is one channel slot of a site's recorder, plus the monitoring
// fields maintained by the hybrid sync. RecorderID is an opaque foreign key;
// the engine never traverses it.
type Camera struct {
	ID         int64  `json:"id"`
	SiteID     int64  `json:"site_id"`
	RecorderID *int64 `json:"recorder_id,omitempty"`
	Channel    int    `json:"channel"`
	Name       string `json:"name"`
	CamType    string `json:"cam_type"` // ip-net, analog
	IP         string `json:"ip"`
	Model      string `json:"model"`
	Serial     string `json:"serial"`
	MAC        string `json:"mac"`

	// Legacy status field, mirrored from StatusReal for older consumers.
	Status string `json:"status"`

	Configured    bool       `json:"configured"`
	StatusConfig  string     `json:"status_config"` // enabled, disabled
	StatusReal    string     `json:"status_real"`   // online, offline, unknown
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
	OfflineStreak int        `json:"offline_streak"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NvrCredential is one NVR login for a site. PasswordEnc is vault-sealed and
// never serialized.
type NvrCredential struct {
	ID          int64      `json:"id"`
	SiteID      int64      `json:"site_id"`
	RecorderID  *int64     `json:"recorder_id,omitempty"`
	Label       string     `json:"label"`
	Host        string     `json:"host"`
	Port        int        `json:"port"`
	Username    string     `json:"username"`
	PasswordEnc string     `json:"-"`
	Active      bool       `json:"active"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
	LastStatus  string     `json:"last_status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CameraSnapshot is an immutable point-in-time view of every camera observed
// in one run.
type CameraSnapshot struct {
	ID          int64     `json:"id"`
	SiteID      int64     `json:"site_id"`
	RunID       string    `json:"run_id"`
	CollectedAt time.Time `json:"collected_at"`
	Payload     string    `json:"payload"`
}

// CameraEvent records one status or inventory transition. Append-only.
type CameraEvent struct {
	ID         int64     `json:"id"`
	SiteID     int64     `json:"site_id"`
	CameraID   *int64    `json:"camera_id,omitempty"`
	Channel    int       `json:"channel"`
	EventType  string    `json:"event_type"` // status_change, inventory_change
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Severity   string    `json:"severity"` // info, warn, crit
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// SyncLog is the per-run audit row. One per run, ok or error.
type SyncLog struct {
	ID             int64     `json:"id"`
	CredentialID   int64     `json:"credential_id"`
	SiteID         int64     `json:"site_id"`
	Action         string    `json:"action"`
	Status         string    `json:"status"` // ok, error
	CamerasFound   int       `json:"cameras_found"`
	CamerasAdded   int       `json:"cameras_added"`
	CamerasUpdated int       `json:"cameras_updated"`
	CamerasOnline  int       `json:"cameras_online"`
	CamerasOffline int       `json:"cameras_offline"`
	ErrorMessage   string    `json:"error_message"`
	CreatedAt      time.Time `json:"created_at"`
}

// SyncStore is the read surface the orchestrator needs outside a run
// transaction, plus Begin for the transactional phase.
type SyncStore interface {
	FindActiveCredential(ctx context.Context, siteID int64) (*NvrCredential, error)
	ListActiveCredentials(ctx context.Context) ([]*NvrCredential, error)
	Begin(ctx context.Context) (SyncTx, error)
}

// SyncTx is one run's transaction. All writes of a run go through it and
// commit atomically.
type SyncTx interface {
	ListCameras(ctx context.Context, siteID int64, recorderID *int64) ([]*Camera, error)
	InsertCamera(ctx context.Context, cam *Camera) error
	UpdateCamera(ctx context.Context, cam *Camera) error
	InsertSnapshot(ctx context.Context, siteID int64, runID, payload string) error
	HasRecentEvent(ctx context.Context, siteID int64, channel int, eventType, toStatus string, since time.Time) (bool, error)
	InsertEvent(ctx context.Context, evt *CameraEvent) error
	InsertSyncLog(ctx context.Context, logRow *SyncLog) error
	UpdateCredentialSyncResult(ctx context.Context, credentialID int64, status string, syncedAt *time.Time) error
	Commit() error
	Rollback() error
}
