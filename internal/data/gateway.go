package data

import (
	"context"
	"database/sql"
	"time"
)

// Gateway bundles the models the sync engine touches and implements
// SyncStore. Begin hands back the same operations bound to one transaction.
type Gateway struct {
	db *sql.DB
}

func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) FindActiveCredential(ctx context.Context, siteID int64) (*NvrCredential, error) {
	return CredentialModel{DB: g.db}.FindActive(ctx, siteID)
}

func (g *Gateway) ListActiveCredentials(ctx context.Context) ([]*NvrCredential, error) {
	return CredentialModel{DB: g.db}.ListActive(ctx)
}

func (g *Gateway) Begin(ctx context.Context) (SyncTx, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txGateway{tx: tx}, nil
}

type txGateway struct {
	tx *sql.Tx
}

func (t *txGateway) ListCameras(ctx context.Context, siteID int64, recorderID *int64) ([]*Camera, error) {
	return CameraModel{DB: t.tx}.ListBySite(ctx, siteID, recorderID)
}

func (t *txGateway) InsertCamera(ctx context.Context, cam *Camera) error {
	return CameraModel{DB: t.tx}.Insert(ctx, cam)
}

func (t *txGateway) UpdateCamera(ctx context.Context, cam *Camera) error {
	return CameraModel{DB: t.tx}.Update(ctx, cam)
}

func (t *txGateway) InsertSnapshot(ctx context.Context, siteID int64, runID, payload string) error {
	return SnapshotModel{DB: t.tx}.Insert(ctx, siteID, runID, payload)
}

func (t *txGateway) HasRecentEvent(ctx context.Context, siteID int64, channel int, eventType, toStatus string, since time.Time) (bool, error) {
	return EventModel{DB: t.tx}.HasRecent(ctx, siteID, channel, eventType, toStatus, since)
}

func (t *txGateway) InsertEvent(ctx context.Context, evt *CameraEvent) error {
	return EventModel{DB: t.tx}.Insert(ctx, evt)
}

func (t *txGateway) InsertSyncLog(ctx context.Context, logRow *SyncLog) error {
	return SyncLogModel{DB: t.tx}.Insert(ctx, logRow)
}

func (t *txGateway) UpdateCredentialSyncResult(ctx context.Context, credentialID int64, status string, syncedAt *time.Time) error {
	return CredentialModel{DB: t.tx}.UpdateSyncResult(ctx, credentialID, status, syncedAt)
}

func (t *txGateway) Commit() error   { return t.tx.Commit() }
func (t *txGateway) Rollback() error { return t.tx.Rollback() }
