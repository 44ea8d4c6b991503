package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secutel/netmanager/internal/crypto"
	"github.com/secutel/netmanager/internal/dahua"
	"github.com/secutel/netmanager/internal/data"
	"github.com/secutel/netmanager/internal/metrics"
	"github.com/secutel/netmanager/internal/probe"
)

// Error codes owned by the orchestrator. Transport and device codes come
// from the dahua package.
const (
	CodeNoCredentials = "NO_CREDENTIALS"
	CodeInternalError = "INTERNAL_ERROR"
)

const (
	// offlineStrikesThreshold is how many consecutive failed probes it takes
	// before a camera's committed status flips to offline.
	offlineStrikesThreshold = 2

	// dedupWindow suppresses identical events committed within the last
	// five minutes.
	dedupWindow = 5 * time.Minute

	dedupCacheSize = 4096

	actionHybridSync = "hybrid_sync"
)

// NVRClient is the slice of the Dahua client the orchestrator uses.
type NVRClient interface {
	Inventory(ctx context.Context, user, pass string) ([]dahua.Camera, error)
}

// Prober matches probe.Many.
type Prober func(ctx context.Context, targets []probe.Target, cfg probe.Config) map[int]string

// Options are the optional collaborators of a Service. Zero values get
// sensible defaults.
type Options struct {
	// Publisher receives committed events. Nil disables publishing.
	Publisher EventPublisher

	// ProbeConfig is read at the start of every run, so a config reload
	// takes effect without a restart. Nil means probe.DefaultConfig.
	ProbeConfig func() probe.Config

	// RPCTimeout overrides the Dahua HTTP client timeout.
	RPCTimeout time.Duration
}

// Service runs hybrid syncs: pull the channel inventory from the site's NVR,
// verify each camera with a direct TCP probe, and reconcile the database.
type Service struct {
	store       data.SyncStore
	vault       *crypto.Vault
	locks       SiteLocker
	dedup       *eventDedup
	publisher   EventPublisher
	probeConfig func() probe.Config

	newClient func(base string) NVRClient
	prober    Prober
	now       func() time.Time
}

func NewService(store data.SyncStore, vault *crypto.Vault, locks SiteLocker, opts Options) *Service {
	if locks == nil {
		locks = NewLocalSiteLock()
	}
	probeCfg := opts.ProbeConfig
	if probeCfg == nil {
		probeCfg = func() probe.Config { return probe.DefaultConfig() }
	}
	rpcTimeout := opts.RPCTimeout
	if rpcTimeout <= 0 {
		rpcTimeout = dahua.DefaultTimeout
	}
	return &Service{
		store:       store,
		vault:       vault,
		locks:       locks,
		dedup:       newEventDedup(dedupCacheSize, dedupWindow),
		publisher:   opts.Publisher,
		probeConfig: probeCfg,
		newClient:   func(base string) NVRClient { return dahua.NewClient(base, rpcTimeout) },
		prober:      probe.Many,
		now:         time.Now,
	}
}

func newRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// SyncSite runs one hybrid sync for siteID. It always returns a result; a
// failure is reported in the result, never as a Go error, so the job endpoint
// can serialize it with a 200.
func (s *Service) SyncSite(ctx context.Context, siteID int64) *SyncRunResult {
	started := time.Now()
	res := &SyncRunResult{SiteID: siteID, RunID: newRunID()}
	defer func() {
		res.ElapsedMS = time.Since(started).Milliseconds()
		metrics.SyncRunDuration.Observe(time.Since(started).Seconds())
		if res.OK {
			metrics.SyncRunsTotal.WithLabelValues("ok", "").Inc()
		} else {
			metrics.SyncRunsTotal.WithLabelValues("error", res.ErrorCode).Inc()
		}
	}()

	release, err := s.locks.Acquire(ctx, siteID)
	if err != nil {
		// The run never started; there is nothing to log against.
		res.ErrorCode = CodeInternalError
		res.Error = fmt.Sprintf("site lock: %v", err)
		return res
	}
	defer release()

	cred, err := s.store.FindActiveCredential(ctx, siteID)
	if errors.Is(err, data.ErrRecordNotFound) {
		res.ErrorCode = CodeNoCredentials
		res.Error = fmt.Sprintf("no active NVR credential for site %d", siteID)
		return res
	}
	if err != nil {
		res.ErrorCode = CodeInternalError
		res.Error = fmt.Sprintf("load credential: %v", err)
		return res
	}

	password, err := s.vault.Decrypt(cred.PasswordEnc)
	if err != nil {
		return s.failRun(ctx, res, cred, CodeInternalError, "credential decrypt failed")
	}

	base, err := dahua.Normalize(cred.Host, cred.Port)
	if err != nil {
		return s.failRun(ctx, res, cred, dahua.ErrorCode(err), err.Error())
	}

	log.Printf("[RUN:%s] site=%d sync start nvr=%s:%d user=%s", res.RunID, siteID, cred.Host, cred.Port, cred.Username)

	cams, err := s.newClient(base).Inventory(ctx, cred.Username, password)
	password = ""
	if err != nil {
		log.Printf("[RUN:%s] site=%d inventory failed: %v", res.RunID, siteID, err)
		return s.failRun(ctx, res, cred, dahua.ErrorCode(err), err.Error())
	}
	res.Total = len(cams)

	targets := make([]probe.Target, 0, len(cams))
	for _, c := range cams {
		targets = append(targets, probe.Target{Channel: c.Channel, IP: c.IP})
	}
	verdicts := s.prober(ctx, targets, s.probeConfig())

	now := s.now().UTC()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("begin: %v", err))
	}
	defer tx.Rollback()

	existing, err := tx.ListCameras(ctx, siteID, cred.RecorderID)
	if err != nil {
		tx.Rollback()
		return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("list cameras: %v", err))
	}
	byChannel := make(map[int]*data.Camera, len(existing))
	byIP := make(map[string]*data.Camera, len(existing))
	for _, cam := range existing {
		byChannel[cam.Channel] = cam
		if cam.IP != "" {
			byIP[cam.IP] = cam
		}
	}

	var pending []*data.CameraEvent
	for i := range cams {
		nc := &cams[i]
		verdict, ok := verdicts[nc.Channel]
		if !ok {
			verdict = probe.StatusUnknown
		}
		switch verdict {
		case probe.StatusOnline:
			res.Online++
		case probe.StatusOffline:
			res.Offline++
		default:
			res.Unknown++
		}
		metrics.ProbeVerdictsTotal.WithLabelValues(verdict).Inc()

		match := byChannel[nc.Channel]
		if match == nil && nc.IP != "" {
			match = byIP[nc.IP]
		}

		var evts []*data.CameraEvent
		if match != nil {
			evts, err = s.reconcile(ctx, tx, res, match, nc, verdict, now)
		} else {
			evts, err = s.register(ctx, tx, res, cred, nc, verdict, now)
		}
		if err != nil {
			tx.Rollback()
			return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("persist CH%d: %v", nc.Channel, err))
		}
		pending = append(pending, evts...)
	}

	payload, err := snapshotPayload(cams, verdicts)
	if err != nil {
		tx.Rollback()
		return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("snapshot: %v", err))
	}
	if err := tx.InsertSnapshot(ctx, siteID, res.RunID, payload); err != nil {
		tx.Rollback()
		return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("snapshot: %v", err))
	}

	// Dedup against committed rows from the last whole-minute-aligned window.
	since := now.Truncate(time.Minute).Add(-dedupWindow)
	var committed []*data.CameraEvent
	for _, evt := range pending {
		key := dedupKey(siteID, evt.Channel, evt.EventType, evt.ToStatus)
		if s.dedup.seen(key) {
			metrics.EventsDedupedTotal.Inc()
			continue
		}
		dup, err := tx.HasRecentEvent(ctx, siteID, evt.Channel, evt.EventType, evt.ToStatus, since)
		if err != nil {
			tx.Rollback()
			return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("event dedup: %v", err))
		}
		if dup {
			metrics.EventsDedupedTotal.Inc()
			continue
		}
		if err := tx.InsertEvent(ctx, evt); err != nil {
			tx.Rollback()
			return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("insert event: %v", err))
		}
		committed = append(committed, evt)
	}

	if err := tx.InsertSyncLog(ctx, &data.SyncLog{
		CredentialID:   cred.ID,
		SiteID:         siteID,
		Action:         actionHybridSync,
		Status:         "ok",
		CamerasFound:   res.Total,
		CamerasAdded:   res.Added,
		CamerasUpdated: res.Updated,
		CamerasOnline:  res.Online,
		CamerasOffline: res.Offline,
	}); err != nil {
		tx.Rollback()
		return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("sync log: %v", err))
	}
	if err := tx.UpdateCredentialSyncResult(ctx, cred.ID, "ok", &now); err != nil {
		tx.Rollback()
		return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("credential status: %v", err))
	}
	if err := tx.Commit(); err != nil {
		return s.failRun(ctx, res, cred, CodeInternalError, fmt.Sprintf("commit: %v", err))
	}

	// Post-commit only: a rolled back run must not poison the cache or
	// publish phantom events.
	for _, evt := range committed {
		s.dedup.record(dedupKey(siteID, evt.Channel, evt.EventType, evt.ToStatus))
		metrics.EventsEmittedTotal.WithLabelValues(evt.EventType, evt.Severity).Inc()
		if s.publisher != nil {
			s.publisher.Publish(evt)
		}
	}

	res.OK = true
	log.Printf("[RUN:%s] site=%d sync ok total=%d online=%d offline=%d unknown=%d added=%d updated=%d inv_changes=%d status_changes=%d elapsed=%dms",
		res.RunID, siteID, res.Total, res.Online, res.Offline, res.Unknown,
		res.Added, res.Updated, res.InventoryChanges, res.StatusChanges,
		time.Since(started).Milliseconds())
	return res
}

// inventoryFields are the identity fields compared for drift, in report order.
var inventoryFields = []string{"ip", "mac", "model", "serial", "name"}

// reconcile applies one NVR row and its probe verdict to an existing camera
// row, returning the events to enqueue.
func (s *Service) reconcile(ctx context.Context, tx data.SyncTx, res *SyncRunResult, cam *data.Camera, nc *dahua.Camera, verdict string, now time.Time) ([]*data.CameraEvent, error) {
	old := map[string]string{
		"ip": cam.IP, "mac": cam.MAC, "model": cam.Model, "serial": cam.Serial, "name": cam.Name,
	}
	fresh := map[string]string{
		"ip": nc.IP, "mac": nc.MAC, "model": nc.Model, "serial": nc.Serial, "name": nc.Name,
	}

	var events []*data.CameraEvent

	// A field only counts as drifted when the NVR reports a non-empty value
	// that differs; a blank from the NVR never clobbers known identity.
	var changed []string
	for _, f := range inventoryFields {
		if v := strings.TrimSpace(fresh[f]); v != "" && v != old[f] {
			changed = append(changed, f)
		}
	}
	if len(changed) > 0 {
		res.InventoryChanges++
		from := make(map[string]string, len(changed))
		to := make(map[string]string, len(changed))
		for _, f := range changed {
			from[f] = old[f]
			to[f] = strings.TrimSpace(fresh[f])
		}
		fromJSON, _ := json.Marshal(from)
		toJSON, _ := json.Marshal(to)
		events = append(events, &data.CameraEvent{
			SiteID:     cam.SiteID,
			CameraID:   &cam.ID,
			Channel:    cam.Channel,
			EventType:  "inventory_change",
			FromStatus: string(fromJSON),
			ToStatus:   string(toJSON),
			Severity:   "info",
			Message:    fmt.Sprintf("CH%d inventory changed: %s", cam.Channel, strings.Join(changed, ", ")),
		})
		for _, f := range changed {
			switch f {
			case "ip":
				cam.IP = to[f]
			case "mac":
				cam.MAC = to[f]
			case "model":
				cam.Model = to[f]
			case "serial":
				cam.Serial = to[f]
			case "name":
				cam.Name = to[f]
			}
		}
	}

	cam.Configured = true
	cam.StatusConfig = "enabled"

	prev := cam.StatusReal
	if prev == "" {
		prev = probe.StatusUnknown
	}

	switch verdict {
	case probe.StatusOnline:
		cam.OfflineStreak = 0
		cam.LastSeenAt = &now
		if prev != probe.StatusOnline {
			res.StatusChanges++
			events = append(events, statusEvent(cam, prev, probe.StatusOnline, "info",
				fmt.Sprintf("CH%d %s back online", cam.Channel, cam.Name)))
		}
		cam.StatusReal = probe.StatusOnline
		cam.Status = probe.StatusOnline

	case probe.StatusOffline:
		cam.OfflineStreak++
		if cam.OfflineStreak >= offlineStrikesThreshold {
			if prev != probe.StatusOffline {
				res.StatusChanges++
				events = append(events, statusEvent(cam, prev, probe.StatusOffline, "crit",
					fmt.Sprintf("CH%d %s offline after %d failed probes", cam.Channel, cam.Name, cam.OfflineStreak)))
			}
			cam.StatusReal = probe.StatusOffline
			cam.Status = probe.StatusOffline
		} else if prev == probe.StatusOnline {
			// First strike: advisory only, committed status holds.
			events = append(events, statusEvent(cam, prev, probe.StatusOffline, "warn",
				fmt.Sprintf("CH%d %s probe failed (%d/%d)", cam.Channel, cam.Name, cam.OfflineStreak, offlineStrikesThreshold)))
		}

	default:
		// Probe could not decide; never degrade a committed status.
		if cam.StatusReal == "" {
			cam.StatusReal = probe.StatusUnknown
		}
	}

	if err := tx.UpdateCamera(ctx, cam); err != nil {
		return nil, err
	}
	res.Updated++
	return events, nil
}

// register creates a camera row for a channel seen for the first time. A
// first-probe offline commits immediately with streak 1; the two-strike
// grace only applies to cameras that were previously observed.
func (s *Service) register(ctx context.Context, tx data.SyncTx, res *SyncRunResult, cred *data.NvrCredential, nc *dahua.Camera, verdict string, now time.Time) ([]*data.CameraEvent, error) {
	camType := "analog"
	if nc.IP != "" {
		camType = "ip-net"
	}
	cam := &data.Camera{
		SiteID:       cred.SiteID,
		RecorderID:   cred.RecorderID,
		Channel:      nc.Channel,
		Name:         nc.Name,
		CamType:      camType,
		IP:           nc.IP,
		Model:        nc.Model,
		Serial:       nc.Serial,
		MAC:          nc.MAC,
		Configured:   true,
		StatusConfig: "enabled",
		StatusReal:   verdict,
	}
	switch verdict {
	case probe.StatusOnline:
		cam.Status = probe.StatusOnline
		cam.LastSeenAt = &now
	case probe.StatusOffline:
		cam.Status = probe.StatusOffline
		cam.OfflineStreak = 1
	default:
		cam.Status = probe.StatusOnline
	}
	if err := tx.InsertCamera(ctx, cam); err != nil {
		return nil, err
	}
	res.Added++
	metrics.CamerasAddedTotal.Inc()

	// A brand-new camera answering its probe is itself a transition worth
	// reporting; a silent first observation is not.
	if verdict == probe.StatusOnline {
		res.StatusChanges++
		return []*data.CameraEvent{statusEvent(cam, probe.StatusUnknown, probe.StatusOnline, "info",
			fmt.Sprintf("CH%d %s discovered online", cam.Channel, cam.Name))}, nil
	}
	return nil, nil
}

func statusEvent(cam *data.Camera, from, to, severity, message string) *data.CameraEvent {
	evt := &data.CameraEvent{
		SiteID:     cam.SiteID,
		Channel:    cam.Channel,
		EventType:  "status_change",
		FromStatus: from,
		ToStatus:   to,
		Severity:   severity,
		Message:    message,
	}
	if cam.ID != 0 {
		evt.CameraID = &cam.ID
	}
	return evt
}

type snapshotEntry struct {
	Channel      int    `json:"channel"`
	Name         string `json:"name"`
	IP           string `json:"ip"`
	MAC          string `json:"mac"`
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Configured   bool   `json:"configured"`
	StatusConfig string `json:"status_config"`
	StatusReal   string `json:"status_real"`
}

func snapshotPayload(cams []dahua.Camera, verdicts map[int]string) (string, error) {
	entries := make([]snapshotEntry, 0, len(cams))
	for _, c := range cams {
		verdict, ok := verdicts[c.Channel]
		if !ok {
			verdict = probe.StatusUnknown
		}
		entries = append(entries, snapshotEntry{
			Channel:      c.Channel,
			Name:         c.Name,
			IP:           c.IP,
			MAC:          c.MAC,
			Model:        c.Model,
			Serial:       c.Serial,
			Configured:   true,
			StatusConfig: "enabled",
			StatusReal:   verdict,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Channel < entries[j].Channel })
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// failRun records the failure on the credential and writes the error audit
// row in its own short transaction, detached from ctx cancellation so the
// bookkeeping survives an aborted request.
func (s *Service) failRun(ctx context.Context, res *SyncRunResult, cred *data.NvrCredential, code, msg string) *SyncRunResult {
	res.OK = false
	res.ErrorCode = code
	res.Error = msg

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	tx, err := s.store.Begin(bctx)
	if err != nil {
		log.Printf("[RUN:%s] site=%d failure bookkeeping begin: %v", res.RunID, res.SiteID, err)
		return res
	}
	defer tx.Rollback()
	if err := tx.InsertSyncLog(bctx, &data.SyncLog{
		CredentialID: cred.ID,
		SiteID:       res.SiteID,
		Action:       actionHybridSync,
		Status:       "error",
		ErrorMessage: msg,
	}); err != nil {
		log.Printf("[RUN:%s] site=%d failure bookkeeping: %v", res.RunID, res.SiteID, err)
		return res
	}
	if err := tx.UpdateCredentialSyncResult(bctx, cred.ID, "error", nil); err != nil {
		log.Printf("[RUN:%s] site=%d failure bookkeeping: %v", res.RunID, res.SiteID, err)
		return res
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[RUN:%s] site=%d failure bookkeeping commit: %v", res.RunID, res.SiteID, err)
	}
	return res
}

// SyncAllSites runs every site that has an active credential, serially and in
// site order. One site's failure, panic included, never stops the sweep; only
// failing to enumerate the sites at all is an error.
func (s *Service) SyncAllSites(ctx context.Context) ([]*SyncRunResult, error) {
	creds, err := s.store.ListActiveCredentials(ctx)
	if err != nil {
		log.Printf("sync-all: list credentials: %v", err)
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	seen := make(map[int64]bool)
	var results []*SyncRunResult
	for _, cred := range creds {
		if seen[cred.SiteID] {
			continue
		}
		seen[cred.SiteID] = true
		results = append(results, s.syncSiteSafe(ctx, cred.SiteID))
	}
	return results, nil
}

func (s *Service) syncSiteSafe(ctx context.Context, siteID int64) (res *SyncRunResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sync site=%d panic: %v", siteID, r)
			res = &SyncRunResult{
				SiteID:    siteID,
				ErrorCode: CodeInternalError,
				Error:     fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return s.SyncSite(ctx, siteID)
}
