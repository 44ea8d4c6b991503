package api

import (
	"net/http"
	"strconv"

	"github.com/secutel/netmanager/internal/data"
)

const defaultListLimit = 100

// NVRHandler exposes read views over the sync engine's output: cameras,
// per-run audit rows and the event stream.
type NVRHandler struct {
	Cameras  data.CameraModel
	SyncLogs data.SyncLogModel
	Events   data.EventModel
}

func NewNVRHandler(cameras data.CameraModel, syncLogs data.SyncLogModel, events data.EventModel) *NVRHandler {
	return &NVRHandler{Cameras: cameras, SyncLogs: syncLogs, Events: events}
}

func listLimit(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 1000 {
		return n
	}
	return defaultListLimit
}

func (h *NVRHandler) ListCameras(w http.ResponseWriter, r *http.Request) {
	siteID, ok := queryInt64(r, "site_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "site_id is required")
		return
	}
	cams, err := h.Cameras.ListBySite(r.Context(), siteID, nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list cameras")
		return
	}
	respondJSON(w, http.StatusOK, cams)
}

func (h *NVRHandler) ListSyncLogs(w http.ResponseWriter, r *http.Request) {
	siteID, ok := queryInt64(r, "site_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "site_id is required")
		return
	}
	logs, err := h.SyncLogs.ListBySite(r.Context(), siteID, listLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list sync logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (h *NVRHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	siteID, ok := queryInt64(r, "site_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "site_id is required")
		return
	}
	events, err := h.Events.ListBySite(r.Context(), siteID, listLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}
