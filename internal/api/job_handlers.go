package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/secutel/netmanager/internal/sync"
)

// SyncRunner is the slice of the sync service the job endpoints drive.
type SyncRunner interface {
	SyncSite(ctx context.Context, siteID int64) *sync.SyncRunResult
	SyncAllSites(ctx context.Context) ([]*sync.SyncRunResult, error)
}

type JobHandler struct {
	Runner SyncRunner
}

func NewJobHandler(runner SyncRunner) *JobHandler {
	return &JobHandler{Runner: runner}
}

type syncAllResponse struct {
	OK             bool                  `json:"ok"`
	SitesSynced    int                   `json:"sites_synced"`
	TotalElapsedMS int64                 `json:"total_elapsed_ms"`
	Results        []*sync.SyncRunResult `json:"results"`
	Error          string                `json:"error,omitempty"`
}

// SyncAll runs every site with an active credential. Per-site failures are
// reported inside the results with ok=true for the sweep and HTTP 200, so
// the scheduler does not retry a half-finished sweep. Only failing to
// enumerate the sites at all answers ok=false, with a 500 to make the
// outage unmistakable for "no sites".
func (h *JobHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	results, err := h.Runner.SyncAllSites(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, syncAllResponse{
			Results:        []*sync.SyncRunResult{},
			TotalElapsedMS: time.Since(start).Milliseconds(),
			Error:          "failed to enumerate sites",
		})
		return
	}
	if results == nil {
		results = []*sync.SyncRunResult{}
	}
	respondJSON(w, http.StatusOK, syncAllResponse{
		OK:             true,
		SitesSynced:    len(results),
		TotalElapsedMS: time.Since(start).Milliseconds(),
		Results:        results,
	})
}

// SyncSite runs one site. A run that fails still answers 200 with ok=false
// and its error_code.
func (h *JobHandler) SyncSite(w http.ResponseWriter, r *http.Request) {
	siteID, err := strconv.ParseInt(chi.URLParam(r, "site_id"), 10, 64)
	if err != nil || siteID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid site_id")
		return
	}
	respondJSON(w, http.StatusOK, h.Runner.SyncSite(r.Context(), siteID))
}
