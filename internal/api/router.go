package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/secutel/netmanager/internal/middleware"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	DB          *sql.DB
	JobSecret   string
	Jobs        *JobHandler
	Credentials *CredentialHandler
	NVR         *NVRHandler
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(req.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Machine-to-machine job endpoints, shared-secret gated.
	r.Group(func(r chi.Router) {
		r.Use(middleware.JobSecret(d.JobSecret))
		r.Post("/api/jobs/nvr/sync-all", d.Jobs.SyncAll)
		r.Post("/api/jobs/nvr/sync-site/{site_id}", d.Jobs.SyncSite)
	})

	r.Route("/api/nvr", func(r chi.Router) {
		r.Get("/cameras", d.NVR.ListCameras)
		r.Get("/sync-logs", d.NVR.ListSyncLogs)
		r.Get("/events", d.NVR.ListEvents)

		r.Get("/credentials", d.Credentials.List)
		r.Post("/credentials", d.Credentials.Create)
		r.Put("/credentials/{id}", d.Credentials.Update)
		r.Delete("/credentials/{id}", d.Credentials.Delete)
	})

	return r
}
