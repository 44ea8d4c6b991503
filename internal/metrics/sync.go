package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmanager_sync_runs_total",
		Help: "Total sync runs by result (ok, error) and error code",
	}, []string{"result", "error_code"})

	SyncRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netmanager_sync_run_duration_seconds",
		Help:    "Wall time of one site sync run",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	ProbeVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmanager_probe_verdicts_total",
		Help: "Per-camera probe verdicts (online, offline, unknown)",
	}, []string{"verdict"})

	CamerasAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netmanager_cameras_added_total",
		Help: "Cameras created on first observation",
	})

	EventsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmanager_events_emitted_total",
		Help: "Camera events committed, by type and severity",
	}, []string{"event_type", "severity"})

	EventsDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netmanager_events_deduped_total",
		Help: "Events dropped by the 5-minute dedup window",
	})
)
