package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	SubmissionOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "marketplace_submissions_total", Help: "Job posting submissions by outcome"}, []string{"outcome"})
	ConfirmDuration    = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "marketplace_confirm_seconds", Help: "Time from wallet submission to node confirmation", Buckets: prometheus.ExponentialBuckets(0.25, 2, 10)})
	QueryFailures      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "marketplace_query_failures_total", Help: "View function calls that failed"}, []string{"function"})
	RefreshCommits     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "marketplace_refresh_commits_total", Help: "Refresh results written to listing state"}, []string{"collection"})
	StaleDiscards      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "marketplace_refresh_stale_total", Help: "Refresh results dropped because a newer refresh was issued"}, []string{"collection"})
	ListedJobsGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "marketplace_jobs_listed", Help: "Jobs in the latest all-jobs listing"})
	RateLimitRejects   = prometheus.NewCounter(prometheus.CounterOpts{Name: "marketplace_rate_limit_rejects_total", Help: "Submissions rejected by rate limiter"})
	SnapshotPublishes  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "marketplace_snapshot_publishes_total", Help: "Listing snapshots published by result"}, []string{"result"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			SubmissionOutcomes,
			ConfirmDuration,
			QueryFailures,
			RefreshCommits,
			StaleDiscards,
			ListedJobsGauge,
			RateLimitRejects,
			SnapshotPublishes,
		)
	})
	return promhttp.Handler()
}
