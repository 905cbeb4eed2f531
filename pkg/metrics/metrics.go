package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lock metrics
	LockAcquireDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "instancer_lock_acquire_duration_seconds",
			Help:    "Time spent waiting to acquire a per-key lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	LockAcquireFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instancer_lock_acquire_failures_total",
			Help: "Total lock acquisitions that failed, by reason",
		},
		[]string{"reason"},
	)

	// Lifecycle metrics
	InstanceStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "instancer_instance_start_duration_seconds",
			Help:    "Time taken to complete a start operation",
			Buckets: prometheus.DefBuckets,
		},
	)

	InstanceStopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "instancer_instance_stop_duration_seconds",
			Help:    "Time taken to complete a stop operation",
			Buckets: prometheus.DefBuckets,
		},
	)

	InstanceRollbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "instancer_instance_rollbacks_total",
			Help: "Total start operations that triggered rollback",
		},
	)

	// Pruner metrics
	PrunerCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "instancer_pruner_cycle_duration_seconds",
			Help:    "Time taken for one pruner sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	PrunerContainersReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "instancer_pruner_containers_reaped_total",
			Help: "Total expired instances (challenge/team keys) the pruner stopped",
		},
	)

	PrunerNetworksReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "instancer_pruner_networks_reaped_total",
			Help: "Total networks reclaimed by the pruner",
		},
	)

	// Catalog metrics
	CatalogChallengesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "instancer_catalog_challenges_total",
			Help: "Number of challenges currently loaded in the catalog",
		},
	)

	CatalogRejectedDocumentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "instancer_catalog_rejected_documents_total",
			Help: "Total catalog documents rejected at load time",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instancer_http_requests_total",
			Help: "Total HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		LockAcquireDuration,
		LockAcquireFailuresTotal,
		InstanceStartDuration,
		InstanceStopDuration,
		InstanceRollbacksTotal,
		PrunerCycleDuration,
		PrunerContainersReapedTotal,
		PrunerNetworksReapedTotal,
		CatalogChallengesTotal,
		CatalogRejectedDocumentsTotal,
		HTTPRequestsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
