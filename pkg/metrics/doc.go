/*
Package metrics defines and registers the Prometheus metrics for the
instance controller: lock contention, rollback frequency, lifecycle
operation latency, and pruner cycle health. All metrics are registered at
package init time and exposed via Handler for a /metrics scrape endpoint.

Timer is a small helper for converting a start time into a histogram
observation:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.InstanceStartDuration)

# Metrics

	instancer_lock_acquire_duration_seconds        histogram
	instancer_lock_acquire_failures_total          counter{reason}
	instancer_instance_start_duration_seconds      histogram
	instancer_instance_stop_duration_seconds       histogram
	instancer_instance_rollbacks_total             counter
	instancer_pruner_cycle_duration_seconds        histogram
	instancer_pruner_containers_reaped_total       counter
	instancer_pruner_networks_reaped_total         counter
	instancer_catalog_challenges_total             gauge
	instancer_catalog_rejected_documents_total     counter
	instancer_http_requests_total                  counter{method, status}
*/
package metrics
