/*
Package metrics defines the Prometheus collectors and health endpoints of
olrunner.

All collectors are registered with the default registry at package init and
exposed by NewServeMux together with /health, /ready and /live:

	olrunner_lifecycle_state{state}                  current lifecycle state (1 = active)
	olrunner_startup_duration_seconds{outcome}       launch to ready or failure
	olrunner_readiness_polls_total                   log poll cycles
	olrunner_process_kills_total                     forced terminations
	olrunner_mgmt_requests_total{method,outcome}     management API requests
	olrunner_mgmt_request_duration_seconds{method}   request latency including retries
	olrunner_mgmt_retries_total                      retries after transient failures
	olrunner_applications{state}                     applications by state (Collector)
	olrunner_shutdown_attempts_total{tier,outcome}   shutdown tier results

Health components are updated by the orchestrator. /ready reports 503 until
both the server and the management component are healthy.

Timing a request:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ManagementRequestDuration, "GET")
*/
package metrics
