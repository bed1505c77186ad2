package metrics

import (
	"net/http"

	"github.com/cuemby/olrunner/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle metrics
	LifecycleState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "olrunner_lifecycle_state",
			Help: "Current lifecycle state of the managed server (1 = current state)",
		},
		[]string{"state"},
	)

	StartupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "olrunner_startup_duration_seconds",
			Help:    "Time from launch to readiness or failure in seconds",
			Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180},
		},
		[]string{"outcome"},
	)

	ReadinessPolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "olrunner_readiness_polls_total",
			Help: "Total number of log poll cycles performed while awaiting readiness",
		},
	)

	ProcessKills = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "olrunner_process_kills_total",
			Help: "Total number of forced terminations of the launch process",
		},
	)

	// Management client metrics
	ManagementRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "olrunner_mgmt_requests_total",
			Help: "Total number of management API requests by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	ManagementRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "olrunner_mgmt_request_duration_seconds",
			Help:    "Management API request duration in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ManagementRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "olrunner_mgmt_retries_total",
			Help: "Total number of management API request retries after transient failures",
		},
	)

	Applications = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "olrunner_applications",
			Help: "Number of applications on the managed server by state",
		},
		[]string{"state"},
	)

	// Shutdown metrics
	ShutdownAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "olrunner_shutdown_attempts_total",
			Help: "Total number of shutdown tier attempts by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(LifecycleState)
	prometheus.MustRegister(StartupDuration)
	prometheus.MustRegister(ReadinessPolls)
	prometheus.MustRegister(ProcessKills)
	prometheus.MustRegister(ManagementRequestsTotal)
	prometheus.MustRegister(ManagementRequestDuration)
	prometheus.MustRegister(ManagementRetriesTotal)
	prometheus.MustRegister(Applications)
	prometheus.MustRegister(ShutdownAttempts)
}

// SetLifecycleState marks current as the only active lifecycle state
func SetLifecycleState(current types.LifecycleState) {
	for _, s := range types.AllStates {
		value := 0.0
		if s == current {
			value = 1
		}
		LifecycleState.WithLabelValues(string(s)).Set(value)
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServeMux returns a mux exposing /metrics, /health, /ready and /live
func NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/ready", ReadyHandler())
	mux.HandleFunc("/live", LivenessHandler())
	return mux
}
