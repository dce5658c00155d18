package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jjscheduler/sched/internal/health"
)

var (
	// Poll loop

	DueJobsClaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "due_jobs_claimed_total",
		Help:      "Total jobs picked up by a poll tick, scheduled or immediate.",
	})

	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of a single job dispatch, by channel.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"channel"})

	DispatchOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "dispatch_outcomes_total",
		Help:      "Total dispatch attempts, by channel and outcome.",
	}, []string{"channel", "outcome"})

	JobsPausedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "jobs_paused_total",
		Help:      "Total times a recurring job was paused because no next run time could be computed.",
	})

	PollCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "poll_cycle_duration_seconds",
		Help:      "Time taken for one poll tick, including immediate drain and scheduled dispatch.",
		Buckets:   prometheus.DefBuckets,
	})

	// Immediate-run control plane

	ImmediateQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scheduler",
		Name:      "immediate_queue_depth",
		Help:      "Current number of job ids waiting in the immediate-run queue.",
	})

	ImmediateInflightSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "immediate_inflight_skipped_total",
		Help:      "Total immediate-run requests skipped because the job was already in flight.",
	})

	// Control plane HTTP

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "http_request_duration_seconds",
		Help:      "Control plane HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "http_requests_total",
		Help:      "Total control plane HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		DueJobsClaimedTotal,
		DispatchDuration,
		DispatchOutcomesTotal,
		JobsPausedTotal,
		PollCycleDuration,
		ImmediateQueueDepth,
		ImmediateInflightSkippedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer exposes Prometheus scrape output plus liveness/readiness
// endpoints, on the same port that an operator's existing scrape config
// and uptime checks already point at.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		writeHealth(w, status, result)
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, status int, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}
