package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "repo_gateway_gerrit_probe_duration_seconds",
		Help:    "Duration of Gerrit verification probes",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"outcome"})

	probeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repo_gateway_gerrit_probe_total",
		Help: "Gerrit verification probes grouped by outcome and reason",
	}, []string{"outcome", "reason"})

	probeAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "repo_gateway_gerrit_probe_attempts",
		Help:    "Candidate endpoints requested per probe",
		Buckets: []float64{0, 1, 2, 3},
	})

	upstreamTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repo_gateway_backend_requests_total",
		Help: "Backend pass-through calls grouped by route and backend status",
	}, []string{"route", "status"})
)

// ObserveProbe records the outcome of a Gerrit probe.
func ObserveProbe(isGerrit bool, reason string, attempts int, duration time.Duration) {
	outcome := "not_gerrit"
	if isGerrit {
		outcome = "gerrit"
	}
	if reason == "" {
		reason = "none"
	}
	probeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	probeTotal.WithLabelValues(outcome, reason).Inc()
	probeAttempts.Observe(float64(attempts))
}

// ObserveUpstream records a backend call. A zero status means the backend was unreachable.
func ObserveUpstream(route string, status int) {
	label := "unreachable"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamTotal.WithLabelValues(route, label).Inc()
}
