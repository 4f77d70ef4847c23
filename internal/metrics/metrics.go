package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every reviewguide collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	BackendRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewguide_backend_requests_total",
			Help: "Total number of requests sent to the analysis backend.",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok, backend_error, network_error
	)

	BackendRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewguide_backend_request_duration_seconds",
			Help:    "Duration of requests to the analysis backend.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"endpoint"},
	)

	GuidePollsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewguide_guide_polls_total",
			Help: "Total number of purchase guide status queries.",
		},
	)

	GuideOutcomesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewguide_guide_outcomes_total",
			Help: "Terminal purchase guide poll outcomes.",
		},
		[]string{"outcome"}, // completed, failed, timed_out, cancelled
	)

	SessionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewguide_sessions_total",
			Help: "Retrieval sessions by result of the initial submit.",
		},
		[]string{"result"}, // ready, polling, failed
	)
)

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
