// Package metrics provides Prometheus instrumentation for the chat server.
// It exposes a gauge for the registered participant count, counters for
// message throughput and evictions, and a histogram for HTTP latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ParticipantsActive tracks the current number of registered participants.
	ParticipantsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_participants_active",
		Help: "Current number of registered participants",
	})

	// MessagesTotal counts messages appended to the log, labeled by type:
	// "message", "private_message", or "status".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of messages appended to the log",
	}, []string{"type"})

	// EvictionsTotal counts participants removed by the presence sweep.
	EvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_evictions_total",
		Help: "Total number of participants evicted for inactivity",
	})

	// RequestDuration records HTTP handler latency in seconds per route.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"route", "method"})
)

func init() {
	prometheus.MustRegister(
		ParticipantsActive,
		MessagesTotal,
		EvictionsTotal,
		RequestDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
