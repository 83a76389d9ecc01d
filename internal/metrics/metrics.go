// Package metrics exposes prometheus collectors for the caigo client.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caigo_transport_requests_total",
			Help: "Total number of transport request/response calls",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caigo_transport_request_duration_seconds",
			Help:    "Transport request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	streamFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caigo_stream_frames_total",
			Help: "Total number of frames received on duplex streams",
		},
		[]string{"command"},
	)

	streamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caigo_streams_total",
			Help: "Total number of duplex streams opened",
		},
		[]string{"status"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "caigo_active_sessions",
			Help: "Number of sessions currently open",
		},
	)
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		requestDuration,
		streamFramesTotal,
		streamsTotal,
		activeSessions,
	)
}

// RecordRequest records one request/response call.
func RecordRequest(method, path string, status int, duration time.Duration) {
	requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFrame records one frame received on a duplex stream.
func RecordFrame(command string) {
	streamFramesTotal.WithLabelValues(command).Inc()
}

// RecordStreamOpen records the outcome of a stream dial.
func RecordStreamOpen(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	streamsTotal.WithLabelValues(status).Inc()
}

// SessionOpened increments the active session gauge.
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func SessionClosed() {
	activeSessions.Dec()
}
