package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "frames_processed_total",
		Help:      "Total number of Update() passes run by the arena processor",
	})

	RobotsDetected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Name:      "robots_detected",
		Help:      "Number of robots found in the most recently processed frame",
	})

	RobotsWithIdentity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Name:      "robots_with_identity",
		Help:      "Number of robots in the most recent frame with a non-nil id",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arena",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each Frame Source / Arena Processor pipeline stage",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"stage"})

	CaptureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "capture_failures_total",
		Help:      "Total number of camera read failures in the producer loop",
	})

	BusMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "bus_messages_published_total",
		Help:      "Total number of messages published to the message bus",
	}, []string{"subject"})

	BusCommandsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "bus_commands_received_total",
		Help:      "Total number of inbound commands received on the arena subject",
	}, []string{"cmd"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arena",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket dashboard connections",
	})

	IdentityChurn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "identity_churn_total",
		Help:      "Number of times a spatially-continuous bot's dot-count id changed between frames (diagnostic only, never fed back into identity)",
	})
)
