package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreQueryLatency records comment store latency by driver and operation.
	StoreQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "threadline_store_query_latency_seconds",
		Help:    "Comment store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "operation"})

	// CommentOperations counts service operations by name and outcome.
	CommentOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_comment_operations_total",
		Help: "Comment service operations by outcome",
	}, []string{"operation", "outcome"})

	// CommentEvents counts realtime events emitted by event name.
	CommentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_comment_events_total",
		Help: "Realtime comment events emitted",
	}, []string{"event"})

	// BroadcastFailures counts events that could not be handed to a transport.
	BroadcastFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_broadcast_failures_total",
		Help: "Realtime events that failed to publish",
	}, []string{"transport"})

	// ReplyCountDrift counts parent replyCount updates that failed after the
	// reply itself was written.
	ReplyCountDrift = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_reply_count_drift_total",
		Help: "Parent reply count updates that failed after the reply write",
	}, []string{"driver"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackStoreQuery returns a function that records query latency when called (e.g. defer).
func TrackStoreQuery(driver, operation string) func() {
	start := time.Now()
	return func() {
		StoreQueryLatency.WithLabelValues(driver, operation).Observe(time.Since(start).Seconds())
	}
}

// Outcome labels an operation result for CommentOperations.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
