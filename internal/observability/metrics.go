// Package observability provides Prometheus metrics for the adapter engine's
// diagnostics surface: unmapped and dropped frames, validation warnings, and
// upstream call outcomes. None of these are fatal to a caller; they exist so
// an operator can debug a misbehaving adapter configuration.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// UnmappedFramesTotal counts stream frames that matched no event mapping
	// rule, by upstream event type.
	UnmappedFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentflow_unmapped_frames_total",
			Help: "Stream frames matching no event mapping rule",
		},
		[]string{"event_type"},
	)

	// DroppedFramesTotal counts malformed frames dropped mid-stream, by the
	// processing stage that needed the frame's JSON payload.
	DroppedFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentflow_dropped_frames_total",
			Help: "Malformed stream frames dropped",
		},
		[]string{"stage"},
	)

	// ValidationWarningsTotal counts non-blocking adapter config findings
	// reported at save or import time.
	ValidationWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentflow_validation_warnings_total",
			Help: "Non-blocking adapter config validation findings",
		},
	)

	// UpstreamRequestsTotal counts outbound adapter calls by endpoint type
	// and outcome.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentflow_upstream_requests_total",
			Help: "Outbound adapter invocations",
		},
		[]string{"endpoint_type", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		UnmappedFramesTotal,
		DroppedFramesTotal,
		ValidationWarningsTotal,
		UpstreamRequestsTotal,
	)
}

// StreamObserver adapts the metrics to the stream mapper's diagnostics hook.
type StreamObserver struct{}

// UnmappedFrame implements sse.Observer.
func (StreamObserver) UnmappedFrame(eventType string) {
	UnmappedFramesTotal.WithLabelValues(eventType).Inc()
}

// DroppedFrame implements sse.Observer.
func (StreamObserver) DroppedFrame(stage string) {
	DroppedFramesTotal.WithLabelValues(stage).Inc()
}
