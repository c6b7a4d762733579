package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "service",
			Name:      "requests_total",
			Help:      "Requests handled on the reply channel.",
		},
		[]string{"cmd", "success"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "monitor",
			Subsystem: "service",
			Name:      "request_duration_seconds",
			Help:      "Request handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"cmd"},
	)
	publications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "service",
			Name:      "publications_total",
			Help:      "Publications pushed onto the publish channel.",
		},
		[]string{"type"},
	)
	decodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "service",
			Name:      "decode_errors_total",
			Help:      "Requests dropped because the bytes would not decode.",
		},
	)
	droppedPublications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "service",
			Name:      "dropped_publications_total",
			Help:      "Publications discarded for slow subscribers under the drop policy.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requests, requestDuration, publications, decodeErrors, droppedPublications)
	})
}

func RecordRequest(cmd string, success bool, duration time.Duration) {
	requests.WithLabelValues(cmd, strconv.FormatBool(success)).Inc()
	requestDuration.WithLabelValues(cmd).Observe(duration.Seconds())
}

func RecordPublication(pubType string) {
	publications.WithLabelValues(pubType).Inc()
}

func RecordDecodeError() {
	decodeErrors.Inc()
}

func RecordDroppedPublication() {
	droppedPublications.Inc()
}
