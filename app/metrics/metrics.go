package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vesselwatch/vesselwatch/app/ingest"
	"github.com/vesselwatch/vesselwatch/app/stream"
)

const namespace = "vesselwatch"

// NewRegistry exposes the pipeline's atomic health counters as Prometheus
// metrics. The atomics stay the source of truth; collectors read them on
// scrape.
func NewRegistry(stats *ingest.Stats, subscriberState func() stream.State) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	counter := func(name, help string, value func() float64) {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      name,
			Help:      help,
		}, value))
	}

	counter("messages_received_total", "Raw messages received from the feed",
		func() float64 { return float64(stats.Received.Load()) })
	counter("messages_normalized_total", "Messages normalized into position records",
		func() float64 { return float64(stats.Normalized.Load()) })
	counter("records_written_total", "Position records written to storage",
		func() float64 { return float64(stats.Written.Load()) })
	counter("records_dropped_total", "Records dropped by the backpressure policy",
		func() float64 { return float64(stats.Dropped.Load()) })
	counter("write_failures_transient_total", "Transient write failures that were retried",
		func() float64 { return float64(stats.TransientWriteFailures.Load()) })
	counter("write_failures_permanent_total", "Permanent write failures",
		func() float64 { return float64(stats.PermanentWriteFailures.Load()) })

	for reason, load := range rejectionLoaders(stats) {
		load := load
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "ingest",
			Name:        "messages_rejected_total",
			Help:        "Messages rejected by the normalizer",
			ConstLabels: prometheus.Labels{"reason": reason},
		}, load))
	}

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "subscriber_state",
		Help:      "Subscriber lifecycle state (0=disconnected 1=connecting 2=streaming 3=backoff 4=stopped)",
	}, func() float64 { return float64(subscriberState()) }))

	return reg
}

func rejectionLoaders(stats *ingest.Stats) map[string]func() float64 {
	loaders := make(map[string]func() float64)
	for reason := range stats.RejectedByReason() {
		reason := reason
		loaders[reason] = func() float64 {
			return float64(stats.RejectedByReason()[reason])
		}
	}
	return loaders
}

// Handler returns the HTTP handler serving the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
