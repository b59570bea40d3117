package serve

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the server's instrumentation on a private registry, so
// several servers can coexist in one process.
type metrics struct {
	registry    *prometheus.Registry
	documents   prometheus.Counter
	spans       prometheus.Counter
	resolutions *prometheus.CounterVec
	duration    prometheus.Histogram
	inFlight    prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tsvlink_documents_total",
			Help: "Count of documents converted",
		}),
		spans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tsvlink_spans_total",
			Help: "Count of entity spans across converted documents",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tsvlink_resolutions_total",
			Help: "Count of span lookups by outcome",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tsvlink_convert_seconds",
			Help:    "Wall time of full document conversions",
			Buckets: prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tsvlink_convert_in_flight",
			Help: "Number of conversions currently running",
		}),
	}
	m.registry.MustRegister(m.documents, m.spans, m.resolutions, m.duration, m.inFlight)
	return m
}

func (m *metrics) observe(resolved, noMatch, failed int, seconds float64) {
	m.documents.Inc()
	m.spans.Add(float64(resolved + noMatch + failed))
	m.resolutions.WithLabelValues("resolved").Add(float64(resolved))
	m.resolutions.WithLabelValues("no_match").Add(float64(noMatch))
	m.resolutions.WithLabelValues("failed").Add(float64(failed))
	m.duration.Observe(seconds)
}
