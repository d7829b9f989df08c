package metrics

import (
	"net/http"
	"time"

	"booking-service/internal/application"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booking"

var _ application.Metrics = (*Recorder)(nil)

// Recorder exports engine and cache observations on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	snapshotTime  prometheus.Histogram
	snapshotFails prometheus.Counter
	invalidations *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Count of booking operations by outcome.",
		}, []string{"op", "outcome"}),
		snapshotTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_compute_seconds",
			Help:      "Time spent computing availability snapshots.",
			Buckets:   prometheus.DefBuckets,
		}),
		snapshotFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_failures_total",
			Help:      "Count of failed availability snapshot computations.",
		}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Count of availability cache invalidations by source.",
		}, []string{"source"}),
	}
	r.registry.MustRegister(
		r.operations, r.snapshotTime, r.snapshotFails, r.invalidations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveOperation(op, outcome string) {
	r.operations.WithLabelValues(op, outcome).Inc()
}

func (r *Recorder) ObserveSnapshot(took time.Duration, err error) {
	r.snapshotTime.Observe(took.Seconds())
	if err != nil {
		r.snapshotFails.Inc()
	}
}

func (r *Recorder) ObserveInvalidation(source string) {
	r.invalidations.WithLabelValues(source).Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
