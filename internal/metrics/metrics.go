package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geosplit"

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds the split pipeline metrics. A nil *Collector is valid and records nothing,
// so components never need to check whether metrics are enabled.
type Collector struct {
	Registry *prometheus.Registry

	recordsRead      prometheus.Counter
	recordsStaged    prometheus.Counter
	recordsSkipped   prometheus.Counter
	documentsWritten prometheus.Counter
	runs             *prometheus.CounterVec
	runDuration      prometheus.Histogram
	activeFinalizers prometheus.Gauge
}

// New creates a collector on a private registry that also carries the Go and process collectors.
func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegisterer(registry, registry)
}

// NewWithRegisterer creates a collector that registers on reg. registry may be nil when the
// caller serves metrics some other way.
func NewWithRegisterer(registry *prometheus.Registry, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		Registry: registry,
		recordsRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Records read from datasets",
		}),
		recordsStaged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_staged_total",
			Help:      "Records appended to a staging unit",
		}),
		recordsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Records rejected by the run filter",
		}),
		documentsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_written_total",
			Help:      "Group documents written to a destination",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Split runs by outcome and error kind",
		}, []string{"outcome", "kind"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of split runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		activeFinalizers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_finalizers",
			Help:      "Finalization tasks currently running",
		}),
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.Registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordRead() {
	if c != nil {
		c.recordsRead.Inc()
	}
}

func (c *Collector) RecordStaged() {
	if c != nil {
		c.recordsStaged.Inc()
	}
}

func (c *Collector) RecordSkipped() {
	if c != nil {
		c.recordsSkipped.Inc()
	}
}

func (c *Collector) DocumentWritten() {
	if c != nil {
		c.documentsWritten.Inc()
	}
}

// FinalizerStarted returns the func that marks the task done.
func (c *Collector) FinalizerStarted() func() {
	if c == nil {
		return func() {}
	}
	c.activeFinalizers.Inc()
	return c.activeFinalizers.Dec
}

// RunFinished records one run. kind is empty on success.
func (c *Collector) RunFinished(kind string, elapsed time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeSuccess
	if kind != "" {
		outcome = OutcomeFailure
	}
	c.runs.WithLabelValues(outcome, kind).Inc()
	c.runDuration.Observe(elapsed.Seconds())
}
