// Package metrics counts normalization outcomes and exports them in the
// Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quidome/tznormalize-go/pkg/normalize"
)

// File statuses.
const (
	StatusClean       = "clean"
	StatusSkipped     = "skipped"
	StatusReview      = "needs-review"
	StatusUnavailable = "unavailable"
)

// Collector implements normalize.Observer. It is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	fields   *prometheus.CounterVec
	files    *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{registry: reg}

	c.fields = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tznormalize_fields_total",
		Help: "Timestamp fields processed, by outcome",
	}, []string{"outcome"})
	reg.MustRegister(c.fields)

	c.files = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tznormalize_files_total",
		Help: "Files processed, by status",
	}, []string{"status"})
	reg.MustRegister(c.files)

	c.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tznormalize_file_duration_seconds",
		Help:    "Time spent normalizing one file",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
	reg.MustRegister(c.duration)

	// Every outcome shows up in the export, even at zero.
	for _, o := range []normalize.Outcome{
		normalize.OutcomeNormalized,
		normalize.OutcomeAlreadyUTC,
		normalize.OutcomeSkippedMalformed,
		normalize.OutcomeSkippedUnsupported,
		normalize.OutcomeDegraded,
	} {
		c.fields.WithLabelValues(string(o))
	}

	return c
}

func (c *Collector) Observe(r normalize.Report, elapsed time.Duration) {
	for outcome, n := range r.Counts() {
		c.fields.WithLabelValues(string(outcome)).Add(float64(n))
	}
	c.files.WithLabelValues(Status(r)).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// WriteTextfile writes all metrics to path, for the node_exporter textfile
// collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Status classifies a report for the files counter.
func Status(r normalize.Report) string {
	switch {
	case r.Err != nil:
		return StatusUnavailable
	case r.HasSkips():
		return StatusSkipped
	case r.NeedsReview():
		return StatusReview
	default:
		return StatusClean
	}
}
