package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded on the telemetry_records_dropped_total counter.
const (
	DropReasonBufferFull   = "buffer_full"
	DropReasonNotRunning   = "not_running"
	DropReasonExportFailed = "export_failed"
)

// Metrics holds the pipeline's self-observability counters.
type Metrics struct {
	SpansEnqueued  prometheus.Counter
	LogsEnqueued   prometheus.Counter
	RecordsDropped *prometheus.CounterVec

	BatchesExported prometheus.Counter
	RecordsExported prometheus.Counter
	ExportRetries   prometheus.Counter
	ExportFailures  prometheus.Counter
	ExportDuration  prometheus.Histogram

	QueueLength *prometheus.GaugeVec
}

// NewMetrics creates the pipeline metrics on the given registerer. Pass
// prometheus.DefaultRegisterer for production; tests use a private
// registry so repeated pipelines do not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SpansEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_spans_enqueued_total",
			Help: "Finished spans accepted by the export pipeline",
		}),
		LogsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_logs_enqueued_total",
			Help: "Log records accepted by the export pipeline",
		}),
		RecordsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_records_dropped_total",
			Help: "Telemetry records dropped before delivery",
		}, []string{"reason"}),
		BatchesExported: factory.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_batches_exported_total",
			Help: "Batches delivered to the collector",
		}),
		RecordsExported: factory.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_records_exported_total",
			Help: "Spans and log records delivered to the collector",
		}),
		ExportRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_export_retries_total",
			Help: "Transport attempts that failed and were retried",
		}),
		ExportFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_export_failures_total",
			Help: "Batches abandoned after exhausting the retry budget",
		}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "telemetry_export_duration_seconds",
			Help:    "Wall time of flush attempts including retries",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		QueueLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "telemetry_queue_length",
			Help: "Records currently buffered awaiting flush",
		}, []string{"signal"}),
	}
}
