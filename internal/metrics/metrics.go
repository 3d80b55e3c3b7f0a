// Package metrics exposes Prometheus instruments for ingestion runs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricJobsStarted     = "jobs_started_total"
	MetricJobsFinished    = "jobs_finished_total"
	MetricRowsIngested    = "rows_ingested_total"
	MetricBatchDuration   = "batch_duration_seconds"
	MetricJobsRunning     = "jobs_running"
	MetricActivityDropped = "activity_dropped_total"
)

var CounterJobsStarted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "datapuur",
		Name:      MetricJobsStarted,
		Help:      "Ingestion jobs accepted, by source kind.",
	},
	[]string{"kind"},
)

var CounterJobsFinished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "datapuur",
		Name:      MetricJobsFinished,
		Help:      "Ingestion jobs that reached a terminal status.",
	},
	[]string{"status"},
)

var CounterRowsIngested = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "datapuur",
		Name:      MetricRowsIngested,
		Help:      "Rows appended to artifacts, by source format.",
	},
	[]string{"format"},
)

var HistogramBatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "datapuur",
		Name:      MetricBatchDuration,
		Help:      "Time to read and append one batch.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	},
)

var GaugeJobsRunning = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "datapuur",
		Name:      MetricJobsRunning,
		Help:      "Ingestion jobs currently executing.",
	},
)

var CounterActivityDropped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "datapuur",
		Name:      MetricActivityDropped,
		Help:      "Activity records dropped because the audit buffer was full.",
	},
)

func init() {
	prometheus.MustRegister(CounterJobsStarted)
	prometheus.MustRegister(CounterJobsFinished)
	prometheus.MustRegister(CounterRowsIngested)
	prometheus.MustRegister(HistogramBatchDuration)
	prometheus.MustRegister(GaugeJobsRunning)
	prometheus.MustRegister(CounterActivityDropped)
}
