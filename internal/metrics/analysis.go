package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Analysis, index and search Prometheus metrics.
var (
	AnalysisBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_batches_total",
			Help:      "Analysed complaint batches by risk level",
		},
		[]string{"risk"},
	)

	AnalysisBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_batch_records",
			Help:      "Number of complaints per analysed batch",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	IndexBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Embedding index build duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	IndexRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_records_total",
			Help:      "Records processed by index builds by outcome",
		},
		[]string{"status"}, // "ok" / "error" / "skipped"
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Similarity searches by outcome",
		},
		[]string{"status"},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to external vehicle data services",
		},
		[]string{"service", "status"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Analysis sessions held by the in-memory store",
		},
	)
)

var analysisOnce sync.Once

// RegisterAnalysisMetrics registers analysis, index, search and upstream collectors. Idempotent.
func RegisterAnalysisMetrics() {
	analysisOnce.Do(func() {
		prometheus.MustRegister(
			AnalysisBatchesTotal,
			AnalysisBatchSize,
			IndexBuildDuration,
			IndexRecordsTotal,
			SearchRequestsTotal,
			UpstreamRequestsTotal,
			SessionsActive,
		)
	})
}
