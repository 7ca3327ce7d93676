package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeOK labels analyses that completed fully.
	OutcomeOK = "ok"
	// OutcomeDegraded labels analyses that fell back to a degraded result.
	OutcomeDegraded = "degraded"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Name:      "analyses_total",
			Help:      "Total number of error analyses, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Name:      "analysis_seconds",
			Help:      "Single-error analysis latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	batchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Name:      "batch_seconds",
			Help:      "Batch analysis latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	batchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Name:      "batch_size",
			Help:      "Number of entries per analyzed batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	batchesTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Name:      "batches_truncated_total",
			Help:      "Batches whose trend and global correlation phases were cut by a deadline.",
		},
	)

	historySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "faultline",
			Name:      "history_entries",
			Help:      "Observations currently retained in the correlation history.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Name:      "http_requests_total",
			Help:      "HTTP requests partitioned by method, route template and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Name:      "http_request_seconds",
			Help:      "HTTP request latency in seconds by route template.",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"route"},
	)
)

// Register attaches faultline collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		batchDurationSeconds,
		batchSize,
		batchesTruncatedTotal,
		historySize,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records one single-error analysis.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeDegraded {
		label = OutcomeOK
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// AddAnalyses bumps the analysis counter for n entries analyzed inside a
// batch, where no per-entry latency exists.
func AddAnalyses(n int, outcome string) {
	if n <= 0 {
		return
	}
	label := outcome
	if label != OutcomeDegraded {
		label = OutcomeOK
	}
	analysesTotal.WithLabelValues(label).Add(float64(n))
}

// ObserveBatch records a batch run and how many entries it carried.
func ObserveBatch(duration time.Duration, entries int, truncated bool) {
	if duration < 0 {
		duration = 0
	}
	batchDurationSeconds.Observe(duration.Seconds())
	batchSize.Observe(float64(entries))
	if truncated {
		batchesTruncatedTotal.Inc()
	}
}

// SetHistorySize reports the current correlation history occupancy.
func SetHistorySize(n int) {
	historySize.Set(float64(n))
}

// ObserveHTTPRequest records one served HTTP request against its route template.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	if duration < 0 {
		duration = 0
	}
	httpRequestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}
