package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlocksRead     *prometheus.CounterVec
	prometheusBlocksWritten  *prometheus.CounterVec
	prometheusBlockErrors    *prometheus.CounterVec
	prometheusQueueHighWater *prometheus.GaugeVec
	prometheusPassDuration   *prometheus.HistogramVec
)

var (
	prometheusMetricsInitOnce sync.Once
)

func init() {
	initPrometheusMetrics()
}

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlocksRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rasterstream",
			Subsystem: "pipeline",
			Name:      "blocks_read",
			Help:      "Number of blocks read by producers",
		},
		[]string{"pass"},
	)

	prometheusBlocksWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rasterstream",
			Subsystem: "pipeline",
			Name:      "blocks_written",
			Help:      "Number of blocks written by writers",
		},
		[]string{"pass"},
	)

	prometheusBlockErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rasterstream",
			Subsystem: "pipeline",
			Name:      "block_errors",
			Help:      "Number of failed block reads and writes",
		},
		[]string{"pass", "op"},
	)

	prometheusQueueHighWater = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rasterstream",
			Subsystem: "pipeline",
			Name:      "queue_high_water",
			Help:      "Highest queue occupancy seen during the last pass",
		},
		[]string{"pass", "queue"},
	)

	prometheusPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rasterstream",
			Subsystem: "pipeline",
			Name:      "pass_duration_seconds",
			Help:      "Histogram of pass durations",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
		},
		[]string{"pass"},
	)
}
