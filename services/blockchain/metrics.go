package blockchain

import (
	"sync"

	"github.com/bsv-blockchain/marabu/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlockchainHeight     prometheus.Gauge
	prometheusBlockchainReorgs     prometheus.Counter
	prometheusBlockchainReorgDepth prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockchainHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marabu",
			Subsystem: "blockchain",
			Name:      "height",
			Help:      "Height of the chain tip",
		},
	)

	prometheusBlockchainReorgs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "blockchain",
			Name:      "reorgs",
			Help:      "Number of tip changes that abandoned blocks",
		},
	)

	prometheusBlockchainReorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "blockchain",
			Name:      "reorg_depth",
			Help:      "Histogram of the number of blocks abandoned per reorg",
			Buckets:   util.MetricsBucketsSizeSmall,
		},
	)
}
