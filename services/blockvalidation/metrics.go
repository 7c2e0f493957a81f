package blockvalidation

import (
	"sync"

	"github.com/bsv-blockchain/marabu/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBlockValidationValidateBlock     prometheus.Histogram
	prometheusBlockValidationValidatedBlocks   prometheus.Counter
	prometheusBlockValidationRejectedBlocks    *prometheus.CounterVec
	prometheusBlockValidationRejectedCacheHits prometheus.Counter
	prometheusBlockValidationTransitions       *prometheus.CounterVec
	prometheusBlockValidationTransactions      prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusBlockValidationValidateBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "validate_block",
			Help:      "Histogram of block validation, including parent and transaction retrieval",
			Buckets:   util.MetricsBucketsMilliLongSeconds,
		},
	)

	prometheusBlockValidationValidatedBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "validated_blocks",
			Help:      "Number of blocks found valid",
		},
	)

	prometheusBlockValidationRejectedBlocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "rejected_blocks",
			Help:      "Number of blocks rejected, by error name",
		},
		[]string{"reason"},
	)

	prometheusBlockValidationRejectedCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "rejected_cache_hits",
			Help:      "Number of submissions refused from the rejected block cache",
		},
	)

	prometheusBlockValidationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "state_transitions",
			Help:      "Number of validation state machine transitions, by destination state",
		},
		[]string{"state"},
	)

	prometheusBlockValidationTransactions = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "blockvalidation",
			Name:      "block_transactions",
			Help:      "Histogram of the number of transactions per validated block",
			Buckets:   util.MetricsBucketsSizeSmall,
		},
	)
}
