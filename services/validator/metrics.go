package validator

import (
	"sync"

	"github.com/bsv-blockchain/marabu/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusValidateTransaction    prometheus.Histogram
	prometheusInvalidTransactions    *prometheus.CounterVec
	prometheusValidatedTransactions  prometheus.Counter
	prometheusSignatureVerifications prometheus.Counter
	prometheusTransactionInputsPerTx prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusValidateTransaction = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "validator",
			Name:      "validate_transaction",
			Help:      "Histogram of transaction validation",
			Buckets:   util.MetricsBucketsMicroSeconds,
		},
	)

	prometheusInvalidTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "validator",
			Name:      "invalid_transactions",
			Help:      "Number of transactions found invalid, by error name",
		},
		[]string{"reason"},
	)

	prometheusValidatedTransactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "validator",
			Name:      "validated_transactions",
			Help:      "Number of transactions found valid",
		},
	)

	prometheusSignatureVerifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "validator",
			Name:      "signature_verifications",
			Help:      "Number of input signatures verified",
		},
	)

	prometheusTransactionInputsPerTx = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "validator",
			Name:      "transaction_inputs",
			Help:      "Histogram of the number of inputs per validated transaction",
			Buckets:   util.MetricsBucketsSizeSmall,
		},
	)
}
