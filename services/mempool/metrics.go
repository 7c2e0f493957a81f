package mempool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusMempoolSize     prometheus.Gauge
	prometheusMempoolAdmitted prometheus.Counter
	prometheusMempoolRejected prometheus.Counter
	prometheusMempoolRebases  prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusMempoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marabu",
			Subsystem: "mempool",
			Name:      "size",
			Help:      "Number of pending transactions",
		},
	)

	prometheusMempoolAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "mempool",
			Name:      "admitted",
			Help:      "Number of transactions admitted on arrival",
		},
	)

	prometheusMempoolRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "mempool",
			Name:      "rejected",
			Help:      "Number of arriving transactions that did not fit the mempool",
		},
	)

	prometheusMempoolRebases = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "mempool",
			Name:      "rebases",
			Help:      "Number of times the mempool was rebuilt on a new chain tip",
		},
	)
}
