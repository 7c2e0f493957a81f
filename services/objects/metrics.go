package objects

import (
	"sync"

	"github.com/bsv-blockchain/marabu/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusObjectsStored     *prometheus.CounterVec
	prometheusRetrievals        prometheus.Counter
	prometheusRetrievalTimeouts prometheus.Counter
	prometheusRetrieveDuration  prometheus.Histogram
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusObjectsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "objects",
			Name:      "stored",
			Help:      "Number of new objects stored, by type",
		},
		[]string{"type"},
	)

	prometheusRetrievals = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "objects",
			Name:      "retrievals",
			Help:      "Number of objects requested from peers",
		},
	)

	prometheusRetrievalTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marabu",
			Subsystem: "objects",
			Name:      "retrieval_timeouts",
			Help:      "Number of object requests that were not answered in time",
		},
	)

	prometheusRetrieveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marabu",
			Subsystem: "objects",
			Name:      "retrieve",
			Help:      "Histogram of object retrieval from peers",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)
}
