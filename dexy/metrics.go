package dexy

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricNameSpace = "stableminer"
)

var (
	quotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Subsystem: "dexy",
			Name:      "quotes_total",
			Help:      "quotes computed, by resolved mode",
		},
		[]string{"mode"},
	)

	mintsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Subsystem: "dexy",
			Name:      "mints_total",
			Help:      "mint attempts, by mode and result",
		},
		[]string{"mode", "result"},
	)

	stateLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: MetricNameSpace,
			Subsystem: "dexy",
			Name:      "state_load_seconds",
			Help:      "time to load protocol state from the node",
			Buckets:   prometheus.DefBuckets,
		},
	)

	stateLoadFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Subsystem: "dexy",
			Name:      "state_load_failures_total",
			Help:      "protocol state loads that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		quotesTotal,
		mintsTotal,
		stateLoadDuration,
		stateLoadFailures,
	)
}

func metricQuote(mode Mode) {
	quotesTotal.WithLabelValues(string(mode)).Inc()
}

func metricMint(mode Mode, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	mintsTotal.WithLabelValues(string(mode), result).Inc()
}
