package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fashion_search"

// Метрики поиска и восстановления.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Search requests by routing path and winning strategy",
		},
		[]string{"path", "strategy"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "End-to-end search latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"path"},
	)

	TierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tier_duration_seconds",
			Help:      "Latency of a single ranking tier query",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"strategy"},
	)

	SignalFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_failures_total",
			Help:      "Signals that were unavailable and absorbed by the ranking policy",
		},
		[]string{"signal"},
	)

	VectorRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_repairs_total",
			Help:      "Vectors padded, truncated or sanitized before use",
		},
		[]string{"kind"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_total",
			Help:      "Search cache lookups",
		},
		[]string{"result"}, // hit / miss / error
	)

	ExternalQuotaRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_quota_rejected_total",
			Help:      "External image searches rejected by the daily quota",
		},
	)

	HealTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heal_total",
			Help:      "Product self-heal attempts",
		},
		[]string{"result"}, // healed / skipped / failed
	)
)

var registerOnce sync.Once

// Register регистрирует все метрики в реестре по умолчанию. Повторные вызовы безопасны.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			SearchRequestsTotal,
			SearchDuration,
			TierDuration,
			SignalFailuresTotal,
			VectorRepairsTotal,
			CacheTotal,
			ExternalQuotaRejectedTotal,
			HealTotal,
		)
	})
}

// ObserveTier записывает длительность запроса уровня с момента start.
func ObserveTier(strategy string, start time.Time) {
	TierDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}
