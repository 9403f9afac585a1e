// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Signal metrics
	SignalsProcessed       *prometheus.CounterVec
	RecommendationsHandled *prometheus.CounterVec

	// Trading metrics
	SwapsExecuted        *prometheus.CounterVec
	OpenPositions        prometheus.Gauge
	PositionsClosed      prometheus.Counter
	ReconciliationAlerts prometheus.Counter

	// Trust metrics
	MetricsRecomputes prometheus.Counter
	TokenRefreshes    prometheus.Counter

	// Collaborator latency metrics
	ProviderCallLatency *prometheus.HistogramVec
	ProviderCallErrors  *prometheus.CounterVec

	// Health metrics
	LastSignalProcessed prometheus.Gauge
	FeedReconnects      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trust_trader"
	}

	return &Metrics{
		// Signal metrics
		SignalsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "processed_total",
			Help:      "Total number of signals processed by type and outcome",
		}, []string{"signal", "outcome"}),
		RecommendationsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signals",
			Name:      "recommendations_handled_total",
			Help:      "Total number of recommendations handled by type and outcome",
		}, []string{"type", "outcome"}),

		// Trading metrics
		SwapsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "swaps_executed_total",
			Help:      "Total number of swaps executed by chain and mode",
		}, []string{"chain", "mode"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "open_positions",
			Help:      "Current number of open positions",
		}),
		PositionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed",
		}),
		ReconciliationAlerts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "reconciliation_alerts_total",
			Help:      "Total number of ledger writes that failed after an executed swap",
		}),

		// Trust metrics
		MetricsRecomputes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trust",
			Name:      "metrics_recomputes_total",
			Help:      "Total number of recommender metrics recomputations",
		}),
		TokenRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trust",
			Name:      "token_refreshes_total",
			Help:      "Total number of token performance refreshes",
		}),

		// Collaborator latency metrics
		ProviderCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collaborators",
			Name:      "call_latency_seconds",
			Help:      "Collaborator call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "method"}),
		ProviderCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collaborators",
			Name:      "call_errors_total",
			Help:      "Total number of collaborator call errors",
		}, []string{"provider", "method"}),

		// Health metrics
		LastSignalProcessed: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_signal_processed_timestamp",
			Help:      "Unix timestamp of last processed signal",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "feed_reconnects_total",
			Help:      "Total number of signal feed reconnections",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSignal records a processed signal and refreshes the health timestamp.
func RecordSignal(signal, outcome string, unixSeconds float64) {
	DefaultMetrics.SignalsProcessed.WithLabelValues(signal, outcome).Inc()
	DefaultMetrics.LastSignalProcessed.Set(unixSeconds)
}

// RecordRecommendation records a handled recommendation.
func RecordRecommendation(recType, outcome string) {
	DefaultMetrics.RecommendationsHandled.WithLabelValues(recType, outcome).Inc()
}

// RecordSwap records an executed swap.
func RecordSwap(chain, mode string) {
	DefaultMetrics.SwapsExecuted.WithLabelValues(chain, mode).Inc()
}

// SetOpenPositions updates the open position gauge.
func SetOpenPositions(n int) {
	DefaultMetrics.OpenPositions.Set(float64(n))
}

// RecordPositionClosed increments the closed position counter.
func RecordPositionClosed() {
	DefaultMetrics.PositionsClosed.Inc()
}

// RecordReconciliationAlert records a post-swap ledger write failure.
func RecordReconciliationAlert() {
	DefaultMetrics.ReconciliationAlerts.Inc()
}

// RecordMetricsRecompute increments the recommender metrics recompute counter.
func RecordMetricsRecompute() {
	DefaultMetrics.MetricsRecomputes.Inc()
}

// RecordTokenRefresh increments the token performance refresh counter.
func RecordTokenRefresh() {
	DefaultMetrics.TokenRefreshes.Inc()
}

// RecordProviderCall records collaborator call metrics.
func RecordProviderCall(provider, method string, seconds float64, err error) {
	DefaultMetrics.ProviderCallLatency.WithLabelValues(provider, method).Observe(seconds)
	if err != nil {
		DefaultMetrics.ProviderCallErrors.WithLabelValues(provider, method).Inc()
	}
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}
