package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics

	basketMetricsOnce sync.Once
	basketRegistry    *BasketMetrics
)

// HTTP returns the lazily-initialised registry recording basketd API
// activity.
func HTTP() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "basketvault",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "basketvault",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "basketvault",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency, httpRegistry.throttles)
	})
	return httpRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *httpMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *httpMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// BasketMetrics captures vault operation outcomes and token flows.
type BasketMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	minted     *prometheus.CounterVec
	burned     *prometheus.CounterVec
}

// Basket returns the singleton metrics registry for vault operations.
func Basket() *BasketMetrics {
	basketMetricsOnce.Do(func() {
		basketRegistry = &BasketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "basketvault",
				Subsystem: "vault",
				Name:      "operations_total",
				Help:      "Count of vault operations segmented by operation, outcome and error kind.",
			}, []string{"operation", "outcome", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "basketvault",
				Subsystem: "vault",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for vault operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			minted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "basketvault",
				Subsystem: "vault",
				Name:      "basket_tokens_minted_total",
				Help:      "Basket tokens minted by deposits, segmented by basket token.",
			}, []string{"basket"}),
			burned: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "basketvault",
				Subsystem: "vault",
				Name:      "basket_tokens_burned_total",
				Help:      "Basket tokens burned by redemptions, segmented by basket token.",
			}, []string{"basket"}),
		}
		prometheus.MustRegister(
			basketRegistry.operations,
			basketRegistry.latency,
			basketRegistry.minted,
			basketRegistry.burned,
		)
	})
	return basketRegistry
}

// RecordOperation records the outcome of a vault operation. kind is the error
// classification and is empty on success.
func (m *BasketMetrics) RecordOperation(operation, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if kind != "" {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome, kind).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordMint adds amount to the minted counter of basket.
func (m *BasketMetrics) RecordMint(basket string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.minted.WithLabelValues(basket).Add(float64(amount))
}

// RecordBurn adds amount to the burned counter of basket.
func (m *BasketMetrics) RecordBurn(basket string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.burned.WithLabelValues(basket).Add(float64(amount))
}
