package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	methodDurationSeconds  *prometheus.HistogramVec
	methodFallbacksTotal   *prometheus.CounterVec
	emergencyFallbackTotal prometheus.Counter
	integratedConfidence   prometheus.Histogram
	resultCacheTotal       *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the scoring API and engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_api_requests_total",
			Help: "Total number of scoring API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scoring_api_latency_seconds",
			Help:    "Latency distribution for scoring API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_api_errors_total",
			Help: "Total number of error responses returned by scoring endpoints.",
		}, []string{"method", "route", "status"})

		methodDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scoring_method_duration_seconds",
			Help:    "Duration of individual scoring methods.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"method"})

		methodFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_method_fallbacks_total",
			Help: "Number of scoring methods replaced by the neutral fallback result.",
		}, []string{"method", "reason"})

		emergencyFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scoring_emergency_fallbacks_total",
			Help: "Number of integrations that returned the emergency fallback result.",
		})

		integratedConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scoring_integrated_confidence",
			Help:    "Distribution of the agreement-based confidence of integrated results.",
			Buckets: []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		})

		resultCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_result_cache_total",
			Help: "Result cache lookups by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			methodDurationSeconds, methodFallbacksTotal, emergencyFallbackTotal,
			integratedConfidence, resultCacheTotal,
		)
	})
}

// APIRequests exposes the counter for scoring API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for scoring API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for scoring API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// MethodDuration exposes the per-method scoring latency histogram.
func MethodDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return methodDurationSeconds
}

// MethodFallbacks exposes the per-method fallback counter.
func MethodFallbacks() *prometheus.CounterVec {
	RegisterMetrics()
	return methodFallbacksTotal
}

// EmergencyFallbacks exposes the emergency fallback counter.
func EmergencyFallbacks() prometheus.Counter {
	RegisterMetrics()
	return emergencyFallbackTotal
}

// IntegratedConfidence exposes the confidence histogram.
func IntegratedConfidence() prometheus.Histogram {
	RegisterMetrics()
	return integratedConfidence
}

// ResultCache exposes the result cache outcome counter.
func ResultCache() *prometheus.CounterVec {
	RegisterMetrics()
	return resultCacheTotal
}
