// Package metrics exposes prometheus instrumentation for dispatch,
// retries, caching and model residency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelmux/modelmux/pkg/types"
)

var (
	// Dispatch metrics
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmux_dispatch_total",
			Help: "Total dispatch attempts per capability, provider and outcome",
		},
		[]string{"capability", "provider", "outcome"}, // outcome: success|unavailable|transient|permanent|skipped
	)

	DispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelmux_dispatch_latency_seconds",
			Help:    "End-to-end dispatch latency in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"capability"},
	)

	// Retry metrics
	RetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmux_retry_attempts_total",
			Help: "Total retry attempts after a transient failure",
		},
		[]string{"provider", "operation"},
	)

	// Cache metrics
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmux_cache_requests_total",
			Help: "Response cache lookups by result",
		},
		[]string{"operation", "result"}, // result: hit|miss
	)

	// Usage metrics
	Tokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmux_tokens_total",
			Help: "Total tokens consumed by remote calls",
		},
		[]string{"provider", "model", "type"}, // type: prompt|completion
	)

	CostUSD = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmux_cost_usd_total",
			Help: "Estimated spend in USD per provider and model",
		},
		[]string{"provider", "model"},
	)

	// Residency metrics
	LoadedModels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelmux_loaded_models",
			Help: "Number of local models currently resident in memory",
		},
	)

	ResidentMB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelmux_resident_megabytes",
			Help: "Estimated RAM held by resident local models in megabytes",
		},
	)
)

// Init registers all collectors with the default registry.
func Init() {
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(DispatchLatency)
	prometheus.MustRegister(RetryAttempts)
	prometheus.MustRegister(CacheRequests)
	prometheus.MustRegister(Tokens)
	prometheus.MustRegister(CostUSD)
	prometheus.MustRegister(LoadedModels)
	prometheus.MustRegister(ResidentMB)
}

// Handler returns the prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observer adapts the dispatch counter to the registry's observer hook.
type Observer struct{}

// ObserveDispatch implements providers.Observer.
func (Observer) ObserveDispatch(capability types.Capability, provider, outcome string) {
	DispatchTotal.WithLabelValues(string(capability), provider, outcome).Inc()
}

// RecordDispatchLatency records one completed dispatch.
func RecordDispatchLatency(capability types.Capability, elapsed time.Duration) {
	DispatchLatency.WithLabelValues(string(capability)).Observe(elapsed.Seconds())
}

// RecordRetry records one retry attempt.
func RecordRetry(provider, operation string) {
	RetryAttempts.WithLabelValues(provider, operation).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequests.WithLabelValues(operation, result).Inc()
}

// RecordUsage records token consumption and, when pricing is known,
// the estimated spend for one remote call.
func RecordUsage(provider, model string, usage types.Usage, pricing *types.ModelPricing) {
	Tokens.WithLabelValues(provider, model, "prompt").Add(float64(usage.PromptTokens))
	Tokens.WithLabelValues(provider, model, "completion").Add(float64(usage.CompletionTokens))
	if pricing != nil {
		cost := float64(usage.PromptTokens)/1000*pricing.InputPrice +
			float64(usage.CompletionTokens)/1000*pricing.OutputPrice
		CostUSD.WithLabelValues(provider, model).Add(cost)
	}
}

// SetResidency updates the local model residency gauges.
func SetResidency(loaded, usedMB int) {
	LoadedModels.Set(float64(loaded))
	ResidentMB.Set(float64(usedMB))
}
