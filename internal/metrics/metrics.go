// Package metrics exposes Prometheus instrumentation for the detector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Cycle results recorded on CyclesTotal.
const (
	CycleCompleted = "completed"
	CycleSkipped   = "skipped"
	CycleAborted   = "aborted"
)

// Registry holds all Prometheus metrics. Each Registry carries its own
// prometheus registry so independent instances never collide.
type Registry struct {
	reg *prometheus.Registry

	CycleDuration prometheus.Histogram
	CyclesTotal   *prometheus.CounterVec

	SignalsEmitted prometheus.Counter
	SignalLogSize  prometheus.Gauge

	APIRequests        *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheHitRatio prometheus.Gauge
}

func NewRegistry() *Registry {
	m := &Registry{
		reg: prometheus.NewRegistry(),

		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pumpwatch_cycle_duration_seconds",
			Help:    "Duration of one full detection cycle in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpwatch_cycles_total",
			Help: "Detection cycles by result",
		}, []string{"result"}),

		SignalsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pumpwatch_signals_total",
			Help: "Total pump signals emitted",
		}),

		SignalLogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pumpwatch_signal_log_size",
			Help: "Signals accumulated in the in-memory log",
		}),

		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pumpwatch_api_requests_total",
			Help: "Outbound exchange API requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pumpwatch_api_request_duration_seconds",
			Help:    "Outbound exchange API request latency in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pumpwatch_cache_hits_total",
			Help: "Kline cache hits",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pumpwatch_cache_misses_total",
			Help: "Kline cache misses",
		}),

		CacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pumpwatch_cache_hit_ratio",
			Help: "Kline cache hit ratio (0.0 to 1.0)",
		}),
	}

	m.reg.MustRegister(
		m.CycleDuration,
		m.CyclesTotal,
		m.SignalsEmitted,
		m.SignalLogSize,
		m.APIRequests,
		m.APIRequestDuration,
		m.CacheHits,
		m.CacheMisses,
		m.CacheHitRatio,
	)
	return m
}

// CycleTimer tracks one detection cycle from start to outcome.
type CycleTimer struct {
	metrics *Registry
	start   time.Time
}

func (m *Registry) StartCycleTimer() *CycleTimer {
	return &CycleTimer{metrics: m, start: time.Now()}
}

// Stop records the cycle's duration and outcome.
func (t *CycleTimer) Stop(result string) {
	elapsed := time.Since(t.start)
	t.metrics.CycleDuration.Observe(elapsed.Seconds())
	t.metrics.CyclesTotal.WithLabelValues(result).Inc()

	log.Debug().Str("result", result).Dur("elapsed", elapsed).Msg("cycle recorded")
}

// RecordAPIRequest counts one outbound request. Wired into the exchange
// client's OnRequest hook.
func (m *Registry) RecordAPIRequest(endpoint string, success bool, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.APIRequests.WithLabelValues(endpoint, outcome).Inc()
	m.APIRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a kline cache hit or miss and refreshes the
// ratio gauge.
func (m *Registry) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
	m.updateCacheHitRatio()
}

// AddSignals counts newly emitted signals and updates the log size gauge.
func (m *Registry) AddSignals(emitted, logSize int) {
	m.SignalsEmitted.Add(float64(emitted))
	m.SignalLogSize.Set(float64(logSize))
}

func (m *Registry) updateCacheHitRatio() {
	hits := counterValue(m.CacheHits)
	misses := counterValue(m.CacheMisses)
	if total := hits + misses; total > 0 {
		m.CacheHitRatio.Set(hits / total)
	}
}

func counterValue(c prometheus.Counter) float64 {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

// Handler serves the Prometheus exposition format for this registry.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
