package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics aggregates the counters exposed by the risk engine: operation
// outcomes, oracle quality, liquidation economics, and governance activity.
type EngineMetrics struct {
	operations   *prometheus.CounterVec
	oracle       *prometheus.CounterVec
	liquidations prometheus.Counter
	payout       prometheus.Counter
	warnings     *prometheus.CounterVec
	proposals    *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Metrics returns the lazily-initialised engine metrics registry.
func Metrics() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablecore",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine operations segmented by module, operation, and result.",
			}, []string{"module", "operation", "result"}),
			oracle: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablecore",
				Subsystem: "oracle",
				Name:      "events_total",
				Help:      "Oracle quality events such as degraded-mode fallbacks.",
			}, []string{"event"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stablecore",
				Subsystem: "engine",
				Name:      "liquidations_total",
				Help:      "Completed liquidations.",
			}),
			payout: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stablecore",
				Subsystem: "engine",
				Name:      "liquidation_payout_units_total",
				Help:      "Collateral units paid out to liquidators.",
			}),
			warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablecore",
				Subsystem: "risk",
				Name:      "warnings_total",
				Help:      "Advisory risk warnings segmented by kind.",
			}, []string{"kind"}),
			proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stablecore",
				Subsystem: "governance",
				Name:      "proposal_events_total",
				Help:      "Governance proposal lifecycle events segmented by type.",
			}, []string{"event"}),
		}
		prometheus.MustRegister(
			engineRegistry.operations,
			engineRegistry.oracle,
			engineRegistry.liquidations,
			engineRegistry.payout,
			engineRegistry.warnings,
			engineRegistry.proposals,
		)
	})
	return engineRegistry
}

// RecordOperation counts the outcome of an engine operation. Result should be
// a stable string such as "ok" or "error" so dashboards stay consistent.
func (m *EngineMetrics) RecordOperation(module, operation, result string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = "unknown"
	}
	m.operations.WithLabelValues(module, operation, result).Inc()
}
