package observability

import (
	"stablecore/core/events"
)

// MetricsEmitter is an events.Emitter that feeds the engine metrics registry
// before forwarding every event to the wrapped sink. Engines stay metrics-free
// and emit domain events; this bridge turns them into counters.
type MetricsEmitter struct {
	metrics *EngineMetrics
	next    events.Emitter
}

// NewMetricsEmitter wraps next with the metrics bridge. A nil next drops the
// events after counting.
func NewMetricsEmitter(next events.Emitter) *MetricsEmitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &MetricsEmitter{metrics: Metrics(), next: next}
}

// Emit counts the event and forwards it.
func (m *MetricsEmitter) Emit(event events.Event) {
	if m == nil || event == nil {
		return
	}
	switch e := event.(type) {
	case events.CollateralDeposited:
		m.metrics.RecordOperation("stable", "deposit", "ok")
	case events.CollateralRedeemed:
		m.metrics.RecordOperation("stable", "redeem", "ok")
	case events.PositionLiquidated:
		m.metrics.RecordOperation("stable", "liquidate", "ok")
		m.metrics.liquidations.Inc()
		m.metrics.payout.Add(float64(e.Payout))
	case events.ProtocolFee:
		m.metrics.RecordOperation("stable", "fee", "ok")
	case events.HealthFactorCritical:
		m.metrics.warnings.WithLabelValues("health_critical").Inc()
	case events.CollateralizationHigh:
		m.metrics.warnings.WithLabelValues("collateralization_high").Inc()
	case events.OracleDegraded:
		m.metrics.oracle.WithLabelValues("degraded").Inc()
	case events.ProposalCreated:
		m.metrics.proposals.WithLabelValues("created").Inc()
	case events.VoteCast:
		m.metrics.proposals.WithLabelValues("vote").Inc()
	case events.ProposalResolved:
		m.metrics.proposals.WithLabelValues("resolved").Inc()
	case events.ProposalExecuted:
		m.metrics.proposals.WithLabelValues("executed").Inc()
	case events.ProposalCancelled:
		m.metrics.proposals.WithLabelValues("cancelled").Inc()
	}
	m.next.Emit(event)
}
