// Package metrics exposes the runtime's Prometheus instrumentation,
// grounded on the teacher repo's internal/metrics package (bus.go in
// particular), adapted from session/tuner counters to flow/pipeline ones.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BusDroppedTotal counts event-bus deliveries dropped due to a full
	// subscriber channel or a full publish queue, labeled by topic and
	// reason.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strom_bus_dropped_total",
		Help: "Total number of event bus deliveries dropped, by topic and reason.",
	}, []string{"topic", "reason"})

	// FSMTransitionsTotal counts lifecycle state transitions, labeled by
	// from/to/event.
	FSMTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strom_fsm_transitions_total",
		Help: "Total number of lifecycle FSM transitions.",
	}, []string{"from", "to", "event"})

	// FSMTransitionErrorsTotal counts rejected transition attempts.
	FSMTransitionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strom_fsm_transition_errors_total",
		Help: "Total number of rejected lifecycle FSM transitions.",
	}, []string{"from", "event"})

	// QoSDropsTotal counts QoS-reported dropped buffers per flow/element,
	// after the post-start grace window has elapsed.
	QoSDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strom_qos_drops_total",
		Help: "Total number of QoS-reported dropped buffers, by flow and element.",
	}, []string{"flow_id", "element"})

	// PTPOffsetSeconds reports the most recent PTP clock offset per flow domain.
	PTPOffsetSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "strom_ptp_offset_seconds",
		Help: "Most recent PTP clock offset in seconds, by flow and domain.",
	}, []string{"flow_id", "domain"})

	// PTPSignificantCorrectionsTotal counts PTP corrections exceeding the
	// "significant" threshold (100us, spec §4.8).
	PTPSignificantCorrectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strom_ptp_significant_corrections_total",
		Help: "Total number of PTP clock corrections exceeding the significant-correction threshold.",
	}, []string{"flow_id", "domain"})

	// MutationsAppliedTotal counts live property mutations actually applied
	// to the engine (post-throttle), labeled by element/property.
	MutationsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strom_mutations_applied_total",
		Help: "Total number of live property mutations applied to running pipelines.",
	}, []string{"element", "property"})

	// MutationsThrottledTotal counts mutations collapsed by the throttle.
	MutationsThrottledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "strom_mutations_throttled_total",
		Help: "Total number of live property mutations collapsed by throttling.",
	}, []string{"element", "property"})

	// FlowsActive reports the current count of flows per state other than
	// Null; a flow in Null holds no pipeline and is not counted.
	FlowsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "strom_flows_active",
		Help: "Current number of flows, by lifecycle state.",
	}, []string{"state"})
)

// IncBusDropped records a dropped bus delivery.
func IncBusDropped(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}
