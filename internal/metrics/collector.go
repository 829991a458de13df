// Package stackmetrics exposes the Prometheus metrics for the TUN stack:
// per-layer packet counters, the connection-table gauge, and TCP state
// transition counts.
package stackmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "gotun"
	subsystem = "stack"
)

// Label names for stack metrics.
const (
	labelEtherType = "ethertype"
	labelProtocol  = "protocol"
	labelReason    = "reason"
	labelFromState = "from_state"
	labelToState   = "to_state"
)

// -------------------------------------------------------------------------
// Collector — Prometheus TUN-stack Metrics
// -------------------------------------------------------------------------

// Collector holds all stack Prometheus metrics.
//
// Metrics are designed for watching a live tunnel:
//   - Packet counters track what arrives, broken out by framing and
//     transport protocol.
//   - Drop counters record why packets were discarded (parse errors,
//     state-machine rejections) for alerting on misbehaving peers.
//   - The connections gauge tracks connection-table occupancy, which grows
//     without eviction in this subset.
//   - State transition counters record TCP handshake progress.
type Collector struct {
	// PacketsReceived counts frames read from the TUN device, labeled by
	// ethertype name.
	PacketsReceived *prometheus.CounterVec

	// PacketsDropped counts packets discarded with a diagnostic, labeled
	// by drop reason ("parse", "state_machine", "serialize"). A
	// "serialize" drop happens after the connection table has already
	// stored the new TCB.
	PacketsDropped *prometheus.CounterVec

	// ResponsesSent counts synthesized response packets written back to
	// the TUN device, labeled by transport protocol name.
	ResponsesSent *prometheus.CounterVec

	// Connections tracks the current connection-table size.
	Connections prometheus.Gauge

	// StateTransitions counts TCB state changes, labeled by the old and
	// new state names.
	StateTransitions *prometheus.CounterVec
}

// Drop reason label values.
const (
	DropReasonParse        = "parse"
	DropReasonStateMachine = "state_machine"
	DropReasonSerialize    = "serialize"
)

// NewCollector creates a Collector with all stack metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics carry the "gotun_stack_" prefix (namespace_subsystem) to
// avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketsReceived,
		c.PacketsDropped,
		c.ResponsesSent,
		c.Connections,
		c.StateTransitions,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total frames read from the TUN device.",
		}, []string{labelEtherType}),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total packets dropped with a diagnostic, by reason.",
		}, []string{labelReason}),

		ResponsesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "responses_sent_total",
			Help:      "Total synthesized responses written to the TUN device.",
		}, []string{labelProtocol}),

		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections",
			Help:      "Current connection-table size.",
		}),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total TCP connection state transitions.",
		}, []string{labelFromState, labelToState}),
	}
}

// -------------------------------------------------------------------------
// Recording helpers
// -------------------------------------------------------------------------

// IncPacketsReceived increments the received-frames counter for the given
// ethertype name. Called once per frame read from the device.
func (c *Collector) IncPacketsReceived(etherType string) {
	c.PacketsReceived.WithLabelValues(etherType).Inc()
}

// IncPacketsDropped increments the dropped counter for the given reason.
// Called when a packet fails to parse, is rejected by the state machine,
// or its response cannot be serialized.
func (c *Collector) IncPacketsDropped(reason string) {
	c.PacketsDropped.WithLabelValues(reason).Inc()
}

// IncResponsesSent increments the responses counter for the given
// transport protocol name.
func (c *Collector) IncResponsesSent(protocol string) {
	c.ResponsesSent.WithLabelValues(protocol).Inc()
}

// SetConnections records the current connection-table size.
func (c *Collector) SetConnections(n int) {
	c.Connections.Set(float64(n))
}

// RecordStateTransition increments the transition counter with the old and
// new state labels. Handshake progress (LISTEN -> SYN_RECEIVED ->
// ESTABLISHED) shows up here.
func (c *Collector) RecordStateTransition(from, to string) {
	c.StateTransitions.WithLabelValues(from, to).Inc()
}
