// Package metrics exports session and device counters to Prometheus.
//
// A Metrics value implements session.Metrics, device.Metrics and the command
// queue depth observer, so one instance is shared by every component.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nerrad567/surprise-core/internal/session"
)

const namespace = "surprise"

var allStates = []session.State{
	session.StateIdle,
	session.StateIdleOn,
	session.StateWaiting,
	session.StateStarting,
	session.StateOn,
	session.StateOff,
}

// Metrics holds the registered collectors.
type Metrics struct {
	transitions   *prometheus.CounterVec
	state         *prometheus.GaugeVec
	sessionsEnded *prometheus.CounterVec
	applied       *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	drained       prometheus.Counter
	queueDepth    prometheus.Gauge
	cuesDropped   prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Session state machine transitions by source and target state",
		}, []string{"from", "to"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current session state (1 for the active state, 0 otherwise)",
		}, []string{"state"}),
		sessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions ended, split by whether the session maximum forced the end",
		}, []string{"forced"}),
		applied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_applied_total",
			Help:      "Device commands applied by kind",
		}, []string{"kind"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_rejected_total",
			Help:      "Device commands rejected as invalid by kind",
		}, []string{"kind"}),
		reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_reconnects_total",
			Help:      "Successful device reconnects by backend",
		}, []string{"backend"}),
		drained: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_drained_total",
			Help:      "Queued commands discarded after a device failure",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "command_queue_depth",
			Help:      "Commands waiting for the device consumer",
		}),
		cuesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cues_dropped_total",
			Help:      "Audio cues dropped because the player was busy",
		}),
	}
	m.setState(session.StateIdle)
	return m
}

// Transition implements session.Metrics.
func (m *Metrics) Transition(from, to session.State) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
	m.setState(to)
}

// SessionEnded implements session.Metrics.
func (m *Metrics) SessionEnded(forced bool) {
	m.sessionsEnded.WithLabelValues(strconv.FormatBool(forced)).Inc()
}

// CommandApplied implements device.Metrics.
func (m *Metrics) CommandApplied(kind string) {
	m.applied.WithLabelValues(kind).Inc()
}

// CommandRejected implements device.Metrics.
func (m *Metrics) CommandRejected(kind string) {
	m.rejected.WithLabelValues(kind).Inc()
}

// DeviceReconnected implements device.Metrics.
func (m *Metrics) DeviceReconnected(backend string) {
	m.reconnects.WithLabelValues(backend).Inc()
}

// CommandsDrained implements device.Metrics.
func (m *Metrics) CommandsDrained(n int) {
	m.drained.Add(float64(n))
}

// QueueDepth is the command queue depth observer.
func (m *Metrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// CueDropped counts a cue the player could not accept.
func (m *Metrics) CueDropped() {
	m.cuesDropped.Inc()
}

func (m *Metrics) setState(active session.State) {
	for _, s := range allStates {
		v := 0.0
		if s == active {
			v = 1
		}
		m.state.WithLabelValues(string(s)).Set(v)
	}
}
