package soundswitch

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "soundswitch"

// Metrics holds the bridge's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	messages   *prometheus.CounterVec
	malformed  *prometheus.CounterVec
	requests   *prometheus.CounterVec
	results    *prometheus.CounterVec
	syncs      *prometheus.CounterVec
	commands   *prometheus.CounterVec
	publishErr prometheus.Counter
	nodes      *prometheus.GaugeVec
	handles    prometheus.Gauge
	gateway    prometheus.Gauge
}

// NewMetrics creates the bridge collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bus_messages_total",
			Help:      "Bus messages received, by topic kind.",
		}, []string{"kind"}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "malformed_payloads_total",
			Help:      "Bus payloads that could not be decoded, by topic kind.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "discovery",
			Name:      "requests_total",
			Help:      "sendCommand requests published, by command.",
		}, []string{"command"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "discovery",
			Name:      "results_total",
			Help:      "sendCommand results received, by command and outcome.",
		}, []string{"command", "outcome"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "devices",
			Name:      "syncs_total",
			Help:      "Device registry updates pushed, by attribute.",
		}, []string{"attribute"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "devices",
			Name:      "commands_total",
			Help:      "User commands handled, by attribute and outcome.",
		}, []string{"attribute", "outcome"}),
		publishErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "publish_errors_total",
			Help:      "Bus publishes that failed.",
		}),
		nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "nodes",
			Help:      "Known nodes, by discovery state.",
		}, []string{"state"}),
		handles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "handles_in_use",
			Help:      "Handles currently mapped to endpoint attributes.",
		}),
		gateway: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "gateway_ready",
			Help:      "1 once the gateway command topic is known.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.messages, m.malformed, m.requests, m.results, m.syncs,
			m.commands, m.publishErr, m.nodes, m.handles, m.gateway,
		)
	}
	return m
}

func (m *Metrics) messageReceived(kind string) {
	if m != nil {
		m.messages.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) malformedPayload(kind string) {
	if m != nil {
		m.malformed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) requestSent(command string) {
	if m != nil {
		m.requests.WithLabelValues(command).Inc()
	}
}

func (m *Metrics) resultReceived(command string, success bool) {
	if m != nil {
		m.results.WithLabelValues(command, outcome(success)).Inc()
	}
}

func (m *Metrics) deviceSynced(attribute string) {
	if m != nil {
		m.syncs.WithLabelValues(attribute).Inc()
	}
}

func (m *Metrics) commandHandled(attribute string, err error) {
	if m != nil {
		m.commands.WithLabelValues(attribute, outcome(err == nil)).Inc()
	}
}

func (m *Metrics) publishFailed() {
	if m != nil {
		m.publishErr.Inc()
	}
}

// observe refreshes the gauges from a status snapshot.
func (m *Metrics) observe(s Status) {
	if m == nil {
		return
	}
	m.nodes.Reset()
	for _, n := range s.Nodes {
		m.nodes.WithLabelValues(n.State).Inc()
	}
	m.handles.Set(float64(s.Handles))
	if s.GatewayReady {
		m.gateway.Set(1)
	} else {
		m.gateway.Set(0)
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
