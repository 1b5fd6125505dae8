package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the messaging server collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	messagesSent    prometheus.Counter
	sendsRejected   *prometheus.CounterVec
	pushConnections prometheus.Gauge
	pushDropped     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantry",
			Subsystem: "chat",
			Name:      "messages_sent_total",
			Help:      "Messages accepted by the messages API.",
		}),
		sendsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantry",
			Subsystem: "chat",
			Name:      "sends_rejected_total",
			Help:      "Send attempts rejected, by reason.",
		}, []string{"reason"}),
		pushConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tenantry",
			Subsystem: "push",
			Name:      "connections",
			Help:      "Open push channel connections.",
		}),
		pushDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantry",
			Subsystem: "push",
			Name:      "dropped_clients_total",
			Help:      "Push connections dropped because their send buffer was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.messagesSent, m.sendsRejected, m.pushConnections, m.pushDropped)
	}
	return m
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) SendRejected(reason string) {
	if m == nil {
		return
	}
	m.sendsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) PushConnected() {
	if m == nil {
		return
	}
	m.pushConnections.Inc()
}

func (m *Metrics) PushDisconnected() {
	if m == nil {
		return
	}
	m.pushConnections.Dec()
}

func (m *Metrics) PushDropped() {
	if m == nil {
		return
	}
	m.pushDropped.Inc()
}
