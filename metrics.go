package reactor

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the per-reactor-instance prometheus collectors. Grounded on
// the teacher's package-level Stat (stat.go), generalized from one
// process-wide singleton to a value any number of Reactor instances can
// own and register independently, each with its own client_id label.
// The reactor updates PacketsSent, BytesSent, PacketsReceived and
// BytesReceived; nothing in this module updates Reconnects or InFlight,
// so they stay at zero.
type Metrics struct {
	PacketsSent     prometheus.Counter
	BytesSent       prometheus.Counter
	PacketsReceived prometheus.Counter
	BytesReceived   prometheus.Counter
	Reconnects      prometheus.Counter
	InFlight        prometheus.Gauge
}

// NewMetrics builds a Metrics set labeled with clientID. Callers must
// Register it with a prometheus.Registerer of their choosing; the
// reactor never registers metrics on its own, since multiple reactors
// sharing a process registry is the common case (§6.4, SUPPLEMENTED
// FEATURES).
func NewMetrics(clientID string) *Metrics {
	labels := prometheus.Labels{"client_id": clientID}
	return &Metrics{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactor_packets_sent_total", Help: "MQTT control packets written to the wire.", ConstLabels: labels,
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactor_bytes_sent_total", Help: "Bytes written to the wire.", ConstLabels: labels,
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactor_packets_received_total", Help: "MQTT control packets decoded from the wire.", ConstLabels: labels,
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactor_bytes_received_total", Help: "Bytes read from the wire.", ConstLabels: labels,
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reactor_reconnects_total", Help: "Times Start rebuilt a session after a prior stop.", ConstLabels: labels,
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactor_inflight_records", Help: "Records currently awaiting acknowledgement.", ConstLabels: labels,
		}),
	}
}

// Register adds every collector in m to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.PacketsSent, m.BytesSent, m.PacketsReceived, m.BytesReceived, m.Reconnects, m.InFlight} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
