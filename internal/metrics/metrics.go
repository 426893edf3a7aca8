// Package metrics exposes session progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/dlclient/pkg/packet"
)

// Checkpoint results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics implements lifecycle.Observer on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	packetsTotal        *prometheus.CounterVec
	packetBytesTotal    prometheus.Counter
	dispatchErrorsTotal *prometheus.CounterVec
	checkpointsTotal    *prometheus.CounterVec
	packetID            prometheus.Gauge
	packetTime          prometheus.Gauge
}

// New creates the session metrics and registers them on a fresh registry
// along with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		packetsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dlclient_packets_total",
				Help: "Total number of packets collected",
			},
			[]string{"type"},
		),
		packetBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dlclient_packet_bytes_total",
				Help: "Total payload bytes collected",
			},
		),
		dispatchErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dlclient_dispatch_errors_total",
				Help: "Total number of packets that failed to dispatch",
			},
			[]string{"type"},
		),
		checkpointsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dlclient_checkpoints_total",
				Help: "Checkpoint operations by operation and result",
			},
			[]string{"op", "result"},
		),
		packetID: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dlclient_packet_id",
				Help: "ID of the last packet that advanced the resume position",
			},
		),
		packetTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dlclient_packet_time_seconds",
				Help: "Time of the last packet that advanced the resume position",
			},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnPacket records a successfully dispatched packet.
func (m *Metrics) OnPacket(p packet.Packet) {
	m.packetsTotal.WithLabelValues(p.Type.String()).Inc()
	m.packetBytesTotal.Add(float64(p.Size))
	if p.HasPosition() {
		m.packetID.Set(float64(p.ID))
		m.packetTime.Set(float64(p.Time) / 1e6)
	}
}

// OnDispatchError records a packet the dispatcher rejected.
func (m *Metrics) OnDispatchError(p packet.Packet, _ error) {
	m.dispatchErrorsTotal.WithLabelValues(p.Type.String()).Inc()
}

// OnCheckpoint records a checkpoint recover or save.
func (m *Metrics) OnCheckpoint(op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.checkpointsTotal.WithLabelValues(op, result).Inc()
}
