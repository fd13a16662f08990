// Package metrics exposes FluxHaus Core's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Metrics holds every collector on a private registry so that tests and
// multiple servers in one process do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	// FetchTotal counts upstream snapshot fetches by key and result.
	FetchTotal *prometheus.CounterVec

	FetchDuration *prometheus.HistogramVec

	// SnapshotUpdated is the Unix time of the last successful write per key.
	SnapshotUpdated *prometheus.GaugeVec

	// CommandTotal counts device commands by device, command and result.
	CommandTotal *prometheus.CounterVec

	// ReconcileTotal counts post-command resyncs by result.
	ReconcileTotal *prometheus.CounterVec

	WebSocketClients prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxhaus_snapshot_fetch_total",
			Help: "Upstream snapshot fetches by key and result.",
		}, []string{"key", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fluxhaus_snapshot_fetch_duration_seconds",
			Help:    "Duration of upstream snapshot fetches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"key"}),
		SnapshotUpdated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fluxhaus_snapshot_updated_timestamp_seconds",
			Help: "Unix time of the last successful snapshot write.",
		}, []string{"key"}),
		CommandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxhaus_command_total",
			Help: "Device commands dispatched by device, command and result.",
		}, []string{"device", "command", "result"}),
		ReconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxhaus_command_reconcile_total",
			Help: "Post-command device resyncs by result.",
		}, []string{"result"}),
		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fluxhaus_websocket_clients",
			Help: "Connected live-event websocket clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FetchTotal,
		m.FetchDuration,
		m.SnapshotUpdated,
		m.CommandTotal,
		m.ReconcileTotal,
		m.WebSocketClients,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records one snapshot fetch.
func (m *Metrics) ObserveFetch(key string, err error, took time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailed
	}
	m.FetchTotal.WithLabelValues(key, result).Inc()
	m.FetchDuration.WithLabelValues(key).Observe(took.Seconds())
	if err == nil {
		m.SnapshotUpdated.WithLabelValues(key).Set(float64(time.Now().Unix()))
	}
}

// ObserveCommand records one dispatched device command.
func (m *Metrics) ObserveCommand(device, command string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailed
	}
	m.CommandTotal.WithLabelValues(device, command, result).Inc()
}

// ObserveReconcile records one post-command resync.
func (m *Metrics) ObserveReconcile(err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailed
	}
	m.ReconcileTotal.WithLabelValues(result).Inc()
}
