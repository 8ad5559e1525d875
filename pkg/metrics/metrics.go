// Package metrics implements the dual reporting surface spec.md §4.10
// calls for: a Prometheus registry for live scraping, and a Collector
// that also drives the file-based snapshot writer, appending one snapshot
// every IntervalIterations ticks of the Collector's own ticker (the tender
// does not invoke it).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every gauge/counter this client publishes, scoped to one
// client instance rather than the global default registry — a process
// embedding more than one client must not collide on metric names.
type Registry struct {
	reg *prometheus.Registry

	ClusterSize        prometheus.Gauge
	InvalidNodeCount   prometheus.Gauge
	CommandCount       prometheus.Gauge
	RetryCount         prometheus.Gauge
	DelayQueueTimeouts prometheus.Gauge

	NodeSyncConns  *prometheus.GaugeVec
	NodeAsyncConns *prometheus.GaugeVec
	NodeErrors     *prometheus.GaugeVec
	NodeTimeouts   *prometheus.GaugeVec

	CommandLatency *prometheus.HistogramVec
}

// NewRegistry builds and registers every metric under a fresh registry
// tagged with clusterName, so two clients in one process never collide.
func NewRegistry(clusterName string) *Registry {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"cluster": clusterName}

	r := &Registry{
		reg: reg,
		ClusterSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aeroclient_cluster_size", Help: "Number of active nodes in the cluster view.",
			ConstLabels: constLabels,
		}),
		InvalidNodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aeroclient_invalid_node_count", Help: "Nodes dropped from the last tend due to invalid partition data.",
			ConstLabels: constLabels,
		}),
		CommandCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aeroclient_command_total", Help: "Cumulative commands issued.",
			ConstLabels: constLabels,
		}),
		RetryCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aeroclient_command_retry_total", Help: "Cumulative command retries.",
			ConstLabels: constLabels,
		}),
		DelayQueueTimeouts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aeroclient_delay_queue_timeout_total", Help: "Cumulative async commands that expired waiting in the delay queue.",
			ConstLabels: constLabels,
		}),
		NodeSyncConns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aeroclient_node_sync_connections", Help: "Open sync connections per node.",
			ConstLabels: constLabels,
		}, []string{"node", "host", "port"}),
		NodeAsyncConns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aeroclient_node_async_connections", Help: "In-flight async commands per node.",
			ConstLabels: constLabels,
		}, []string{"node", "host", "port"}),
		NodeErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aeroclient_node_errors_total", Help: "Cumulative errors observed per node.",
			ConstLabels: constLabels,
		}, []string{"node"}),
		NodeTimeouts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aeroclient_node_timeouts_total", Help: "Cumulative timeouts observed per node.",
			ConstLabels: constLabels,
		}, []string{"node"}),
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "aeroclient_command_latency_seconds", Help: "Command latency by operation type.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"type"}),
	}

	reg.MustRegister(
		r.ClusterSize, r.InvalidNodeCount, r.CommandCount, r.RetryCount, r.DelayQueueTimeouts,
		r.NodeSyncConns, r.NodeAsyncConns, r.NodeErrors, r.NodeTimeouts, r.CommandLatency,
	)
	return r
}

// Handler exposes this registry's metrics for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
