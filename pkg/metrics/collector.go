package metrics

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/log"
	"github.com/cuemby/aeroclient/pkg/policy"
	"github.com/rs/zerolog"
)

// Collector periodically snapshots cluster/node state into the Prometheus
// registry and, when enabled, the file-based report writer (spec.md
// §4.10). It is the aeroclient analogue of the teacher's metrics
// Collector, driven off a cluster handle instead of a manager.
type Collector struct {
	cluster *cluster.Cluster
	prom    *Registry
	writer  *FileWriter // nil when MetricsPolicy.Enable is false

	intervalIterations int
	tick               int64

	latencies   map[string]*LatencyHistogram
	latenciesMu sync.Mutex
	columns     int
	shift       int

	logger zerolog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCollector wires a collector to c, registering Prometheus metrics
// under clusterName and, if p.Enable, opening the file report writer.
func NewCollector(c *cluster.Cluster, p *policy.MetricsPolicy, clusterName string) (*Collector, error) {
	if p == nil {
		p = policy.DefaultMetricsPolicy()
	}
	col := &Collector{
		cluster:             c,
		prom:                NewRegistry(clusterName),
		intervalIterations:  max(p.IntervalIterations, 1),
		latencies:           make(map[string]*LatencyHistogram),
		columns:             p.LatencyColumns,
		shift:               p.LatencyShift,
		logger:              log.WithComponent("metrics"),
		stopCh:              make(chan struct{}),
		doneCh:              make(chan struct{}),
	}
	if p.Enable {
		w, err := NewFileWriter(p.ReportDir, p.ReportSizeLimitBytes(), p.LatencyColumns, p.LatencyShift)
		if err != nil {
			return nil, fmt.Errorf("metrics: open report writer: %w", err)
		}
		col.writer = w
	}
	return col, nil
}

// Registry exposes the Prometheus registry for mounting a /metrics route.
func (c *Collector) Registry() *Registry { return c.prom }

// Observe records one command's latency under opType (e.g. "read",
// "write", "batch", "scan", "query"), feeding both the Prometheus
// histogram and the file-report histogram.
func (c *Collector) Observe(opType string, d time.Duration) {
	c.prom.CommandLatency.WithLabelValues(opType).Observe(d.Seconds())

	c.latenciesMu.Lock()
	h, ok := c.latencies[opType]
	if !ok {
		h = NewLatencyHistogram(c.columns, c.shift)
		c.latencies[opType] = h
	}
	c.latenciesMu.Unlock()
	h.Record(d)
}

// Start begins the periodic collection loop; every tick refreshes
// Prometheus gauges, and every intervalIterations ticks also appends a
// file-report snapshot (if enabled).
func (c *Collector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts the collection loop and closes the report writer.
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("metrics: close report writer")
		}
	}
}

func (c *Collector) collect() {
	nodes := c.cluster.Nodes()
	commandCount := atomic.LoadUint64(&c.cluster.CommandsIssued)
	retryCount := atomic.LoadUint64(&c.cluster.Retries)
	delayQueueTimeouts := atomic.LoadUint64(&c.cluster.DelayQueueTimeouts)
	invalidNodes := atomic.LoadUint64(&c.cluster.InvalidNodeEvents)

	c.prom.ClusterSize.Set(float64(len(nodes)))
	c.prom.InvalidNodeCount.Set(float64(invalidNodes))
	c.prom.CommandCount.Set(float64(commandCount))
	c.prom.RetryCount.Set(float64(retryCount))
	c.prom.DelayQueueTimeouts.Set(float64(delayQueueTimeouts))

	snapshot := ClusterSnapshot{
		Timestamp:          time.Now(),
		ClusterName:        "",
		CommandCount:       commandCount,
		RetryCount:         retryCount,
		DelayQueueTimeouts: delayQueueTimeouts,
		InvalidNodeCount:   invalidNodes,
	}

	for _, n := range nodes {
		var syncConns int
		for _, p := range n.Pools() {
			syncConns += p.Stats().Total
		}
		addrs := n.Addresses()
		host, port := "", ""
		if len(addrs) > 0 {
			host = addrs[0].Host
			port = strconv.Itoa(addrs[0].Port)
		}

		c.prom.NodeSyncConns.WithLabelValues(n.Name(), host, port).Set(float64(syncConns))
		errCount := n.ErrorCount()
		toCount := n.TimeoutCount()
		c.prom.NodeErrors.WithLabelValues(n.Name()).Set(float64(errCount))
		c.prom.NodeTimeouts.WithLabelValues(n.Name()).Set(float64(toCount))

		ns := NodeSnapshot{
			Name: n.Name(), Host: host, Port: port,
			SyncConns: syncConns, Errors: errCount, Timeouts: toCount,
		}
		c.latenciesMu.Lock()
		for opType, h := range c.latencies {
			ns.Latency = append(ns.Latency, LatencySnapshot{Type: opType, Buckets: h.Snapshot()})
		}
		c.latenciesMu.Unlock()
		snapshot.Nodes = append(snapshot.Nodes, ns)
	}

	c.tick++
	if c.writer != nil && c.tick%int64(c.intervalIterations) == 0 {
		if err := c.writer.WriteSnapshot(snapshot); err != nil {
			c.logger.Warn().Err(err).Msg("metrics: write snapshot failed")
		}
	}
}

// TickOnce forces an immediate collection pass, independent of Start's
// ticker. Nothing in this module calls it: the tender does not drive the
// collector, and file snapshots are counted against Start's own ticks.
func (c *Collector) TickOnce(ctx context.Context) {
	c.collect()
}
