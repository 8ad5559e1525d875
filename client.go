// Package aeroclient is a from-scratch client for an Aerospike-style
// key-value cluster: cluster membership and partition-map tracking, node
// pools, the binary wire protocol, single-key and batch operations,
// scan/query pagination, an async reactor, a transaction coordinator, and
// metrics reporting (spec.md §OVERVIEW).
package aeroclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/aeroclient/pkg/aerr"
	"github.com/cuemby/aeroclient/pkg/async"
	"github.com/cuemby/aeroclient/pkg/auth"
	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/codec"
	"github.com/cuemby/aeroclient/pkg/command"
	"github.com/cuemby/aeroclient/pkg/log"
	"github.com/cuemby/aeroclient/pkg/metrics"
	"github.com/cuemby/aeroclient/pkg/policy"
	"github.com/cuemby/aeroclient/pkg/scan"
	"github.com/cuemby/aeroclient/pkg/txn"
	"github.com/cuemby/aeroclient/pkg/types"
	"github.com/rs/zerolog"
)

// Re-export the building-block types callers need without reaching into
// subpackages for everyday use.
type (
	Key          = types.Key
	Bin          = types.Bin
	Value        = types.Value
	Record       = types.Record
	BatchRecord  = types.BatchRecord
	Op           = types.Op
	Filter       = policy.Filter
	ClientPolicy = policy.ClientPolicy
)

var (
	NewKey      = types.NewKey
	IntValue    = types.IntValue
	StringValue = types.StringValue
	NewBin      = types.NewBin
)

// Client is the top-level handle: one per application cluster connection.
type Client struct {
	cluster *cluster.Cluster
	exec    *command.Executor
	reactor *async.Reactor
	policy  *policy.ClientPolicy
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewClient connects to the cluster reachable through hosts (seed nodes),
// blocking until the cluster view stabilizes or LoginTimeout elapses
// (spec.md §4.5 Stabilization).
func NewClient(ctx context.Context, p *policy.ClientPolicy, hosts ...cluster.Address) (*Client, error) {
	if p == nil {
		p = policy.DefaultClientPolicy()
	}
	if len(hosts) == 0 {
		return nil, aerr.New(aerr.Param, "aeroclient: at least one seed host is required")
	}

	dialTimeout := p.Timeout
	if dialTimeout <= 0 {
		dialTimeout = 30 * time.Second
	}

	cfg := cluster.Config{
		Hosts:            hosts,
		User:             p.User,
		Password:         p.Password,
		ClusterName:      p.ClusterName,
		TendInterval:     p.TendInterval,
		ConnTimeout:      dialTimeout,
		LoginTimeout:     p.LoginTimeout,
		MaxSocketIdle:    p.MaxSocketIdle,
		MinConnsPerNode:  p.MinConnsPerNode,
		MaxConnsPerNode:  p.MaxConnsPerNode,
		ConnPoolsPerNode: p.ConnPoolsPerNode,
		MaxErrorRate:     p.MaxErrorRate,
		ErrorRateWindow:  p.ErrorRateWindow,
		RackAware:        p.RackAware,
		PreferredRack:    p.RackID,
		Dial:             dialFunc(p, dialTimeout),
		InfoDial:         infoDialFunc(p, dialTimeout),
	}

	c := cluster.NewCluster(cfg)
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("aeroclient: connect: %w", err)
	}
	if p.FailIfNotConnected && len(c.Nodes()) == 0 {
		c.Close()
		return nil, aerr.New(aerr.Cluster, "aeroclient: no nodes reachable at %v", hosts)
	}

	cl := &Client{
		cluster: c,
		exec:    command.NewExecutor(c),
		reactor: async.NewReactor(maxInFlight(p)),
		policy:  p,
		logger:  log.WithComponent("aeroclient"),
	}

	if p.Metrics != nil && p.Metrics.Enable {
		col, err := metrics.NewCollector(c, p.Metrics, p.ClusterName)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("aeroclient: metrics: %w", err)
		}
		col.Start(p.Metrics.Interval)
		cl.metrics = col
	}
	return cl, nil
}

func maxInFlight(p *policy.ClientPolicy) int {
	if p.MaxConnsPerNode > 0 {
		return p.MaxConnsPerNode * 4
	}
	return 256
}

// dialFunc builds the command-socket dialer: TCP connect, optional TLS
// upgrade, then the authentication handshake (spec.md connection-checkout
// state sequence CONNECT -> TLS_CONNECT? -> AUTH_WRITE -> AUTH_READ).
func dialFunc(p *policy.ClientPolicy, timeout time.Duration) func(ctx context.Context, addr cluster.Address) (net.Conn, error) {
	return func(ctx context.Context, addr cluster.Address) (net.Conn, error) {
		conn, err := dialAndSecure(ctx, addr, p.TLSConfig, timeout)
		if err != nil {
			return nil, err
		}
		if err := auth.Handshake(conn, p.User, p.Password, timeout); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// infoDialFunc builds the info-protocol dialer used by the tender; info
// sockets authenticate the same way as command sockets.
func infoDialFunc(p *policy.ClientPolicy, timeout time.Duration) func(ctx context.Context, addr cluster.Address) (cluster.InfoConn, error) {
	return func(ctx context.Context, addr cluster.Address) (cluster.InfoConn, error) {
		conn, err := dialAndSecure(ctx, addr, p.TLSConfig, timeout)
		if err != nil {
			return nil, err
		}
		if err := auth.Handshake(conn, p.User, p.Password, timeout); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func dialAndSecure(ctx context.Context, addr cluster.Address, tlsCfg *tls.Config, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("aeroclient: dial %s: %w", addr, err)
	}
	if tlsCfg == nil {
		return conn, nil
	}
	cfg := tlsCfg.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = addr.TLSName
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("aeroclient: tls handshake %s: %w", addr, err)
	}
	return tlsConn, nil
}

// Close stops the tender, the metrics collector, and closes every node's
// pools (spec.md §3 Lifecycle).
func (c *Client) Close() {
	if c.metrics != nil {
		c.metrics.Stop()
	}
	c.cluster.Close()
}

// Cluster exposes the underlying cluster handle for advanced callers
// (custom tooling, health checks).
func (c *Client) Cluster() *cluster.Cluster { return c.cluster }

// Metrics exposes the Prometheus registry, if metrics are enabled.
func (c *Client) Metrics() *metrics.Registry {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Registry()
}

func (c *Client) observe(opType string, start time.Time) {
	if c.metrics != nil {
		c.metrics.Observe(opType, time.Since(start))
	}
}

// Get reads the requested bins (all bins if none given).
func (c *Client) Get(ctx context.Context, p *policy.ReadPolicy, key *types.Key, binNames ...string) (*types.Record, error) {
	if p == nil {
		p = c.policy.ReadPolicyDefault
	}
	defer c.observe("read", time.Now())
	return c.exec.Get(ctx, p, key, binNames...)
}

// Put writes the given bins, creating the record if absent.
func (c *Client) Put(ctx context.Context, p *policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	if p == nil {
		p = c.policy.WritePolicyDefault
	}
	defer c.observe("write", time.Now())
	return c.exec.Put(ctx, p, key, bins...)
}

// Delete removes a record, reporting whether it existed.
func (c *Client) Delete(ctx context.Context, p *policy.WritePolicy, key *types.Key) (bool, error) {
	if p == nil {
		p = c.policy.WritePolicyDefault
	}
	defer c.observe("write", time.Now())
	return c.exec.Delete(ctx, p, key)
}

// Operate runs an arbitrary mixed read/write op list atomically.
func (c *Client) Operate(ctx context.Context, readPol *policy.ReadPolicy, writePol *policy.WritePolicy, key *types.Key, ops ...types.Op) (*types.Record, error) {
	defer c.observe("operate", time.Now())
	return c.exec.Operate(ctx, readPol, writePol, key, ops...)
}

// BatchGet reads the requested bins for each key, fanned out per owning
// node (spec.md §4.6 Batch).
func (c *Client) BatchGet(ctx context.Context, p *policy.BatchPolicy, keys []*types.Key, binNames ...string) ([]types.BatchRecord, error) {
	if p == nil {
		p = c.policy.BatchPolicyDefault
	}
	defer c.observe("batch", time.Now())
	return c.exec.BatchGet(ctx, p, keys, binNames...)
}

// Scan iterates every record in namespace.set, calling handler for each
// until it returns an error or the scan completes (spec.md §4.7).
func (c *Client) Scan(ctx context.Context, p *policy.ScanPolicy, namespace, set string, binNames []string, handler scan.RecordHandler) error {
	if p == nil {
		p = c.policy.ScanPolicyDefault
	}
	defer c.observe("scan", time.Now())
	return scan.Run(ctx, c.cluster, p, nil, namespace, set, binNames, handler)
}

// Query iterates every record matching filter in namespace.set
// (spec.md §4.7, secondary-index path).
func (c *Client) Query(ctx context.Context, p *policy.QueryPolicy, namespace, set string, binNames []string, handler scan.RecordHandler) error {
	if p == nil {
		p = c.policy.QueryPolicyDefault
	}
	defer c.observe("query", time.Now())
	return scan.Run(ctx, c.cluster, &p.ScanPolicy, p.Filter, namespace, set, binNames, handler)
}

// SubmitAsync drives a single command through the async reactor and
// returns without waiting for its result (spec.md §4.9). When the reactor
// already has its maximum number of commands in flight, SubmitAsync blocks
// until one of them finishes.
func (c *Client) SubmitAsync(ctx context.Context, p *policy.BasePolicy, key *types.Key, build func() codec.Command, cb async.Callback) error {
	if p == nil {
		base := c.policy.ReadPolicyDefault.BasePolicy
		p = &base
	}
	node, _, err := command.Resolve(c.cluster, key, cluster.ReplicaPolicy(p.ReplicaPolicy), 0, p.PreferredRack)
	if err != nil {
		return err
	}
	c.reactor.Submit(ctx, &async.Command{
		Node:          node,
		Cluster:       c.cluster,
		Build:         build,
		Callback:      cb,
		SocketTimeout: p.SocketTimeout,
		MaxRetries:    p.MaxRetries,
	})
	return nil
}

// NewTxn starts a new multi-record transaction (spec.md §4.10).
func (c *Client) NewTxn() *txn.Txn { return txn.New() }

// txnMonitorKey derives the deterministic key the transaction monitor
// record lives at: the given namespace, under the set "aeroclient-txn"
// reserved for transaction bookkeeping.
func txnMonitorKey(namespace string, txnID uint64) (*types.Key, error) {
	return types.NewKey(namespace, "aeroclient-txn", types.IntValue(int64(txnID)))
}

// CommitTxn verifies every record t read, marks in-doubt, then commits
// every write t recorded, using monitorNamespace to place the monitor
// record (spec.md §4.10 Commit protocol).
func (c *Client) CommitTxn(ctx context.Context, t *txn.Txn, monitorNamespace string) error {
	verify := func(ctx context.Context, key *types.Key) (uint32, error) {
		rec, err := c.Get(ctx, nil, key)
		if err != nil {
			return 0, err
		}
		return rec.Generation, nil
	}
	mark := func(ctx context.Context, txnID uint64, writes []*types.Key) error {
		mk, err := txnMonitorKey(monitorNamespace, txnID)
		if err != nil {
			return err
		}
		return c.Put(ctx, nil, mk, *types.NewBin("state", types.StringValue("committing")))
	}
	roll := func(ctx context.Context, txnID uint64, writes []*types.Key, commit bool) error {
		// The write ops themselves were already applied via Put/Operate
		// during the transaction body; roll only updates monitor state.
		mk, err := txnMonitorKey(monitorNamespace, txnID)
		if err != nil {
			return err
		}
		state := "aborted"
		if commit {
			state = "committed"
		}
		return c.Put(ctx, nil, mk, *types.NewBin("state", types.StringValue(state)))
	}
	removeMonitor := func(ctx context.Context, txnID uint64) error {
		mk, err := txnMonitorKey(monitorNamespace, txnID)
		if err != nil {
			return err
		}
		_, err = c.Delete(ctx, nil, mk)
		return err
	}

	if err := t.Verify(ctx, verify); err != nil {
		return err
	}
	return t.Commit(ctx, mark, roll, removeMonitor)
}

// AbortTxn marks t's monitor record "aborted" and then removes it, without
// verifying reads. Writes already applied during the transaction body are
// not undone.
func (c *Client) AbortTxn(ctx context.Context, t *txn.Txn, monitorNamespace string) error {
	roll := func(ctx context.Context, txnID uint64, writes []*types.Key, commit bool) error {
		mk, err := txnMonitorKey(monitorNamespace, txnID)
		if err != nil {
			return err
		}
		return c.Put(ctx, nil, mk, *types.NewBin("state", types.StringValue("aborted")))
	}
	removeMonitor := func(ctx context.Context, txnID uint64) error {
		mk, err := txnMonitorKey(monitorNamespace, txnID)
		if err != nil {
			return err
		}
		_, err = c.Delete(ctx, nil, mk)
		return err
	}
	return t.Abort(ctx, roll, removeMonitor)
}
