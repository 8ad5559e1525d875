package command

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cuemby/aeroclient/pkg/aerr"
	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/codec"
	"github.com/cuemby/aeroclient/pkg/log"
	"github.com/cuemby/aeroclient/pkg/policy"
	"github.com/cuemby/aeroclient/pkg/pool"
	"github.com/cuemby/aeroclient/pkg/types"
	"github.com/rs/zerolog"
)

// Executor runs single-key commands against a cluster: resolve, checkout,
// write, read, retry (spec §4.6).
type Executor struct {
	Cluster *cluster.Cluster
	logger  zerolog.Logger
}

func NewExecutor(c *cluster.Cluster) *Executor {
	return &Executor{Cluster: c, logger: log.WithComponent("command")}
}

// attempt is one resolve→checkout→write→read cycle. The retry loop in
// execute owns deciding whether to repeat it. The returned pool is the
// exact pool conn was checked out from, since a node may round-robin
// across several pools and a second node.Pool() call could pick a
// different one.
func (e *Executor) attempt(ctx context.Context, key *types.Key, base policy.BasePolicy, replicaIndex int, build func() codec.Command) (*codec.ParsedMessage, *cluster.Node, *pool.Pool, *pool.Conn, error) {
	node, _, err := resolve(e.Cluster, key, cluster.ReplicaPolicy(base.ReplicaPolicy), replicaIndex, base.PreferredRack)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	p := node.Pool()
	conn, err := p.Get(ctx)
	if err != nil {
		return nil, node, p, nil, err
	}

	cmd := build()
	req, err := codec.Compile(cmd)
	if err != nil {
		p.Put(conn)
		return nil, node, p, conn, aerr.Wrap(aerr.Client, err, "command: compile request")
	}

	msg, wrote, err := sendRecv(ctx, conn, req, base.SocketTimeout)
	if err != nil {
		if wrote && cmd.Info2&codec.Info2Write != 0 {
			// The write reached the wire but the response never arrived: the
			// server may or may not have applied it. Mark in-doubt so the
			// retry loop refuses to resend it blindly.
			return nil, node, p, conn, aerr.InDoubtf(aerr.Connection, err, "command: transport")
		}
		return nil, node, p, conn, aerr.Wrap(aerr.Connection, err, "command: transport")
	}
	return msg, node, p, conn, nil
}

// execute drives the full retry loop of spec §4.6: on a retryable error it
// rotates the replica index and sleeps SleepBetweenRetries, up to
// MaxRetries, bounded by TotalTimeout.
func (e *Executor) execute(ctx context.Context, key *types.Key, base policy.BasePolicy, build func() codec.Command) (*codec.ParsedMessage, error) {
	deadline := time.Time{}
	if base.TotalTimeout > 0 {
		deadline = time.Now().Add(base.TotalTimeout)
	}

	var lastErr error
	for attemptNum := 0; attemptNum <= base.MaxRetries; attemptNum++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, aerr.Wrap(aerr.Timeout, lastErr, "command: total timeout exceeded")
		}
		if e.Cluster != nil {
			atomic.AddUint64(&e.Cluster.CommandsIssued, 1)
		}

		msg, node, p, conn, err := e.attempt(ctx, key, base, attemptNum, build)
		if err != nil {
			lastErr = err
			if node != nil {
				node.IncrError()
			}
			if conn != nil {
				p.Discard(conn)
			}
			if ae, ok := aerr.As(err); ok && !ae.InDoubt && ae.Retryable() && attemptNum < base.MaxRetries {
				if e.Cluster != nil {
					atomic.AddUint64(&e.Cluster.Retries, 1)
				}
				e.sleepBeforeRetry(ctx, base.SleepBetweenRetries)
				continue
			}
			return nil, err
		}

		serverCode := aerr.FromServerCode(aerr.ServerResultCode(msg.Header.ResultCode))
		if serverCode == aerr.OK {
			p.Put(conn)
			return msg, nil
		}

		ae := aerr.New(serverCode, "command: server result code %d", msg.Header.ResultCode)
		lastErr = ae
		if !ae.InDoubt && serverCode.Retryable() && attemptNum < base.MaxRetries {
			node.IncrError()
			p.Put(conn)
			if e.Cluster != nil {
				atomic.AddUint64(&e.Cluster.Retries, 1)
			}
			e.sleepBeforeRetry(ctx, base.SleepBetweenRetries)
			continue
		}
		p.Put(conn)
		return nil, lastErr
	}
	return nil, lastErr
}

func (e *Executor) sleepBeforeRetry(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
