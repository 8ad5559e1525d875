// Package pool implements the per-node connection pool: a bounded FIFO
// queue of authenticated sockets with idle-age trimming and a max bound
// (spec §4.4). Config.Min is stored but not enforced: the pool opens
// connections only on demand and keeps no minimum open.
package pool

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/cuemby/aeroclient/pkg/aerr"
	"github.com/cuemby/aeroclient/pkg/log"
	"github.com/rs/zerolog"
)

// ErrNoCapacity is returned by Get, wrapped in an aerr.NoMoreConnections
// error, when the pool is empty and at its max size.
var ErrNoCapacity = errors.New("pool: no capacity")

// Dialer opens a new authenticated connection to a node.
type Dialer func(ctx context.Context) (net.Conn, error)

// Conn wraps a pooled socket with the bookkeeping the pool needs: last-used
// timestamp, pipeline flag, and owning pool. There is no checked-out flag:
// Put does not check whether a connection is currently checked out.
type Conn struct {
	net.Conn
	lastUsed time.Time
	pipeline bool
	pool     *Pool
}

func (c *Conn) touch() { c.lastUsed = time.Now() }

// Pool is a bounded FIFO queue of connections for a single node.
type Pool struct {
	mu     sync.Mutex
	queue  []*Conn
	total  int
	min    int
	max    int
	maxIdle time.Duration
	dial   Dialer
	opened uint64
	closed uint64
	logger zerolog.Logger
}

// Config bounds and tunes a Pool.
type Config struct {
	Min           int
	Max           int
	MaxIdle       time.Duration // max_socket_idle_trim_ns equivalent
	Dial          Dialer
	NodeName      string
}

func New(cfg Config) *Pool {
	return &Pool{
		min:     cfg.Min,
		max:     cfg.Max,
		maxIdle: cfg.MaxIdle,
		dial:    cfg.Dial,
		logger:  log.WithComponent("pool").With().Str("node", cfg.NodeName).Logger(),
	}
}

// Get checks out a connection, trimming idle sockets and opening a new one
// if the pool is empty and under its cap. Returns ErrNoCapacity (wrapped,
// see above) if the pool is empty and at max; Get never waits for a
// connection to be returned.
func (p *Pool) Get(ctx context.Context) (*Conn, error) {
	for {
		p.mu.Lock()
		if n := len(p.queue); n > 0 {
			c := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()

			if p.maxIdle > 0 && time.Since(c.lastUsed) > p.maxIdle {
				p.closeConn(c)
				continue
			}
			if !healthPeek(c.Conn) {
				p.closeConn(c)
				continue
			}
			return c, nil
		}

		if p.total >= p.max {
			p.mu.Unlock()
			return nil, aerr.Wrap(aerr.NoMoreConnections, ErrNoCapacity, "pool: total=%d max=%d", p.total, p.max)
		}
		p.total++
		p.mu.Unlock()

		conn, err := p.dial(ctx)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return nil, aerr.Wrap(aerr.Connection, err, "pool: dial failed")
		}
		p.opened++
		return &Conn{Conn: conn, lastUsed: time.Now(), pool: p}, nil
	}
}

// Put returns a connection to the pool unless it would exceed the pool's
// cap or has been idle past the trim threshold, in which case it is
// closed and counted (spec §4.4 Return).
func (p *Pool) Put(c *Conn) {
	if c == nil {
		return
	}
	if p.maxIdle > 0 && time.Since(c.lastUsed) > p.maxIdle {
		p.closeConn(c)
		return
	}
	c.touch()

	p.mu.Lock()
	if len(p.queue) >= p.max {
		p.mu.Unlock()
		p.closeConn(c)
		return
	}
	p.queue = append(p.queue, c)
	p.mu.Unlock()
}

// Discard closes a connection without returning it to the pool — used
// after a protocol error or mid-read failure (spec §4.6 step 5).
func (p *Pool) Discard(c *Conn) {
	if c == nil {
		return
	}
	p.closeConn(c)
}

func (p *Pool) closeConn(c *Conn) {
	_ = c.Conn.Close()
	p.mu.Lock()
	p.total--
	p.closed++
	p.mu.Unlock()
}

// Close drains and closes every connection waiting in the queue.
// Connections checked out at the time are not closed by it, and a later
// Put adds them back to the queue.
func (p *Pool) Close() {
	p.mu.Lock()
	q := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, c := range q {
		p.closeConn(c)
	}
}

// Stats reports the pool's current bounds and counters; callers may assert
// Size <= Total <= Max (invariant 4).
type Stats struct {
	Size, Total, Max   int
	Opened, Closed     uint64
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Size: len(p.queue), Total: p.total, Max: p.max, Opened: p.opened, Closed: p.closed}
}

// healthPeek performs a non-blocking read to detect a socket that the peer
// has closed or pushed a stray byte onto (spec §4.4 health check).
func healthPeek(c net.Conn) bool {
	if deadliner, ok := c.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = deadliner.SetReadDeadline(time.Now())
		defer deadliner.SetReadDeadline(time.Time{})
	}
	var b [1]byte
	n, err := c.Read(b[:])
	if n > 0 {
		return false
	}
	if err == nil {
		return true
	}
	ne, ok := err.(net.Error)
	if ok && ne.Timeout() {
		return true
	}
	return false
}
