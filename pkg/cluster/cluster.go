package cluster

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/aeroclient/pkg/log"
	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/rs/zerolog"
)

// Config configures a Cluster at connect time (spec §6 Configuration).
type Config struct {
	Hosts            []Address
	User, Password   string
	ClusterName      string
	TendInterval     time.Duration
	ConnTimeout      time.Duration
	LoginTimeout     time.Duration
	MaxSocketIdle    time.Duration
	MinConnsPerNode  int
	MaxConnsPerNode  int
	ConnPoolsPerNode int
	MaxErrorRate     float64
	ErrorRateWindow  int
	RackAware        bool
	PreferredRack    int
	// Dial opens a raw (already-authenticated, if needed) socket to addr
	// for command traffic. InfoDial opens one for the ASCII info protocol.
	Dial     func(ctx context.Context, addr Address) (net.Conn, error)
	InfoDial func(ctx context.Context, addr Address) (InfoConn, error)
}

// Cluster is the process-wide handle: it owns the node registry and the
// per-namespace partition tables, and runs the tender task that keeps both
// current (spec §3).
type Cluster struct {
	cfg Config

	// nodes is a copy-on-write immutable radix tree keyed by node name,
	// published via atomic pointer swap — the "reference-counted pointer
	// array" of spec §9, reimplemented as an immutable snapshot.
	nodes atomic.Pointer[iradix.Tree]

	tablesMu sync.RWMutex
	tables   map[string]*PartitionTable

	partitionCount int32 // set once, on first successful tend

	logger zerolog.Logger

	tendStop chan struct{}
	tendDone chan struct{}

	garbage   []func()
	garbageMu sync.Mutex

	// Cumulative counters (spec §3).
	CommandsIssued      uint64
	Retries             uint64
	DelayQueueTimeouts  uint64
	InvalidNodeEvents   uint64

	connectOnce sync.Once
	closed      int32
}

// NewCluster constructs a Cluster and seeds its node registry empty; call
// Connect to start the tender and block for initial stabilization.
func NewCluster(cfg Config) *Cluster {
	c := &Cluster{
		cfg:      cfg,
		tables:   make(map[string]*PartitionTable),
		logger:   log.WithComponent("cluster"),
		tendStop: make(chan struct{}),
		tendDone: make(chan struct{}),
	}
	c.nodes.Store(iradix.New())
	return c
}

// Nodes returns a snapshot slice of every currently active node. The
// returned slice is safe to range over without locking; the tender never
// mutates a published snapshot in place.
func (c *Cluster) Nodes() []*Node {
	tree := c.nodes.Load()
	out := make([]*Node, 0, tree.Len())
	tree.Root().Walk(func(k []byte, v interface{}) bool {
		out = append(out, v.(*Node))
		return false
	})
	return out
}

// NodeByName looks up a node by its stable server-assigned name.
func (c *Cluster) NodeByName(name string) (*Node, bool) {
	tree := c.nodes.Load()
	v, ok := tree.Get([]byte(name))
	if !ok {
		return nil, false
	}
	return v.(*Node), true
}

// applyNodeDelta installs the given adds/removes as one copy-on-write
// swap, deferring pool closes of removed nodes to the garbage list so
// in-flight readers that captured the old snapshot aren't disrupted
// (spec §4.5 step 7, §9).
func (c *Cluster) applyNodeDelta(adds []*Node, removeNames []string) {
	tree := c.nodes.Load()
	txn := tree.Txn()
	for _, n := range adds {
		txn.Insert([]byte(n.Name()), n)
	}
	var removed []*Node
	for _, name := range removeNames {
		if v, ok := txn.Delete([]byte(name)); ok {
			removed = append(removed, v.(*Node))
		}
	}
	c.nodes.Store(txn.Commit())

	if len(removed) > 0 {
		c.deferGarbage(func() {
			for _, n := range removed {
				n.Deactivate()
				n.Close()
			}
		})
	}
}

// deferGarbage queues a cleanup to run on the *next* tend iteration (the
// one-interval defer of spec §4.5 step 1 that protects readers who saw a
// soon-to-be-freed pointer).
func (c *Cluster) deferGarbage(f func()) {
	c.garbageMu.Lock()
	c.garbage = append(c.garbage, f)
	c.garbageMu.Unlock()
}

func (c *Cluster) runGarbage() {
	c.garbageMu.Lock()
	pending := c.garbage
	c.garbage = nil
	c.garbageMu.Unlock()

	for _, f := range pending {
		f()
	}
}

func (c *Cluster) PartitionCount() int { return int(atomic.LoadInt32(&c.partitionCount)) }

func (c *Cluster) setPartitionCount(n int) {
	atomic.CompareAndSwapInt32(&c.partitionCount, 0, int32(n))
}

// Table returns (creating if absent) the partition table for namespace.
func (c *Cluster) Table(namespace string) *PartitionTable {
	c.tablesMu.RLock()
	t, ok := c.tables[namespace]
	c.tablesMu.RUnlock()
	if ok {
		return t
	}

	c.tablesMu.Lock()
	defer c.tablesMu.Unlock()
	if t, ok := c.tables[namespace]; ok {
		return t
	}
	t = NewPartitionTable(namespace, c.PartitionCount(), 0)
	c.tables[namespace] = t
	return t
}

// Connect starts the tender and blocks until the node count is non-zero
// and unchanged across three consecutive 25 ms polls, or until LoginTimeout
// (5 s if unset) elapses, in which case it returns nil with whatever nodes
// are known. The polls are not tied to tend iterations, so a single tend
// that adds nodes is enough to end the wait.
func (c *Cluster) Connect(ctx context.Context) error {
	var err error
	c.connectOnce.Do(func() {
		go c.tendLoop()
		err = c.waitStable(ctx)
	})
	return err
}

func (c *Cluster) waitStable(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.LoginTimeout)
	if c.cfg.LoginTimeout <= 0 {
		deadline = time.Now().Add(5 * time.Second)
	}
	last := -1
	stableTicks := 0
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n := len(c.Nodes())
			if n > 0 && n == last {
				stableTicks++
				if stableTicks >= 2 {
					return nil
				}
			} else {
				stableTicks = 0
			}
			last = n
			if time.Now().After(deadline) {
				return nil // best effort: proceed with whatever we have
			}
		}
	}
}

// Close stops the tender, closes every node's pools, and drains the
// garbage list (spec §3 Lifecycle, invariant 5).
func (c *Cluster) Close() {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	close(c.tendStop)
	<-c.tendDone

	for _, n := range c.Nodes() {
		n.Close()
	}
	c.runGarbage()
}
