package cluster

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/aeroclient/pkg/pool"
)

// Node represents a single server peer. It is identified by its stable,
// server-assigned name rather than by address (spec §3). Only the tender
// inserts or deactivates a node; other code paths hold a reference
// (AddRef/Release) while using it.
type Node struct {
	name      string
	addresses []Address
	primaryIx int32 // atomic index into addresses

	rackID int

	syncPools []*pool.Pool // one or more, per conn_pools_per_node
	nextPool  uint32       // atomic round robin cursor

	partitionGeneration uint32 // atomic
	friendsInLastTend   int32  // atomic
	consecutiveFailures int32  // atomic
	active              int32  // atomic bool
	refCount            int32  // atomic

	errWindow *errorRateWindow

	errorCount   uint64 // atomic
	timeoutCount uint64 // atomic
}

// NodeConfig describes how to build a node's connection pools.
type NodeConfig struct {
	Name          string
	Addresses     []Address
	RackID        int
	PoolsPerNode  int
	PoolConfig    pool.Config // Dial/Min/Max/MaxIdle shared across pools; Dial is node-specific
	ErrorWindow   int
}

func NewNode(cfg NodeConfig) *Node {
	n := &Node{
		name:      cfg.Name,
		addresses: cfg.Addresses,
		rackID:    cfg.RackID,
		active:    1,
		errWindow: newErrorRateWindow(max(cfg.ErrorWindow, 1)),
	}
	poolsPerNode := cfg.PoolsPerNode
	if poolsPerNode < 1 {
		poolsPerNode = 1
	}
	for i := 0; i < poolsPerNode; i++ {
		pc := cfg.PoolConfig
		pc.NodeName = cfg.Name
		n.syncPools = append(n.syncPools, pool.New(pc))
	}
	return n
}

func (n *Node) Name() string { return n.name }

func (n *Node) RackID() int { return n.rackID }

// Addresses returns the node's known addresses in order, primary first.
func (n *Node) Addresses() []Address {
	addrs := n.addresses
	idx := int(atomic.LoadInt32(&n.primaryIx))
	if idx == 0 || idx >= len(addrs) {
		return addrs
	}
	out := make([]Address, 0, len(addrs))
	out = append(out, addrs[idx])
	out = append(out, addrs[:idx]...)
	out = append(out, addrs[idx+1:]...)
	return out
}

// PromotePrimary atomically moves addr to the front of the address list,
// recording that a worker reached the node through it successfully
// (spec §3: "the primary is a hint").
func (n *Node) PromotePrimary(addr Address) {
	for i, a := range n.addresses {
		if a == addr {
			atomic.StoreInt32(&n.primaryIx, int32(i))
			return
		}
	}
}

// Pool returns one of the node's sync connection pools, round robin.
func (n *Node) Pool() *pool.Pool {
	idx := atomic.AddUint32(&n.nextPool, 1)
	return n.syncPools[int(idx)%len(n.syncPools)]
}

// Pools returns every sync connection pool backing this node, for
// reporting purposes (metrics aggregate across conn_pools_per_node).
func (n *Node) Pools() []*pool.Pool { return n.syncPools }

func (n *Node) Active() bool { return atomic.LoadInt32(&n.active) == 1 }
func (n *Node) Deactivate()  { atomic.StoreInt32(&n.active, 0) }

func (n *Node) AddRef()  { atomic.AddInt32(&n.refCount, 1) }
func (n *Node) Release() { atomic.AddInt32(&n.refCount, -1) }
func (n *Node) RefCount() int32 { return atomic.LoadInt32(&n.refCount) }

func (n *Node) IncrError() {
	atomic.AddUint64(&n.errorCount, 1)
	n.errWindow.recordError()
}
func (n *Node) IncrTimeout() { atomic.AddUint64(&n.timeoutCount, 1) }

func (n *Node) ErrorCount() uint64   { return atomic.LoadUint64(&n.errorCount) }
func (n *Node) TimeoutCount() uint64 { return atomic.LoadUint64(&n.timeoutCount) }

// TickErrorWindow advances the rolling error-rate window by one tend
// iteration (called once per tend from the tender).
func (n *Node) TickErrorWindow(commandCount uint64) {
	n.errWindow.tick(commandCount)
}

// ErrorRateExceeds reports whether the node's rolling error rate exceeds
// maxRate (spec §4.3). Partition selection does not call it: SelectReplica
// chooses among active nodes regardless of their error rate.
func (n *Node) ErrorRateExceeds(maxRate float64) bool {
	return n.errWindow.rate() > maxRate
}

func (n *Node) SetPartitionGeneration(gen uint32) { atomic.StoreUint32(&n.partitionGeneration, gen) }
func (n *Node) PartitionGeneration() uint32        { return atomic.LoadUint32(&n.partitionGeneration) }

func (n *Node) SetFriendsInLastTend(v int32) { atomic.StoreInt32(&n.friendsInLastTend, v) }
func (n *Node) FriendsInLastTend() int32     { return atomic.LoadInt32(&n.friendsInLastTend) }

func (n *Node) IncrConsecutiveFailures() int32 {
	return atomic.AddInt32(&n.consecutiveFailures, 1)
}
func (n *Node) ResetConsecutiveFailures() { atomic.StoreInt32(&n.consecutiveFailures, 0) }
func (n *Node) ConsecutiveFailures() int32 { return atomic.LoadInt32(&n.consecutiveFailures) }

// Close closes every connection pool owned by this node (spec invariant 5).
func (n *Node) Close() {
	for _, p := range n.syncPools {
		p.Close()
	}
}

// errorRateWindow tracks error counts over a rolling window of tend
// iterations (spec §4.3).
type errorRateWindow struct {
	mu       sync.Mutex
	errors   []uint64
	commands []uint64
	idx      int
	size     int
	pending  uint64
}

func newErrorRateWindow(size int) *errorRateWindow {
	return &errorRateWindow{
		errors:   make([]uint64, size),
		commands: make([]uint64, size),
		size:     size,
	}
}

func (w *errorRateWindow) recordError() {
	w.mu.Lock()
	w.pending++
	w.mu.Unlock()
}

func (w *errorRateWindow) tick(commandCount uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errors[w.idx] = w.pending
	w.commands[w.idx] = commandCount
	w.pending = 0
	w.idx = (w.idx + 1) % w.size
}

func (w *errorRateWindow) rate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs, cmds uint64
	for i := range w.errors {
		errs += w.errors[i]
		cmds += w.commands[i]
	}
	if cmds == 0 {
		return 0
	}
	return float64(errs) / float64(cmds)
}
