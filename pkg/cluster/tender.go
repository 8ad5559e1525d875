package cluster

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/aeroclient/pkg/pool"
)

// tendLoop is the cluster tender: it refreshes the node set and partition
// maps every TendInterval (spec §4.5). Shaped after the teacher's
// reconciler loop (ticker + select + stop channel).
func (c *Cluster) tendLoop() {
	defer close(c.tendDone)

	interval := c.cfg.TendInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", interval).Msg("tender started")

	for {
		select {
		case <-ticker.C:
			if err := c.tendOnce(context.Background()); err != nil {
				c.logger.Error().Err(err).Msg("tend iteration failed")
			}
		case <-c.tendStop:
			c.logger.Info().Msg("tender stopped")
			return
		}
	}
}

// tendOnce runs the 7-step algorithm of spec §4.5.
func (c *Cluster) tendOnce(ctx context.Context) error {
	// Step 1: run garbage from the previous iteration.
	c.runGarbage()

	nodes := c.Nodes()

	// Step 2: seed if no active nodes.
	if len(nodes) == 0 {
		if err := c.seedFromHosts(ctx); err != nil {
			return err
		}
		nodes = c.Nodes()
	}
	if len(nodes) == 0 {
		return nil
	}

	var friends []friendInfo
	var removable []string

	for _, n := range nodes {
		info, err := c.infoForNode(ctx, n)
		if err != nil {
			n.IncrConsecutiveFailures()
			n.TickErrorWindow(0)
			if isRemovableOnFailure(n, len(nodes)) {
				removable = append(removable, n.Name())
			}
			continue
		}
		n.ResetConsecutiveFailures()
		n.TickErrorWindow(0)

		// Step 3: install partition count on first successful tend.
		if pc, ok := parseIntField(info["partition-count"]); ok {
			c.setPartitionCount(pc)
		}

		// Step 4: detect a renamed node and deactivate immediately.
		if name, ok := info["node"]; ok && name != n.Name() {
			n.Deactivate()
			removable = append(removable, n.Name())
			continue
		}

		if gen, ok := parseIntField(info["partition-generation"]); ok {
			if uint32(gen) != n.PartitionGeneration() {
				n.SetPartitionGeneration(uint32(gen))
				if err := c.refreshReplicas(ctx, n); err != nil {
					c.logger.Warn().Err(err).Str("node", n.Name()).Msg("replica refresh failed")
				}
			}
		}

		friends = append(friends, parseFriends(info["peers"])...)
	}

	// Step 5: merge friends into pending additions; compute removals.
	adds := c.resolveNewFriends(ctx, friends, nodes)
	removable = append(removable, c.computeUnreferencedRemovals(nodes, friends)...)

	if len(adds) > 0 || len(removable) > 0 {
		c.applyNodeDelta(adds, dedup(removable))
	}

	return nil
}

type friendInfo struct {
	name string
	addr Address
}

func parseFriends(s string) []friendInfo {
	if s == "" {
		return nil
	}
	var out []friendInfo
	for _, entry := range strings.Split(s, ";") {
		parts := strings.Split(entry, ":")
		if len(parts) < 2 {
			continue
		}
		port, _ := strconv.Atoi(parts[len(parts)-1])
		host := strings.Join(parts[:len(parts)-1], ":")
		out = append(out, friendInfo{addr: Address{Host: host, Port: port}})
	}
	return out
}

func parseIntField(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// seedFromHosts attempts to reach each configured seed host, learns its
// node name, and inserts it if new (spec §4.5 step 2).
func (c *Cluster) seedFromHosts(ctx context.Context) error {
	var adds []*Node
	for _, addr := range c.cfg.Hosts {
		n, err := c.probeSeed(ctx, addr)
		if err != nil {
			c.logger.Warn().Err(err).Str("addr", addr.String()).Msg("seed unreachable")
			continue
		}
		if _, exists := c.NodeByName(n.Name()); !exists {
			adds = append(adds, n)
		}
	}
	if len(adds) > 0 {
		c.applyNodeDelta(adds, nil)
	}
	return nil
}

func (c *Cluster) probeSeed(ctx context.Context, addr Address) (*Node, error) {
	info, err := c.rawInfo(ctx, addr, "node")
	if err != nil {
		return nil, err
	}
	name := info["node"]
	if name == "" {
		name = addr.String()
	}
	return c.newNodeFromAddr(name, addr), nil
}

func (c *Cluster) newNodeFromAddr(name string, addr Address) *Node {
	return NewNode(NodeConfig{
		Name:         name,
		Addresses:    []Address{addr},
		RackID:       c.cfg.PreferredRack,
		PoolsPerNode: c.cfg.ConnPoolsPerNode,
		ErrorWindow:  c.cfg.ErrorRateWindow,
		PoolConfig:   c.poolConfigFor(addr),
	})
}

// poolConfigFor builds the per-node pool.Config, binding the node's
// address into a pool.Dialer closure.
func (c *Cluster) poolConfigFor(addr Address) pool.Config {
	dial := c.cfg.Dial
	return pool.Config{
		Min:     c.cfg.MinConnsPerNode,
		Max:     c.cfg.MaxConnsPerNode,
		MaxIdle: c.cfg.MaxSocketIdle,
		Dial: func(ctx context.Context) (net.Conn, error) {
			if dial == nil {
				return nil, errNoDialer
			}
			return dial(ctx, addr)
		},
	}
}

func (c *Cluster) infoForNode(ctx context.Context, n *Node) (map[string]string, error) {
	addrs := n.Addresses()
	if len(addrs) == 0 {
		return nil, errNoAddress
	}
	return c.rawInfo(ctx, addrs[0], "node", "partition-generation", "partition-count", "services", "peers", "rack-id")
}

func (c *Cluster) rawInfo(ctx context.Context, addr Address, names ...string) (map[string]string, error) {
	if c.cfg.InfoDial == nil {
		return nil, errNoDialer
	}
	conn, err := c.cfg.InfoDial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return RequestInfo(ctx, conn, names...)
}

func (c *Cluster) dialerFor(addr Address) func(ctx context.Context) (interface{}, error) {
	return nil // resolved lazily by poolConfigFor via c.cfg.Dial
}

func (c *Cluster) refreshReplicas(ctx context.Context, n *Node) error {
	addrs := n.Addresses()
	if len(addrs) == 0 {
		return errNoAddress
	}
	info, err := c.rawInfo(ctx, addrs[0], "replicas-all")
	if err != nil {
		return err
	}
	// "replicas-all" format: ns1:count,b64master,b64prole1,...;ns2:...
	for _, nsEntry := range strings.Split(info["replicas-all"], ";") {
		if nsEntry == "" {
			continue
		}
		colon := strings.IndexByte(nsEntry, ':')
		if colon < 0 {
			continue
		}
		ns := nsEntry[:colon]
		rest := strings.Split(nsEntry[colon+1:], ",")
		if len(rest) < 2 {
			continue
		}
		replicaCount, _ := strconv.Atoi(rest[0])
		table := c.Table(ns)
		table.ReplicaCount = replicaCount
		for i, b64 := range rest[1:] {
			owns, err := DecodeOwnershipBitmap(b64, c.PartitionCount())
			if err != nil {
				continue
			}
			table.ApplyOwnership(table.Generation()+1, i, n, owns)
		}
	}
	return nil
}

func (c *Cluster) resolveNewFriends(ctx context.Context, friends []friendInfo, existing []*Node) []*Node {
	known := make(map[string]bool, len(existing))
	for _, n := range existing {
		known[n.Name()] = true
	}
	var adds []*Node
	for _, f := range friends {
		info, err := c.rawInfo(ctx, f.addr, "node")
		if err != nil {
			continue
		}
		name := info["node"]
		if name == "" || known[name] {
			continue
		}
		known[name] = true
		adds = append(adds, c.newNodeFromAddr(name, f.addr))
	}
	return adds
}

// computeUnreferencedRemovals returns the names of nodes that are no longer
// active. A node that peers stop referencing, or that is unmapped in every
// partition table, is not removed here. The 1-2 node info-failure case is
// handled separately by isRemovableOnFailure, which counts consecutive
// failures only and does not check whether another node is reachable.
func (c *Cluster) computeUnreferencedRemovals(nodes []*Node, friends []friendInfo) []string {
	friendNames := make(map[string]bool, len(friends))
	for _, f := range friends {
		friendNames[f.addr.String()] = true
	}
	var out []string
	for _, n := range nodes {
		if !n.Active() {
			out = append(out, n.Name())
			continue
		}
	}
	return out
}

func isRemovableOnFailure(n *Node, clusterSize int) bool {
	const threshold = 5
	if clusterSize > 2 {
		return false
	}
	return n.ConsecutiveFailures() > threshold
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

var (
	errNoAddress = simpleErr("cluster: node has no address")
	errNoDialer  = simpleErr("cluster: no dialer configured")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
