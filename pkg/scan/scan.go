package scan

import (
	"context"
	"encoding/binary"
	"sort"
	"sync/atomic"

	"github.com/cuemby/aeroclient/pkg/aerr"
	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/codec"
	"github.com/cuemby/aeroclient/pkg/log"
	"github.com/cuemby/aeroclient/pkg/policy"
	"github.com/cuemby/aeroclient/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// newTaskID derives a wire task_id from a fresh UUID's leading 8 bytes —
// the server only requires uniqueness, not a particular encoding.
func newTaskID() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}

// RecordHandler is called once per record yielded by a scan/query; an
// error return aborts the whole run.
type RecordHandler func(rec *types.Record) error

// Run executes a scan or query against namespace/set, fanning out one
// goroutine per assigned node and feeding every yielded record to handler.
// taskID identifies this job to the server; filter (if non-nil) turns
// the request into a secondary-index query.
func Run(ctx context.Context, c *cluster.Cluster, p *policy.ScanPolicy, filter *policy.Filter, namespace, set string, binNames []string, handler RecordHandler) error {
	if p == nil {
		p = policy.DefaultScanPolicy()
	}
	logger := log.WithComponent("scan").With().Str("namespace", namespace).Logger()

	tracker := NewTracker(c, namespace)
	taskID := newTaskID()

	var limiter *rate.Limiter
	if p.RecordsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.RecordsPerSecond), p.RecordsPerSecond)
	}

	// The first handler error is kept so Run can stop and return it.
	var handlerErr atomic.Pointer[error]
	userHandler := handler
	handler = func(rec *types.Record) error {
		err := userHandler(rec)
		if err != nil {
			handlerErr.CompareAndSwap(nil, &err)
		}
		return err
	}

	// remaining is the shared record budget left across the whole scan; it
	// is split across nodes fresh each iteration and decremented by what
	// was actually returned, mirroring as_partition_tracker.c's
	// per-iteration max_records redistribution (spec §4.8).
	remaining := p.MaxRecords

	for !tracker.IsDone() {
		if p.MaxRecords > 0 && remaining == 0 {
			break
		}

		assignments := tracker.NodeAssignments()
		if len(assignments) == 0 {
			break
		}

		nodes := make([]*cluster.Node, 0, len(assignments))
		for node := range assignments {
			nodes = append(nodes, node)
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name() < nodes[j].Name() })
		perNodeMax := distributeMaxRecords(remaining, len(nodes))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(p.Concurrency, 1))

		var sharedBudget *int64
		if p.MaxRecords > 0 {
			b := int64(remaining)
			sharedBudget = &b
		}

		var iterationCount int64
		for i, node := range nodes {
			node, nodeMax := node, perNodeMax[i]
			g.Go(func() error {
				n, err := runOnNode(gctx, node, tracker, limiter, uint64(taskID), namespace, set, binNames, filter, p, nodeMax, sharedBudget, handler)
				atomic.AddInt64(&iterationCount, int64(n))
				return err
			})
		}

		err := g.Wait()
		if p.MaxRecords > 0 {
			n := uint64(iterationCount)
			if n >= remaining {
				remaining = 0
			} else {
				remaining -= n
			}
		}
		if herr := handlerErr.Load(); herr != nil {
			return *herr
		}
		if err != nil {
			logger.Warn().Err(err).Msg("scan: node fan-out returned error, will retry remaining partitions")
			if ctx.Err() != nil {
				return err
			}
		}
	}
	return nil
}

// distributeMaxRecords splits a shared record budget across nodeCount
// nodes the way as_partition_tracker.c does: when the budget covers every
// node, each gets max = budget/nodeCount, with the first (budget%nodeCount)
// nodes getting one extra. When the budget is smaller than nodeCount, every
// node gets 1 so that no node is starved to 0 and some progress is always
// made; callers cap the total delivered records against the budget
// independently of the per-node split. A zero budget means unlimited and is
// returned as a slice of zeros (buildCommand treats 0 as "no limit").
func distributeMaxRecords(remaining uint64, nodeCount int) []uint64 {
	out := make([]uint64, nodeCount)
	if remaining == 0 || nodeCount == 0 {
		return out
	}
	if remaining >= uint64(nodeCount) {
		share := remaining / uint64(nodeCount)
		rem := remaining - share*uint64(nodeCount)
		for i := range out {
			out[i] = share
			if uint64(i) < rem {
				out[i]++
			}
		}
		return out
	}
	for i := range out {
		out[i] = 1
	}
	return out
}

// runOnNode drives one node's share of a scan iteration, stopping at
// nodeMax (this node's slice of the distributed record budget) and, as a
// client-side backstop, at sharedBudget (the whole iteration's remaining
// total) so the sum across every node in the iteration never exceeds it
// even when nodeMax alone would overshoot (spec §4.8, Testable Property
// #6). It returns the number of records actually delivered to handler.
func runOnNode(ctx context.Context, node *cluster.Node, tracker *Tracker, limiter *rate.Limiter, taskID uint64, namespace, set string, binNames []string, filter *policy.Filter, sp *policy.ScanPolicy, nodeMax uint64, sharedBudget *int64, handler RecordHandler) (int, error) {
	partIDs := make([]int, 0)
	for _, st := range tracker.NodeAssignments()[node] {
		partIDs = append(partIDs, st.ID)
	}
	if len(partIDs) == 0 {
		return 0, nil
	}

	pl := node.Pool()
	conn, err := pl.Get(ctx)
	if err != nil {
		for _, pid := range partIDs {
			tracker.MarkRetry(pid)
		}
		return 0, aerr.Wrap(aerr.Connection, err, "scan: checkout node %s", node.Name())
	}
	defer pl.Put(conn)

	cmd := buildCommand(namespace, set, binNames, partIDs, taskID, filter, sp, nodeMax)
	req, err := codec.Compile(cmd)
	if err != nil {
		return 0, aerr.Wrap(aerr.Client, err, "scan: compile request")
	}
	if _, err := conn.Write(req); err != nil {
		pl.Discard(conn)
		for _, pid := range partIDs {
			tracker.MarkRetry(pid)
		}
		return 0, aerr.Wrap(aerr.Connection, err, "scan: write request")
	}

	var recordCount int
	for {
		msg, err := streamFrame(ctx, conn.Conn, sp.SocketTimeout)
		if err != nil {
			pl.Discard(conn)
			for _, pid := range partIDs {
				tracker.MarkRetry(pid)
			}
			return recordCount, aerr.Wrap(aerr.Connection, err, "scan: stream read")
		}

		code := aerr.FromServerCode(aerr.ServerResultCode(msg.Header.ResultCode))
		if code != aerr.OK && len(msg.Ops) == 0 {
			if isLastOfMulti(msg) {
				break
			}
			continue
		}

		if len(msg.Ops) > 0 {
			if !consumeBudget(sharedBudget) {
				break
			}
			rec := msg.ToRecord(nil)
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return recordCount, err
				}
			}
			if err := handler(rec); err != nil {
				return recordCount, err
			}
			recordCount++
			if nodeMax > 0 && uint64(recordCount) >= nodeMax {
				break
			}
		}

		if isLastOfMulti(msg) {
			break
		}
	}

	for _, pid := range partIDs {
		tracker.MarkDone(pid)
	}
	return recordCount, nil
}

// consumeBudget atomically claims one unit of a shared iteration-wide record
// budget. A nil budget means unlimited.
func consumeBudget(budget *int64) bool {
	if budget == nil {
		return true
	}
	for {
		cur := atomic.LoadInt64(budget)
		if cur <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(budget, cur, cur-1) {
			return true
		}
	}
}

func buildCommand(namespace, set string, binNames []string, partIDs []int, taskID uint64, filter *policy.Filter, p *policy.ScanPolicy, nodeMax uint64) codec.Command {
	fields := []codec.FieldEntry{codec.NamespaceField(namespace)}
	if set != "" {
		fields = append(fields, codec.SetField(set))
	}
	fields = append(fields, codec.TaskIDField(taskID))

	ids := make([]uint16, len(partIDs))
	for i, pid := range partIDs {
		ids[i] = uint16(pid)
	}
	fields = append(fields, codec.PartitionIDArrayField(ids))

	if p.RecordsPerSecond > 0 {
		fields = append(fields, codec.RecordsPerSecondField(uint32(p.RecordsPerSecond)))
	}
	if nodeMax > 0 {
		fields = append(fields, codec.MaxRecordsField(nodeMax))
	}
	if filter != nil {
		if ff, err := filterField(filter); err == nil {
			fields = append(fields, ff)
		}
	}
	if p.PredExp != nil {
		fields = append(fields, codec.PredExpField(predExpNodes(p.PredExp.Compile())))
	}

	info1 := codec.Info1Read | codec.Info1GetAll
	if !p.IncludeBinData {
		info1 |= codec.Info1GetNoBinData
	}

	var ops []codec.OpEntry
	for _, bin := range binNames {
		ops = append(ops, codec.OpEntry{Code: types.OpRead, Name: bin})
	}

	return codec.Command{
		Info1:  info1,
		Fields: fields,
		Ops:    ops,
	}
}

// filterField translates a secondary-index filter into its wire field.
func filterField(f *policy.Filter) (codec.FieldEntry, error) {
	op := codec.IndexFilterEqual
	if f.Op == policy.FilterRange {
		op = codec.IndexFilterRange
	}
	return codec.IndexFilterField(f.Bin, op, byte(f.Collection), f.Begin, f.End)
}

// predExpNodes translates a compiled (postfix) predicate-expression tree
// into the wire-ready node list PredExpField expects.
func predExpNodes(compiled []*policy.PredExp) []codec.PredExpNode {
	out := make([]codec.PredExpNode, 0, len(compiled))
	for _, p := range compiled {
		n := codec.PredExpNode{BinName: p.StrVal, IntVal: p.IntVal, StrVal: p.StrVal}
		switch p.Op {
		case policy.PredExpAnd:
			n.Tag = codec.PredExpTagAnd
			n.NExpr = uint16(len(p.Children))
		case policy.PredExpOr:
			n.Tag = codec.PredExpTagOr
			n.NExpr = uint16(len(p.Children))
		case policy.PredExpNot:
			n.Tag = codec.PredExpTagNot
		case policy.PredExpIntegerValue:
			n.Tag = codec.PredExpTagIntegerValue
		case policy.PredExpStringValue:
			n.Tag = codec.PredExpTagStringValue
		case policy.PredExpIntegerBin:
			n.Tag = codec.PredExpTagIntegerBin
		case policy.PredExpStringBin:
			n.Tag = codec.PredExpTagStringBin
		case policy.PredExpIntegerEqual:
			n.Tag = codec.PredExpTagIntegerEqual
		case policy.PredExpIntegerGreater:
			n.Tag = codec.PredExpTagIntegerGreater
		case policy.PredExpIntegerLess:
			n.Tag = codec.PredExpTagIntegerLess
		case policy.PredExpStringEqual:
			n.Tag = codec.PredExpTagStringEqual
		}
		out = append(out, n)
	}
	return out
}
