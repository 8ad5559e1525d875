// Package scan implements the partition tracker and pagination loop behind
// scan() and query(): assign partitions to their owning node, fan work out
// per node, and throttle per spec.md §4.8. The tracker can hold a resume
// digest per partition (MarkProgress), but Run never records one and sends
// no digests, so a retried partition is scanned again from its start.
package scan

import (
	"sync"

	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/types"
)

// PartitionStatus tracks one partition's progress through a scan/query.
type PartitionStatus struct {
	ID          int
	Done        bool
	Retry       bool
	BVal        uint64 // server-assigned partition generation echoed back on retry
	Digest      types.Digest
	HasDigest   bool
}

// Tracker assigns namespace partitions to their current master node and
// records per-partition done/retry state (spec.md §4.8). Partitions not
// yet done are reassigned on the next iteration and rescanned from their
// start.
type Tracker struct {
	mu         sync.Mutex
	namespace  string
	partitions []*PartitionStatus
	cluster    *cluster.Cluster
}

// NewTracker builds a tracker over every partition in the cluster's
// partition count for namespace, or just partitionIDs if non-empty
// (partial-partition scans, e.g. resuming a previous page).
func NewTracker(c *cluster.Cluster, namespace string, partitionIDs ...int) *Tracker {
	t := &Tracker{namespace: namespace, cluster: c}
	if len(partitionIDs) == 0 {
		n := c.PartitionCount()
		t.partitions = make([]*PartitionStatus, n)
		for i := 0; i < n; i++ {
			t.partitions[i] = &PartitionStatus{ID: i}
		}
		return t
	}
	t.partitions = make([]*PartitionStatus, len(partitionIDs))
	for i, pid := range partitionIDs {
		t.partitions[i] = &PartitionStatus{ID: pid}
	}
	return t
}

// NodeAssignments groups the tracker's not-yet-done partitions by their
// current master node (spec.md §4.8 "assign partitions to the node
// currently reported as master").
func (t *Tracker) NodeAssignments() map[*cluster.Node][]*PartitionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	table := t.cluster.Table(t.namespace)
	out := make(map[*cluster.Node][]*PartitionStatus)
	for _, p := range t.partitions {
		if p.Done {
			continue
		}
		node := cluster.SelectReplica(table, p.ID, cluster.ReplicaMaster, 0, 0)
		if node == nil {
			continue
		}
		out[node] = append(out[node], p)
	}
	return out
}

// MarkProgress records the last digest seen for partitionID. Run does not
// call it, and the scan request carries no digest array.
func (t *Tracker) MarkProgress(partitionID int, digest types.Digest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.find(partitionID); p != nil {
		p.Digest = digest
		p.HasDigest = true
	}
}

// MarkDone marks partitionID fully scanned; it is excluded from future
// NodeAssignments calls.
func (t *Tracker) MarkDone(partitionID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.find(partitionID); p != nil {
		p.Done = true
	}
}

// MarkRetry flags partitionID to be reassigned (e.g. after its node
// connection failed mid-page) without losing its resume digest.
func (t *Tracker) MarkRetry(partitionID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.find(partitionID); p != nil {
		p.Retry = true
	}
}

func (t *Tracker) find(partitionID int) *PartitionStatus {
	for _, p := range t.partitions {
		if p.ID == partitionID {
			return p
		}
	}
	return nil
}

// IsDone reports whether every tracked partition has completed.
func (t *Tracker) IsDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.partitions {
		if !p.Done {
			return false
		}
	}
	return true
}

// Remaining returns the partition IDs not yet marked done, suitable for
// persisting and resuming a paused scan.
func (t *Tracker) Remaining() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int
	for _, p := range t.partitions {
		if !p.Done {
			out = append(out, p.ID)
		}
	}
	return out
}
