package cluster

import (
	"encoding/base64"
	"sync/atomic"
)

// PartitionTable is the per-namespace replica map: for each partition id,
// an ordered replica vector of node handles (spec §3, §4.2). Installs are
// atomic pointer swaps so readers never observe a partial update.
type PartitionTable struct {
	Namespace      string
	PartitionCount int
	ReplicaCount   int

	generation uint32 // atomic
	snapshot   atomic.Pointer[[][]*Node]
}

func NewPartitionTable(namespace string, partitionCount, replicaCount int) *PartitionTable {
	t := &PartitionTable{Namespace: namespace, PartitionCount: partitionCount, ReplicaCount: replicaCount}
	empty := make([][]*Node, partitionCount)
	for i := range empty {
		empty[i] = make([]*Node, replicaCount)
	}
	t.snapshot.Store(&empty)
	return t
}

// Replicas returns the current replica-vector snapshot. Callers must treat
// it as immutable.
func (t *PartitionTable) Replicas() [][]*Node {
	return *t.snapshot.Load()
}

func (t *PartitionTable) Generation() uint32 { return atomic.LoadUint32(&t.generation) }

// InstallSnapshot atomically publishes a new replica-vector snapshot. The
// caller builds the new array as a copy-on-write of the old one (spec §9).
func (t *PartitionTable) InstallSnapshot(generation uint32, replicas [][]*Node) {
	t.snapshot.Store(&replicas)
	atomic.StoreUint32(&t.generation, generation)
}

// NodeForPartition returns the replica at replicaIndex for partitionID, or
// nil if unmapped (spec §4.2's "unavailable partition" case).
func (t *PartitionTable) NodeForPartition(partitionID, replicaIndex int) *Node {
	replicas := t.Replicas()
	if partitionID < 0 || partitionID >= len(replicas) {
		return nil
	}
	row := replicas[partitionID]
	if replicaIndex < 0 || replicaIndex >= len(row) {
		return nil
	}
	return row[replicaIndex]
}

// CloneForUpdate returns a deep-enough copy of the current snapshot
// suitable for mutating in place before InstallSnapshot — the
// copy-on-write step spec §9 calls for.
func (t *PartitionTable) CloneForUpdate() [][]*Node {
	old := t.Replicas()
	out := make([][]*Node, len(old))
	for i, row := range old {
		cp := make([]*Node, len(row))
		copy(cp, row)
		out[i] = cp
	}
	return out
}

// DecodeOwnershipBitmap decodes the server's packed base64 bitmap of
// "which partitions does this node own at this replica level" into a bool
// slice indexed by partition id (spec §4.2).
func DecodeOwnershipBitmap(b64 string, partitionCount int) ([]bool, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	owns := make([]bool, partitionCount)
	for pid := 0; pid < partitionCount; pid++ {
		byteIdx := pid / 8
		if byteIdx >= len(raw) {
			break
		}
		bitIdx := 7 - (pid % 8)
		owns[pid] = raw[byteIdx]&(1<<uint(bitIdx)) != 0
	}
	return owns, nil
}

// ApplyOwnership installs node as the replica at replicaIndex for every
// partition set in owns, building a copy-on-write snapshot and swapping it
// in.
func (t *PartitionTable) ApplyOwnership(generation uint32, replicaIndex int, node *Node, owns []bool) {
	next := t.CloneForUpdate()
	for pid, owned := range owns {
		if !owned || pid >= len(next) {
			continue
		}
		row := next[pid]
		if replicaIndex >= len(row) {
			continue
		}
		row[replicaIndex] = node
	}
	t.InstallSnapshot(generation, next)
}
