package cluster

// ReplicaPolicy selects which replica of a partition a command targets.
type ReplicaPolicy int

const (
	ReplicaMaster ReplicaPolicy = iota
	ReplicaSequence
	ReplicaPreferRack
	ReplicaRandom
)

// SelectReplica resolves the target node for partitionID under policy,
// given the table's current snapshot and a caller-advanced replicaIndex
// (spec §4.6 step 1). preferredRack is only consulted for ReplicaPreferRack.
//
// PREFER_RACK with no in-rack healthy replica and retries disabled falls
// back to the first SEQUENCE entry — Open Question #1 in SPEC_FULL.md,
// decided here rather than left ambiguous.
func SelectReplica(table *PartitionTable, partitionID int, policy ReplicaPolicy, replicaIndex, preferredRack int) *Node {
	replicas := table.Replicas()
	if partitionID < 0 || partitionID >= len(replicas) {
		return nil
	}
	row := replicas[partitionID]
	if len(row) == 0 {
		return nil
	}

	switch policy {
	case ReplicaMaster:
		return firstHealthy(row, 0)

	case ReplicaSequence:
		return firstHealthy(row, replicaIndex)

	case ReplicaPreferRack:
		for i := 0; i < len(row); i++ {
			n := row[i]
			if n != nil && n.Active() && n.RackID() == preferredRack {
				return n
			}
		}
		// No in-rack replica: fall back to plain sequence order.
		return firstHealthy(row, replicaIndex)

	case ReplicaRandom:
		// No randomization: selects exactly as ReplicaSequence does, starting
		// from replicaIndex so repeated calls within one retry loop advance.
		return firstHealthy(row, replicaIndex)

	default:
		return firstHealthy(row, 0)
	}
}

func firstHealthy(row []*Node, start int) *Node {
	n := len(row)
	if n == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		node := row[idx]
		if node != nil && node.Active() {
			return node
		}
	}
	// Nothing active; return whatever sequence points at so the caller can
	// still attempt (and classify the ensuing failure) rather than stall.
	return row[start%n]
}
