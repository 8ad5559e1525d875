package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mkActiveNode(name string, rack int) *Node {
	n := NewNode(NodeConfig{Name: name, RackID: rack, ErrorWindow: 1})
	return n
}

func TestSelectReplicaMaster(t *testing.T) {
	table := NewPartitionTable("test", 4, 3)
	n0, n1, n2 := mkActiveNode("n0", 0), mkActiveNode("n1", 0), mkActiveNode("n2", 0)
	table.InstallSnapshot(1, [][]*Node{{n0, n1, n2}, {}, {}, {}})

	got := SelectReplica(table, 0, ReplicaMaster, 0, 0)
	assert.Equal(t, n0, got)
}

func TestSelectReplicaSequenceSkipsInactive(t *testing.T) {
	table := NewPartitionTable("test", 1, 3)
	n0, n1 := mkActiveNode("n0", 0), mkActiveNode("n1", 0)
	n0.Deactivate()
	table.InstallSnapshot(1, [][]*Node{{n0, n1, nil}})

	got := SelectReplica(table, 0, ReplicaSequence, 0, 0)
	assert.Equal(t, n1, got)
}

func TestSelectReplicaPreferRackFallsBackToSequence(t *testing.T) {
	table := NewPartitionTable("test", 1, 2)
	n0, n1 := mkActiveNode("n0", 1), mkActiveNode("n1", 2)
	table.InstallSnapshot(1, [][]*Node{{n0, n1}})

	// Preferred rack 9 is absent from the replica set entirely.
	got := SelectReplica(table, 0, ReplicaPreferRack, 0, 9)
	assert.Equal(t, n0, got)
}

func TestSelectReplicaPreferRackMatches(t *testing.T) {
	table := NewPartitionTable("test", 1, 2)
	n0, n1 := mkActiveNode("n0", 1), mkActiveNode("n1", 2)
	table.InstallSnapshot(1, [][]*Node{{n0, n1}})

	got := SelectReplica(table, 0, ReplicaPreferRack, 0, 2)
	assert.Equal(t, n1, got)
}
