package cluster

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOwnershipBitmap(t *testing.T) {
	// partitions 0 and 9 owned: byte0 = 10000000, byte1 = 01000000
	raw := []byte{0b10000000, 0b01000000}
	b64 := base64.StdEncoding.EncodeToString(raw)

	owns, err := DecodeOwnershipBitmap(b64, 16)
	require.NoError(t, err)
	assert.True(t, owns[0])
	assert.True(t, owns[9])
	assert.False(t, owns[1])
	assert.False(t, owns[8])
}

func TestPartitionTableApplyOwnershipAndLookup(t *testing.T) {
	table := NewPartitionTable("test", 16, 2)
	n := NewNode(NodeConfig{Name: "n1", ErrorWindow: 1})

	owns := make([]bool, 16)
	owns[3] = true
	table.ApplyOwnership(1, 0, n, owns)

	assert.Equal(t, n, table.NodeForPartition(3, 0))
	assert.Nil(t, table.NodeForPartition(4, 0))
	assert.EqualValues(t, 1, table.Generation())
}

func TestPartitionTableSnapshotIsImmutable(t *testing.T) {
	table := NewPartitionTable("test", 4, 1)
	before := table.Replicas()

	n := NewNode(NodeConfig{Name: "n1", ErrorWindow: 1})
	owns := []bool{true, false, false, false}
	table.ApplyOwnership(1, 0, n, owns)

	// The snapshot captured before the update must be unaffected.
	assert.Nil(t, before[0][0])
}
