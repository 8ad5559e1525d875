package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestIsDeterministic(t *testing.T) {
	k1, err := NewKey("test", "demo", StringValue("key1"))
	require.NoError(t, err)
	k2, err := NewKey("test", "demo", StringValue("key1"))
	require.NoError(t, err)

	d1, _ := k1.Digest()
	d2, _ := k2.Digest()
	assert.Equal(t, d1, d2)
}

func TestDigestDiffersByUserKey(t *testing.T) {
	k1, _ := NewKey("test", "demo", StringValue("key1"))
	k2, _ := NewKey("test", "demo", StringValue("key2"))
	d1, _ := k1.Digest()
	d2, _ := k2.Digest()
	assert.NotEqual(t, d1, d2)
}

func TestPartitionIDWithinRange(t *testing.T) {
	k, _ := NewKey("test", "demo", StringValue("key1"))
	d, _ := k.Digest()
	const partitionCount = 4096
	pid := PartitionID(d, partitionCount)
	assert.GreaterOrEqual(t, pid, 0)
	assert.Less(t, pid, partitionCount)
}

func TestNewKeyWithDigestSkipsHashing(t *testing.T) {
	var d Digest
	d[0] = 0x01
	k := NewKeyWithDigest("test", "demo", d)
	got, err := k.Digest()
	require.NoError(t, err)
	assert.Equal(t, d, got)
}
