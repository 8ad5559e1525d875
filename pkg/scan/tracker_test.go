package scan

import (
	"testing"

	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestTrackerMarksDoneAndTracksRemaining(t *testing.T) {
	c := cluster.NewCluster(cluster.Config{})
	tr := NewTracker(c, "test", 0, 1, 2)

	assert.False(t, tr.IsDone())
	assert.ElementsMatch(t, []int{0, 1, 2}, tr.Remaining())

	tr.MarkDone(1)
	assert.ElementsMatch(t, []int{0, 2}, tr.Remaining())
	assert.False(t, tr.IsDone())

	tr.MarkDone(0)
	tr.MarkDone(2)
	assert.True(t, tr.IsDone())
	assert.Empty(t, tr.Remaining())
}

func TestTrackerMarkProgressRecordsDigest(t *testing.T) {
	c := cluster.NewCluster(cluster.Config{})
	tr := NewTracker(c, "test", 5)

	var d types.Digest
	d[0] = 0xAB
	tr.MarkProgress(5, d)

	p := tr.find(5)
	assert.True(t, p.HasDigest)
	assert.Equal(t, d, p.Digest)
}

func TestTrackerMarkRetryLeavesPartitionUnfinished(t *testing.T) {
	c := cluster.NewCluster(cluster.Config{})
	tr := NewTracker(c, "test", 9)

	tr.MarkRetry(9)
	assert.False(t, tr.IsDone())
	assert.True(t, tr.find(9).Retry)
}
