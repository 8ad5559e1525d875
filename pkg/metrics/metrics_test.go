package metrics

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyHistogramBucketsPowerOfTwo(t *testing.T) {
	h := NewLatencyHistogram(5, 1)

	h.Record(500 * time.Microsecond) // bucket 0: < 2ms
	h.Record(3 * time.Millisecond)   // bucket 1: [2,4)ms
	h.Record(10 * time.Second)       // overflow -> last bucket

	snap := h.Snapshot()
	require.Len(t, snap, 5)
	assert.EqualValues(t, 1, snap[0])
	assert.EqualValues(t, 1, snap[1])
	assert.EqualValues(t, 1, snap[4])
}

func TestRegistryHandlerServesMetrics(t *testing.T) {
	r := NewRegistry("test-cluster")
	r.ClusterSize.Set(3)
	assert.NotNil(t, r.Handler())
}

func TestFileWriterRotatesOnSizeLimit(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, 64, 4, 1)
	require.NoError(t, err)
	defer w.Close()

	snap := ClusterSnapshot{Timestamp: time.Unix(0, 0), Nodes: []NodeSnapshot{{Name: "n1"}}}
	require.NoError(t, w.WriteSnapshot(snap))
	require.NoError(t, w.WriteSnapshot(snap))
	require.NoError(t, w.WriteSnapshot(snap))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2, "expected at least one rotation once the size limit was exceeded")
}

func TestFormatSnapshotIncludesNodeAndLatency(t *testing.T) {
	snap := ClusterSnapshot{
		Timestamp: time.Unix(100, 0),
		Nodes: []NodeSnapshot{
			{Name: "n1", Host: "10.0.0.1", Port: "3000", SyncConns: 2, Errors: 1,
				Latency: []LatencySnapshot{{Type: "read", Buckets: []uint64{3, 0, 1}}}},
		},
	}
	line := formatSnapshot(snap)
	assert.Contains(t, line, "node[n1,10.0.0.1,3000")
	assert.Contains(t, line, "latency[read[3][0][1]]")
}
