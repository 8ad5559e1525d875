package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistributeMaxRecordsEvenSplit(t *testing.T) {
	out := distributeMaxRecords(400, 4)
	assert.Equal(t, []uint64{100, 100, 100, 100}, out)
}

func TestDistributeMaxRecordsWithRemainder(t *testing.T) {
	out := distributeMaxRecords(250, 4)
	// 250/4 = 62 rem 2: first two nodes get 63, the rest get 62.
	assert.Equal(t, []uint64{63, 63, 62, 62}, out)

	var total uint64
	for _, n := range out {
		total += n
	}
	assert.Equal(t, uint64(250), total)
}

func TestDistributeMaxRecordsSmallerThanNodeCount(t *testing.T) {
	out := distributeMaxRecords(2, 4)
	assert.Equal(t, []uint64{1, 1, 1, 1}, out)
}

func TestDistributeMaxRecordsUnlimited(t *testing.T) {
	out := distributeMaxRecords(0, 4)
	assert.Equal(t, []uint64{0, 0, 0, 0}, out)
}

func TestConsumeBudgetNilIsUnlimited(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.True(t, consumeBudget(nil))
	}
}

func TestConsumeBudgetStopsAtZero(t *testing.T) {
	budget := int64(2)
	assert.True(t, consumeBudget(&budget))
	assert.True(t, consumeBudget(&budget))
	assert.False(t, consumeBudget(&budget))
	assert.False(t, consumeBudget(&budget))
}
