package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/aeroclient/pkg/aerr"
	"github.com/cuemby/aeroclient/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *types.Key {
	k, err := types.NewKey("ns", "set", types.IntValue(1))
	require.NoError(t, err)
	return k
}

func TestTxnVerifyCommitHappyPath(t *testing.T) {
	tx := New()
	assert.NotZero(t, tx.ID)

	key := testKey(t)
	tx.RecordRead(key, 3)
	tx.RecordWrite(key)

	err := tx.Verify(context.Background(), func(ctx context.Context, k *types.Key) (uint32, error) {
		return 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateVerified, tx.State())

	marked, rolled, removed := false, false, false
	err = tx.Commit(context.Background(),
		func(ctx context.Context, id uint64, writes []*types.Key) error { marked = true; return nil },
		func(ctx context.Context, id uint64, writes []*types.Key, commit bool) error {
			rolled = true
			assert.True(t, commit)
			return nil
		},
		func(ctx context.Context, id uint64) error { removed = true; return nil },
	)
	require.NoError(t, err)
	assert.True(t, marked)
	assert.True(t, rolled)
	assert.True(t, removed)
	assert.Equal(t, StateCommitted, tx.State())
	assert.False(t, tx.InDoubt())
}

func TestTxnVerifyGenerationMismatchFails(t *testing.T) {
	tx := New()
	key := testKey(t)
	tx.RecordRead(key, 3)

	err := tx.Verify(context.Background(), func(ctx context.Context, k *types.Key) (uint32, error) {
		return 4, nil
	})
	require.Error(t, err)
	assert.Equal(t, aerr.TxnFailed, aerr.CodeOf(err))
	assert.Equal(t, StateVerifyFailed, tx.State())
}

func TestTxnCommitMarkFailureSetsInDoubt(t *testing.T) {
	tx := New()
	key := testKey(t)
	tx.RecordRead(key, 1)
	require.NoError(t, tx.Verify(context.Background(), func(ctx context.Context, k *types.Key) (uint32, error) {
		return 1, nil
	}))

	err := tx.Commit(context.Background(),
		func(ctx context.Context, id uint64, writes []*types.Key) error { return errors.New("monitor write failed") },
		func(ctx context.Context, id uint64, writes []*types.Key, commit bool) error { return nil },
		func(ctx context.Context, id uint64) error { return nil },
	)
	require.Error(t, err)
	assert.True(t, tx.InDoubt())
	ae, ok := aerr.As(err)
	require.True(t, ok)
	assert.True(t, ae.InDoubt)
}

func TestTxnAbortRollsBack(t *testing.T) {
	tx := New()
	key := testKey(t)
	tx.RecordWrite(key)

	var rolledBack bool
	err := tx.Abort(context.Background(),
		func(ctx context.Context, id uint64, writes []*types.Key, commit bool) error {
			rolledBack = !commit
			return nil
		},
		func(ctx context.Context, id uint64) error { return nil },
	)
	require.NoError(t, err)
	assert.True(t, rolledBack)
	assert.Equal(t, StateAborted, tx.State())
}
