package aerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Timeout.Retryable())
	assert.True(t, Cluster.Retryable())
	assert.False(t, GenerationMismatch.Retryable())
	assert.False(t, RecordNotFound.Retryable())
}

func TestFromServerCode(t *testing.T) {
	assert.Equal(t, RecordNotFound, FromServerCode(ServerKeyNotFound))
	assert.Equal(t, GenerationMismatch, FromServerCode(ServerGenerationError))
	assert.Equal(t, OK, FromServerCode(ServerOK))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Connection, cause, "dial %s", "10.0.0.1:3000")

	ae, ok := As(err)
	require := assert.New(t)
	require.True(ok)
	require.Equal(Connection, ae.Code)
	require.ErrorIs(err, cause)
}

func TestInDoubtSticky(t *testing.T) {
	err := InDoubtf(Timeout, nil, "write may have applied")
	ae, ok := As(err)
	assert.True(t, ok)
	assert.True(t, ae.InDoubt)
	assert.False(t, ae.Retryable() && ae.InDoubt == false)
}

func TestCodeOfNonAeroError(t *testing.T) {
	assert.Equal(t, Unknown, CodeOf(errors.New("plain")))
}
