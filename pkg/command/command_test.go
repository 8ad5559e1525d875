package command

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/aeroclient/pkg/aerr"
	"github.com/cuemby/aeroclient/pkg/codec"
	"github.com/cuemby/aeroclient/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFieldsIncludesSetOnlyWhenPresent(t *testing.T) {
	k, err := types.NewKey("test", "", types.IntValue(1))
	require.NoError(t, err)
	fields := keyFields(k)
	assert.Len(t, fields, 2) // namespace + digest, no set field

	k2, err := types.NewKey("test", "myset", types.IntValue(1))
	require.NoError(t, err)
	fields2 := keyFields(k2)
	assert.Len(t, fields2, 3)
}

func TestToOpEntriesPreservesOrder(t *testing.T) {
	ops := []types.Op{types.GetOp("a"), types.GetOp("b")}
	entries := toOpEntries(ops)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)
}

func TestAggregateBatchErrNoFailures(t *testing.T) {
	e := (&Executor{}).aggregateBatchErr([]types.BatchRecord{{}, {}}, false)
	assert.NoError(t, e)
}

func TestAggregateBatchErrReportsInDoubt(t *testing.T) {
	bad := aerr.InDoubtf(aerr.Timeout, nil, "boom")
	results := []types.BatchRecord{{Err: bad}, {}}

	e := (&Executor{}).aggregateBatchErr(results, false)
	require.Error(t, e)
	ae, ok := aerr.As(e)
	require.True(t, ok)
	assert.True(t, ae.InDoubt)
}

func TestAggregateBatchErrAllowsPartial(t *testing.T) {
	results := []types.BatchRecord{{Err: aerr.New(aerr.RecordNotFound, "nope")}}
	e := (&Executor{}).aggregateBatchErr(results, true)
	assert.NoError(t, e)
}

// TestSendRecvRoundTrip drives the wire transport against an in-process
// peer built from net.Pipe, exercising proto framing without a real
// socket.
func TestSendRecvRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, 256)
		n, _ := server.Read(buf)
		_ = n

		hdr := codec.MsgHeader{ResultCode: 0, NFields: 0, NOps: 0}
		body := make([]byte, codec.MsgHeaderSize)
		hdr.Encode(body)

		out := make([]byte, codec.ProtoHeaderSize+len(body))
		codec.ProtoHeader{Version: codec.ProtoVersion, Type: codec.ProtoMessage, Size: uint64(len(body))}.Encode(out[:codec.ProtoHeaderSize])
		copy(out[codec.ProtoHeaderSize:], body)
		_, _ = server.Write(out)
	}()

	req, err := codec.Compile(codec.Command{Info1: codec.Info1Read})
	require.NoError(t, err)

	msg, wrote, err := sendRecv(context.Background(), client, req, time.Second)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.EqualValues(t, 0, msg.Header.ResultCode)
}

// TestSendRecvWriteFailureIsNotInDoubt exercises the case the request never
// reached the peer: wrote must come back false so the caller can safely
// retry without risking a double-apply.
func TestSendRecvWriteFailureIsNotInDoubt(t *testing.T) {
	client, server := net.Pipe()
	server.Close()

	req, err := codec.Compile(codec.Command{Info2: codec.Info2Write})
	require.NoError(t, err)

	_, wrote, err := sendRecv(context.Background(), client, req, time.Second)
	require.Error(t, err)
	assert.False(t, wrote)
}

// TestSendRecvReadFailureAfterWriteIsInDoubt exercises the ambiguous case: the
// peer read the request (so it may have applied it) but the connection dies
// before the response comes back.
func TestSendRecvReadFailureAfterWriteIsInDoubt(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		buf := make([]byte, 256)
		_, _ = server.Read(buf)
		server.Close()
	}()

	req, err := codec.Compile(codec.Command{Info2: codec.Info2Write})
	require.NoError(t, err)

	_, wrote, err := sendRecv(context.Background(), client, req, time.Second)
	require.Error(t, err)
	assert.True(t, wrote)
}
