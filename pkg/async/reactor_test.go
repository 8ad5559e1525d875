package async

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/codec"
	"github.com/cuemby/aeroclient/pkg/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeServer answers exactly one framed request with a canned result code,
// mimicking a server far enough to exercise the reactor's read path.
func pipeServer(t *testing.T, server net.Conn, resultCode byte) {
	t.Helper()
	go func() {
		buf := make([]byte, 512)
		_, _ = server.Read(buf)

		hdr := codec.MsgHeader{ResultCode: resultCode}
		body := make([]byte, codec.MsgHeaderSize)
		hdr.Encode(body)

		out := make([]byte, codec.ProtoHeaderSize+len(body))
		codec.ProtoHeader{Version: codec.ProtoVersion, Type: codec.ProtoMessage, Size: uint64(len(body))}.Encode(out[:codec.ProtoHeaderSize])
		copy(out[codec.ProtoHeaderSize:], body)
		_, _ = server.Write(out)
	}()
}

func pipeNode(t *testing.T, dial pool.Dialer) *cluster.Node {
	t.Helper()
	return cluster.NewNode(cluster.NodeConfig{
		Name:         "node-1",
		PoolsPerNode: 1,
		PoolConfig:   pool.Config{Min: 0, Max: 1, Dial: dial},
	})
}

func TestReactorSubmitCompletesOnSuccess(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	pipeServer(t, server, 0)

	dialed := false
	node := pipeNode(t, func(ctx context.Context) (net.Conn, error) {
		dialed = true
		return client, nil
	})

	r := NewReactor(4)
	done := make(chan struct{})
	var gotErr error
	r.Submit(context.Background(), &Command{
		Node:          node,
		Build:         func() codec.Command { return codec.Command{Info1: codec.Info1Read} },
		SocketTimeout: time.Second,
		MaxRetries:    1,
		Callback: func(msg *codec.ParsedMessage, err error) {
			gotErr = err
			close(done)
		},
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reactor did not complete in time")
	}
	require.NoError(t, gotErr)
	assert.True(t, dialed)
}

func TestReactorRetriesThenFailsOnDialError(t *testing.T) {
	attempts := 0
	node := pipeNode(t, func(ctx context.Context) (net.Conn, error) {
		attempts++
		return nil, assertDialErr
	})

	r := NewReactor(1)
	done := make(chan struct{})
	var gotErr error
	r.Submit(context.Background(), &Command{
		Node:       node,
		Build:      func() codec.Command { return codec.Command{Info1: codec.Info1Read} },
		MaxRetries: 2,
		Callback: func(msg *codec.ParsedMessage, err error) {
			gotErr = err
			close(done)
		},
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reactor did not finish in time")
	}
	require.Error(t, gotErr)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

var assertDialErr = dialErr{}

type dialErr struct{}

func (dialErr) Error() string { return "async test: dial refused" }
