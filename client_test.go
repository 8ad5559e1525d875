package aeroclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxInFlightScalesWithPoolSize(t *testing.T) {
	p := policy.DefaultClientPolicy()
	p.MaxConnsPerNode = 10
	assert.Equal(t, 40, maxInFlight(p))

	p.MaxConnsPerNode = 0
	assert.Equal(t, 256, maxInFlight(p))
}

func TestTxnMonitorKeyIsDeterministic(t *testing.T) {
	k1, err := txnMonitorKey("ns", 42)
	require.NoError(t, err)
	k2, err := txnMonitorKey("ns", 42)
	require.NoError(t, err)

	d1, err := k1.Digest()
	require.NoError(t, err)
	d2, err := k2.Digest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Equal(t, "aeroclient-txn", k1.Set)
}

func TestDialAndSecurePlainTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		c, err := ln.Accept()
		if err == nil {
			close(accepted)
			c.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	target := cluster.Address{Host: "127.0.0.1", Port: addr.Port}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := dialAndSecure(ctx, target, nil, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-accepted:
	case <-time.After(time.Second):
		t.Fatal("server never accepted the dial")
	}
}

func TestDialAndSecureConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close() // nothing listening now

	target := cluster.Address{Host: "127.0.0.1", Port: addr.Port}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = dialAndSecure(ctx, target, nil, time.Second)
	assert.Error(t, err)
}
