package pool

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeDialer() (Dialer, *[]net.Conn) {
	var serverSides []net.Conn
	return func(ctx context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		serverSides = append(serverSides, server)
		return client, nil
	}, &serverSides
}

func TestPoolGetPutBounds(t *testing.T) {
	dial, _ := pipeDialer()
	p := New(Config{Min: 0, Max: 2, Dial: dial, NodeName: "n1"})

	c1, err := p.Get(context.Background())
	require.NoError(t, err)
	c2, err := p.Get(context.Background())
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, 2, stats.Total)
	assert.LessOrEqual(t, stats.Total, stats.Max)

	_, err = p.Get(context.Background())
	assert.Error(t, err)

	p.Put(c1)
	p.Put(c2)
	stats = p.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.LessOrEqual(t, stats.Size, stats.Total)
	assert.LessOrEqual(t, stats.Total, stats.Max)
}

func TestPoolCloseClosesEverything(t *testing.T) {
	dial, _ := pipeDialer()
	p := New(Config{Min: 0, Max: 2, Dial: dial, NodeName: "n1"})

	c1, _ := p.Get(context.Background())
	p.Put(c1)
	p.Close()

	stats := p.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, 0, stats.Total)
	assert.EqualValues(t, 1, stats.Closed)
}

func TestPoolTrimsIdleConnections(t *testing.T) {
	dial, _ := pipeDialer()
	p := New(Config{Min: 0, Max: 2, MaxIdle: time.Millisecond, Dial: dial, NodeName: "n1"})

	c1, err := p.Get(context.Background())
	require.NoError(t, err)
	p.Put(c1)

	time.Sleep(5 * time.Millisecond)

	c2, err := p.Get(context.Background())
	require.NoError(t, err)
	p.Put(c2)

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.Closed, uint64(1))
}
