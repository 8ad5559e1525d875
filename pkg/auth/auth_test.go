package auth

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/cuemby/aeroclient/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveAdmin(t *testing.T, server net.Conn, resultCode byte) {
	t.Helper()
	header := make([]byte, codec.ProtoHeaderSize)
	_, err := io.ReadFull(server, header)
	require.NoError(t, err)
	ph, err := codec.DecodeProtoHeader(header)
	require.NoError(t, err)
	assert.Equal(t, codec.ProtoAdmin, ph.Type)

	body := make([]byte, ph.Size)
	_, err = io.ReadFull(server, body)
	require.NoError(t, err)
	assert.Equal(t, codec.AdminCommandAuthenticate, body[1])

	resp := []byte{0, codec.AdminCommandAuthenticate, resultCode, 0}
	frame := make([]byte, codec.ProtoHeaderSize+len(resp))
	codec.ProtoHeader{Version: codec.ProtoVersion, Type: codec.ProtoAdmin, Size: uint64(len(resp))}.Encode(frame)
	copy(frame[codec.ProtoHeaderSize:], resp)
	_, err = server.Write(frame)
	require.NoError(t, err)
}

func TestHandshakeNoUserIsNoop(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	assert.NoError(t, Handshake(client, "", "", time.Second))
}

func TestHandshakeSucceedsOnZeroResultCode(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	go func() {
		serveAdmin(t, server, 0)
		close(done)
	}()

	err := Handshake(client, "alice", "s3cret", time.Second)
	<-done
	assert.NoError(t, err)
}

func TestHandshakeFailsOnNonzeroResultCode(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	go func() {
		serveAdmin(t, server, 1)
		close(done)
	}()

	err := Handshake(client, "alice", "wrong", time.Second)
	<-done
	require.Error(t, err)
}
