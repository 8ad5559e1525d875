// Package auth implements the client side of the authentication handshake
// (spec.md §3, REDESIGN FLAGS: "treat it as an opaque hashing function").
// The real server uses a proprietary password scheme; this client only
// needs a one-way hash with the same shape, so it reuses bcrypt the way
// the teacher's own services hash credentials.
package auth

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cuemby/aeroclient/pkg/codec"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives the opaque credential bytes sent in the
// AUTH_WRITE state's CREDENTIAL field.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Handshake runs AUTH_WRITE -> AUTH_READ_HEADER -> AUTH_READ_BODY over an
// already-connected socket, per spec.md's connection-checkout state
// sequence. A zero user is a no-op.
func Handshake(conn net.Conn, user, password string, timeout time.Duration) error {
	if user == "" {
		return nil
	}
	if timeout > 0 {
		defer conn.SetDeadline(time.Time{})
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("auth: set deadline: %w", err)
		}
	}
	cred, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("auth: hash credential: %w", err)
	}
	frame := codec.EncodeAdmin(codec.AdminCommandAuthenticate, []codec.AdminField{
		{ID: codec.AdminFieldUser, Data: []byte(user)},
		{ID: codec.AdminFieldCredential, Data: cred},
	})
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("auth: write handshake: %w", err)
	}

	header := make([]byte, codec.ProtoHeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return fmt.Errorf("auth: read response header: %w", err)
	}
	ph, err := codec.DecodeProtoHeader(header)
	if err != nil {
		return fmt.Errorf("auth: decode response header: %w", err)
	}
	body := make([]byte, ph.Size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return fmt.Errorf("auth: read response body: %w", err)
	}
	result, err := codec.DecodeAdminResult(body)
	if err != nil {
		return err
	}
	if result.ResultCode != 0 {
		return fmt.Errorf("auth: server rejected credentials (code %d)", result.ResultCode)
	}
	return nil
}
