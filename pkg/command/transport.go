// Package command implements the synchronous command engine: resolve the
// target node and replica, check out a connection, write the compiled
// request, read and parse the response, and retry according to policy
// (spec §4.6).
package command

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cuemby/aeroclient/pkg/codec"
)

// sendRecv writes a compiled request frame to conn and reads back one
// response frame, inflating it first if the server compressed it.
// sendRecv writes req and reads back the parsed response. wrote reports
// whether the request was fully written before any failure occurred: once
// true, the caller can no longer assume the server never saw the command.
func sendRecv(ctx context.Context, conn net.Conn, req []byte, socketTimeout time.Duration) (msg *codec.ParsedMessage, wrote bool, err error) {
	if dl, ok := deadlineFromCtx(ctx, socketTimeout); ok {
		_ = conn.SetDeadline(dl)
		defer conn.SetDeadline(time.Time{})
	}

	if _, err := conn.Write(req); err != nil {
		return nil, false, fmt.Errorf("command: write: %w", err)
	}

	var hdrBuf [codec.ProtoHeaderSize]byte
	if _, err := io.ReadFull(conn, hdrBuf[:]); err != nil {
		return nil, true, fmt.Errorf("command: read proto header: %w", err)
	}
	hdr, err := codec.DecodeProtoHeader(hdrBuf[:])
	if err != nil {
		return nil, true, err
	}

	body := make([]byte, hdr.Size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, true, fmt.Errorf("command: read body: %w", err)
	}

	if hdr.Type == codec.ProtoCompressedMessage {
		body, err = codec.Decompress(body)
		if err != nil {
			return nil, true, fmt.Errorf("command: decompress: %w", err)
		}
	}

	msg, err = codec.ParseMessageBody(body)
	return msg, true, err
}

func deadlineFromCtx(ctx context.Context, socketTimeout time.Duration) (time.Time, bool) {
	var dl time.Time
	if d, ok := ctx.Deadline(); ok {
		dl = d
	}
	if socketTimeout > 0 {
		byTimeout := time.Now().Add(socketTimeout)
		if dl.IsZero() || byTimeout.Before(dl) {
			dl = byTimeout
		}
	}
	return dl, !dl.IsZero()
}
