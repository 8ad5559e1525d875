package scan

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cuemby/aeroclient/pkg/codec"
)

// streamFrame reads one proto+message frame from conn, inflating it if the
// server compressed it. A scan/query response is a sequence of these
// frames over one connection, terminated by a message with
// Info3LastOfMulti set (spec.md §4.1/§4.8).
func streamFrame(ctx context.Context, conn net.Conn, socketTimeout time.Duration) (*codec.ParsedMessage, error) {
	if socketTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(socketTimeout))
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	}

	var hdrBuf [codec.ProtoHeaderSize]byte
	if _, err := io.ReadFull(conn, hdrBuf[:]); err != nil {
		return nil, fmt.Errorf("scan: read proto header: %w", err)
	}
	hdr, err := codec.DecodeProtoHeader(hdrBuf[:])
	if err != nil {
		return nil, err
	}

	body := make([]byte, hdr.Size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("scan: read body: %w", err)
	}

	if hdr.Type == codec.ProtoCompressedMessage {
		body, err = codec.Decompress(body)
		if err != nil {
			return nil, fmt.Errorf("scan: decompress: %w", err)
		}
	}

	return codec.ParseMessageBody(body)
}

// isLastOfMulti reports whether msg closes the response stream.
func isLastOfMulti(msg *codec.ParsedMessage) bool {
	return msg.Header.Info3&codec.Info3LastOfMulti != 0
}
