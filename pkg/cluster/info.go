package cluster

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// InfoConn is the minimal surface the tender needs from an info-protocol
// socket, so tests can substitute an in-memory implementation.
type InfoConn interface {
	io.ReadWriteCloser
}

// RequestInfo issues an ASCII info request (spec §6: type=1) and parses
// the "name\tvalue\n"-delimited response into a map.
func RequestInfo(ctx context.Context, conn InfoConn, names ...string) (map[string]string, error) {
	req := strings.Join(names, "\n") + "\n"
	if _, err := io.WriteString(conn, req); err != nil {
		return nil, fmt.Errorf("cluster: info write: %w", err)
	}

	out := make(map[string]string, len(names))
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if line != "" {
			if idx := strings.IndexByte(line, '\t'); idx >= 0 {
				out[line[:idx]] = line[idx+1:]
			} else {
				out[line] = ""
			}
		}
		if err != nil {
			break
		}
		if len(out) >= len(names) {
			break
		}
	}
	return out, nil
}
