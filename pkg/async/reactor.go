// Package async implements the asynchronous command reactor: an explicit
// per-command state machine that drives a command from REGISTERED through
// CONNECT, COMMAND_WRITE, COMMAND_READ_HEADER/BODY to COMPLETE or ERROR
// (spec.md §4.7). The C client multiplexes every command's socket through
// one OS-level epoll/kqueue loop; Go has no portable handle onto that
// mechanism, and the idiomatic replacement for a single-threaded reactor
// here is the goroutine scheduler itself — each submitted command gets its
// own lightweight goroutine, bounded by a concurrency semaphore, rather
// than hand-rolling a userspace poll loop over blocking sockets. drive
// walks REGISTERED, CONNECT, COMMAND_WRITE, COMMAND_READ_HEADER, COMPLETE,
// RETRY and ERROR. DELAY_QUEUE, TLS_CONNECT, AUTH_WRITE and AUTH_READ are
// defined but never entered: there is no delay queue, and TLS and
// authentication run inside the pool's dialer during CONNECT.
package async

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cuemby/aeroclient/pkg/aerr"
	"github.com/cuemby/aeroclient/pkg/cluster"
	"github.com/cuemby/aeroclient/pkg/codec"
	"github.com/cuemby/aeroclient/pkg/log"
	"github.com/cuemby/aeroclient/pkg/pool"
	"github.com/rs/zerolog"
)

// State is a command's position in the async state machine (spec.md §4.7).
type State int

const (
	StateRegistered State = iota
	StateDelayQueue
	StateConnect
	StateTLSConnect
	StateAuthWrite
	StateAuthRead
	StateCommandWrite
	StateCommandReadHeader
	StateCommandReadBody
	StateComplete
	StateRetry
	StateError
)

func (s State) String() string {
	names := [...]string{
		"REGISTERED", "DELAY_QUEUE", "CONNECT", "TLS_CONNECT", "AUTH_WRITE",
		"AUTH_READ", "COMMAND_WRITE", "COMMAND_READ_HEADER", "COMMAND_READ_BODY",
		"COMPLETE", "RETRY", "ERROR",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// Callback receives the outcome of one async command.
type Callback func(msg *codec.ParsedMessage, err error)

// Command is one unit of async work: a compiled request targeting a node,
// with a callback invoked on completion or terminal error.
type Command struct {
	Node          *cluster.Node
	Cluster       *cluster.Cluster // optional, for cumulative command/retry counters
	Build         func() codec.Command
	Callback      Callback
	SocketTimeout time.Duration
	MaxRetries    int

	state   State
	retries int
	conn    *pool.Conn
	pl      *pool.Pool
}

// Reactor bounds the number of commands in flight at once and drives each
// through its state machine on its own goroutine.
type Reactor struct {
	sem    chan struct{}
	logger zerolog.Logger
}

// NewReactor builds a reactor allowing up to maxInFlight commands to run
// their state machines concurrently; 0 means unbounded.
func NewReactor(maxInFlight int) *Reactor {
	var sem chan struct{}
	if maxInFlight > 0 {
		sem = make(chan struct{}, maxInFlight)
	}
	return &Reactor{sem: sem, logger: log.WithComponent("async")}
}

// Submit registers cmd and runs its state machine to completion on a
// fresh goroutine, invoking cmd.Callback exactly once. When maxInFlight
// commands are already running, Submit blocks the caller until one of
// them finishes; it never rejects a command.
func (r *Reactor) Submit(ctx context.Context, cmd *Command) {
	if r.sem != nil {
		r.sem <- struct{}{}
	}
	go func() {
		if r.sem != nil {
			defer func() { <-r.sem }()
		}
		cmd.state = StateRegistered
		if cmd.Cluster != nil {
			atomic.AddUint64(&cmd.Cluster.CommandsIssued, 1)
		}
		r.drive(ctx, cmd)
	}()
}

// drive runs cmd's state machine until it reaches a terminal state,
// invoking Callback exactly once on COMPLETE or ERROR.
func (r *Reactor) drive(ctx context.Context, cmd *Command) {
	for {
		switch cmd.state {
		case StateRegistered:
			cmd.state = StateConnect

		case StateConnect:
			cmd.pl = cmd.Node.Pool()
			conn, err := cmd.pl.Get(ctx)
			if err != nil {
				r.retryOrFail(cmd, err)
				continue
			}
			cmd.conn = conn
			cmd.state = StateCommandWrite

		case StateCommandWrite:
			req, err := codec.Compile(cmd.Build())
			if err != nil {
				r.fail(cmd, aerr.Wrap(aerr.Client, err, "async: compile"))
				return
			}
			if dl, ok := r.deadline(ctx, cmd); ok {
				_ = cmd.conn.SetWriteDeadline(dl)
			}
			if _, err := cmd.conn.Write(req); err != nil {
				r.retryOrFail(cmd, aerr.Wrap(aerr.Connection, err, "async: write"))
				continue
			}
			cmd.state = StateCommandReadHeader

		case StateCommandReadHeader, StateCommandReadBody:
			msg, err := r.readResponse(ctx, cmd)
			if err != nil {
				if ae, ok := aerr.As(err); ok && ae.Code == aerr.Client {
					r.fail(cmd, err)
					return
				}
				r.retryOrFail(cmd, err)
				continue
			}
			cmd.state = StateComplete
			cmd.pl.Put(cmd.conn)
			cmd.Callback(msg, nil)
			return

		case StateRetry:
			if cmd.conn != nil {
				cmd.pl.Discard(cmd.conn)
				cmd.conn = nil
			}
			cmd.Node.IncrError()
			cmd.state = StateConnect

		case StateError:
			return
		}
	}
}

func (r *Reactor) readResponse(ctx context.Context, cmd *Command) (*codec.ParsedMessage, error) {
	if dl, ok := r.deadline(ctx, cmd); ok {
		_ = cmd.conn.SetReadDeadline(dl)
	}

	var hdrBuf [codec.ProtoHeaderSize]byte
	if _, err := readFull(cmd.conn, hdrBuf[:]); err != nil {
		return nil, aerr.Wrap(aerr.Connection, err, "async: read header")
	}
	hdr, err := codec.DecodeProtoHeader(hdrBuf[:])
	if err != nil {
		return nil, aerr.Wrap(aerr.Client, err, "async: decode header")
	}

	body := make([]byte, hdr.Size)
	if _, err := readFull(cmd.conn, body); err != nil {
		return nil, aerr.Wrap(aerr.Connection, err, "async: read body")
	}
	if hdr.Type == codec.ProtoCompressedMessage {
		body, err = codec.Decompress(body)
		if err != nil {
			return nil, aerr.Wrap(aerr.Client, err, "async: decompress")
		}
	}

	msg, err := codec.ParseMessageBody(body)
	if err != nil {
		return nil, aerr.Wrap(aerr.Client, err, "async: parse")
	}
	return msg, nil
}

func (r *Reactor) deadline(ctx context.Context, cmd *Command) (time.Time, bool) {
	var dl time.Time
	if d, ok := ctx.Deadline(); ok {
		dl = d
	}
	if cmd.SocketTimeout > 0 {
		byTimeout := time.Now().Add(cmd.SocketTimeout)
		if dl.IsZero() || byTimeout.Before(dl) {
			dl = byTimeout
		}
	}
	return dl, !dl.IsZero()
}

func (r *Reactor) retryOrFail(cmd *Command, err error) {
	cmd.retries++
	if cmd.retries > cmd.MaxRetries {
		r.fail(cmd, err)
		cmd.state = StateError
		return
	}
	if cmd.Cluster != nil {
		atomic.AddUint64(&cmd.Cluster.Retries, 1)
	}
	cmd.state = StateRetry
}

func (r *Reactor) fail(cmd *Command, err error) {
	if cmd.conn != nil && cmd.pl != nil {
		cmd.pl.Discard(cmd.conn)
		cmd.conn = nil
	}
	cmd.state = StateError
	r.logger.Debug().Err(err).Str("node", cmd.Node.Name()).Int("retries", cmd.retries).Msg("async: command failed terminally")
	cmd.Callback(nil, err)
}

func readFull(conn interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
