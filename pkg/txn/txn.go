// Package txn implements the multi-record transaction coordinator: verify
// read versions, mark the transaction monitor record, roll writes forward
// or back, then remove the monitor (spec.md §4.9).
package txn

import (
	"context"
	"sync"

	"github.com/cuemby/aeroclient/pkg/aerr"
	"github.com/cuemby/aeroclient/pkg/log"
	"github.com/cuemby/aeroclient/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is a transaction's coordinator-visible lifecycle stage.
type State int

const (
	StateOpen State = iota
	StateVerifying
	StateVerified
	StateVerifyFailed
	StateRollingForward
	StateCommitted
	StateRollingBack
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateVerifying:
		return "VERIFYING"
	case StateVerified:
		return "VERIFIED"
	case StateVerifyFailed:
		return "VERIFY_FAILED"
	case StateRollingForward:
		return "ROLLING_FORWARD"
	case StateCommitted:
		return "COMMITTED"
	case StateRollingBack:
		return "ROLLING_BACK"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// readVersion is the generation observed for a key read inside the
// transaction, checked again at verify time to detect a conflicting write.
type readVersion struct {
	key        *types.Key
	generation uint32
}

// Txn coordinates one multi-record transaction. InDoubt, once set, is
// sticky: the caller must never silently retry a roll-forward/back after
// it (spec invariant 8).
type Txn struct {
	ID uint64

	mu          sync.Mutex
	state       State
	reads       []readVersion
	writes      []*types.Key
	inDoubt     bool
	logger      zerolog.Logger
}

// New starts a transaction with a fresh, random 63-bit id (spec.md §4.9:
// "server requires a non-zero, client-chosen transaction id" — a UUID's
// entropy comfortably covers that without a central sequence).
func New() *Txn {
	id := uuid.New()
	v := uint64(0)
	for _, b := range id[:8] {
		v = v<<8 | uint64(b)
	}
	v &= 1<<63 - 1
	if v == 0 {
		v = 1
	}
	return &Txn{ID: v, state: StateOpen, logger: log.WithComponent("txn")}
}

func (t *Txn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// InDoubt reports whether any step of this transaction left server state
// ambiguous.
func (t *Txn) InDoubt() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inDoubt
}

func (t *Txn) setInDoubt() {
	t.inDoubt = true
}

// RecordRead tracks a key's observed generation so Verify can detect a
// conflicting concurrent write.
func (t *Txn) RecordRead(key *types.Key, generation uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads = append(t.reads, readVersion{key: key, generation: generation})
}

// RecordWrite tracks a key written inside the transaction, to be rolled
// forward on commit or back on abort.
func (t *Txn) RecordWrite(key *types.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, key)
}

// VerifyFunc re-reads a key's current generation from the cluster.
type VerifyFunc func(ctx context.Context, key *types.Key) (generation uint32, err error)

// Verify re-checks every recorded read's generation against the server's
// current value; any mismatch fails the transaction (spec.md §4.9 step 1).
func (t *Txn) Verify(ctx context.Context, readCurrent VerifyFunc) error {
	t.mu.Lock()
	if t.state != StateOpen {
		t.mu.Unlock()
		return aerr.New(aerr.TxnFailed, "txn: verify called from state %s", t.state)
	}
	t.state = StateVerifying
	reads := append([]readVersion(nil), t.reads...)
	t.mu.Unlock()

	for _, rv := range reads {
		gen, err := readCurrent(ctx, rv.key)
		if err != nil {
			t.mu.Lock()
			t.state = StateVerifyFailed
			t.mu.Unlock()
			return aerr.Wrap(aerr.TxnFailed, err, "txn: verify read failed")
		}
		if gen != rv.generation {
			t.mu.Lock()
			t.state = StateVerifyFailed
			t.mu.Unlock()
			return aerr.New(aerr.TxnFailed, "txn: generation mismatch on verify")
		}
	}

	t.mu.Lock()
	t.state = StateVerified
	t.mu.Unlock()
	return nil
}

// MarkFunc writes the transaction monitor record (state=COMMITTING) so a
// crash after this point is recoverable by a scanning monitor process.
type MarkFunc func(ctx context.Context, txnID uint64, writes []*types.Key) error

// RollFunc applies (commit=true) or undoes (commit=false) every recorded
// write for this transaction.
type RollFunc func(ctx context.Context, txnID uint64, writes []*types.Key, commit bool) error

// RemoveMonitorFunc deletes the transaction monitor record once roll
// forward/back has completed.
type RemoveMonitorFunc func(ctx context.Context, txnID uint64) error

// Commit runs mark → roll-forward → remove-monitor (spec.md §4.9 steps
// 2-4). Verify must have already succeeded.
func (t *Txn) Commit(ctx context.Context, mark MarkFunc, roll RollFunc, removeMonitor RemoveMonitorFunc) error {
	t.mu.Lock()
	if t.state != StateVerified {
		t.mu.Unlock()
		return aerr.New(aerr.TxnFailed, "txn: commit called from state %s", t.state)
	}
	writes := append([]*types.Key(nil), t.writes...)
	t.mu.Unlock()

	if err := mark(ctx, t.ID, writes); err != nil {
		t.mu.Lock()
		t.setInDoubt()
		t.mu.Unlock()
		return aerr.InDoubtf(aerr.TxnFailed, err, "txn: mark monitor failed")
	}

	t.mu.Lock()
	t.state = StateRollingForward
	t.mu.Unlock()

	if err := roll(ctx, t.ID, writes, true); err != nil {
		t.mu.Lock()
		t.setInDoubt()
		t.mu.Unlock()
		return aerr.InDoubtf(aerr.TxnFailed, err, "txn: roll forward failed")
	}

	if err := removeMonitor(ctx, t.ID); err != nil {
		t.logger.Warn().Err(err).Uint64("txn_id", t.ID).Msg("txn: monitor cleanup failed, a background sweep must retry it")
	}

	t.mu.Lock()
	t.state = StateCommitted
	t.mu.Unlock()
	return nil
}

// Abort rolls back every recorded write and transitions to ABORTED. It may
// be called from OPEN, VERIFY_FAILED, or VERIFIED.
func (t *Txn) Abort(ctx context.Context, roll RollFunc, removeMonitor RemoveMonitorFunc) error {
	t.mu.Lock()
	switch t.state {
	case StateOpen, StateVerifyFailed, StateVerified:
	default:
		t.mu.Unlock()
		return aerr.New(aerr.TxnFailed, "txn: abort called from state %s", t.state)
	}
	writes := append([]*types.Key(nil), t.writes...)
	t.state = StateRollingBack
	t.mu.Unlock()

	if err := roll(ctx, t.ID, writes, false); err != nil {
		t.mu.Lock()
		t.setInDoubt()
		t.mu.Unlock()
		return aerr.InDoubtf(aerr.TxnFailed, err, "txn: roll back failed")
	}

	if err := removeMonitor(ctx, t.ID); err != nil {
		t.logger.Warn().Err(err).Uint64("txn_id", t.ID).Msg("txn: monitor cleanup failed, a background sweep must retry it")
	}

	t.mu.Lock()
	t.state = StateAborted
	t.mu.Unlock()
	return nil
}
