package command

import (
	"context"

	"github.com/cuemby/aeroclient/pkg/codec"
	"github.com/cuemby/aeroclient/pkg/policy"
	"github.com/cuemby/aeroclient/pkg/types"
)

// KeyFields exposes keyFields for callers that build their own
// codec.Command for the async reactor (the Build func passed to
// Client.SubmitAsync) rather than routing through Executor.
func KeyFields(key *types.Key) []codec.FieldEntry { return keyFields(key) }

// ToOpEntries exposes toOpEntries for the same callers as KeyFields.
func ToOpEntries(ops []types.Op) []codec.OpEntry { return toOpEntries(ops) }

func keyFields(key *types.Key) []codec.FieldEntry {
	digest, _ := key.Digest()
	fields := []codec.FieldEntry{
		codec.NamespaceField(key.Namespace),
		codec.DigestField(digest),
	}
	if key.Set != "" {
		fields = append(fields, codec.SetField(key.Set))
	}
	return fields
}

func toOpEntries(ops []types.Op) []codec.OpEntry {
	out := make([]codec.OpEntry, len(ops))
	for i, op := range ops {
		out[i] = codec.OpEntry{Code: op.Code, Name: op.Bin, Value: op.Value}
	}
	return out
}

// Get reads the requested bins (all bins if names is empty).
func (e *Executor) Get(ctx context.Context, p *policy.ReadPolicy, key *types.Key, binNames ...string) (*types.Record, error) {
	if p == nil {
		p = policy.DefaultReadPolicy()
	}
	var ops []types.Op
	if len(binNames) == 0 {
		ops = []types.Op{types.GetAllOp()}
	} else {
		for _, b := range binNames {
			ops = append(ops, types.GetOp(b))
		}
	}

	msg, err := e.execute(ctx, key, p.BasePolicy, func() codec.Command {
		info1 := codec.Info1Read
		if len(binNames) == 0 {
			info1 |= codec.Info1GetAll
		}
		return codec.Command{
			Info1:  info1,
			Fields: keyFields(key),
			Ops:    toOpEntries(ops),
		}
	})
	if err != nil {
		return nil, err
	}
	return msg.ToRecord(key), nil
}

// Put writes the given bins, creating the record if absent.
func (e *Executor) Put(ctx context.Context, p *policy.WritePolicy, key *types.Key, bins ...types.Bin) error {
	if p == nil {
		p = policy.DefaultWritePolicy()
	}
	ops := make([]types.Op, len(bins))
	for i, b := range bins {
		ops[i] = types.PutOp(b.Name, b.Value)
	}

	_, err := e.execute(ctx, key, p.BasePolicy, func() codec.Command {
		info2 := codec.Info2Write
		if p.DurableDelete {
			info2 |= codec.Info2DurableDelete
		}
		if p.CreateOnly {
			info2 |= codec.Info2CreateOnly
		}
		return codec.Command{
			Info2:      info2,
			Generation: p.Generation,
			RecordTTL:  uint32(p.Expiration),
			Fields:     keyFields(key),
			Ops:        toOpEntries(ops),
		}
	})
	return err
}

// Delete removes a record.
func (e *Executor) Delete(ctx context.Context, p *policy.WritePolicy, key *types.Key) (bool, error) {
	if p == nil {
		p = policy.DefaultWritePolicy()
	}
	_, err := e.execute(ctx, key, p.BasePolicy, func() codec.Command {
		info2 := codec.Info2Write | codec.Info2Delete
		if p.DurableDelete {
			info2 |= codec.Info2DurableDelete
		}
		return codec.Command{
			Info2:  info2,
			Fields: keyFields(key),
			Ops:    toOpEntries([]types.Op{types.DeleteOp()}),
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Operate executes an arbitrary mixed read/write op list atomically,
// returning whatever read ops produced.
func (e *Executor) Operate(ctx context.Context, readPol *policy.ReadPolicy, writePol *policy.WritePolicy, key *types.Key, ops ...types.Op) (*types.Record, error) {
	base := policy.DefaultWritePolicy().BasePolicy
	hasWrite := false
	for _, op := range ops {
		if op.Code != types.OpRead && op.Code != types.OpCdtRead && op.Code != types.OpBitRead {
			hasWrite = true
			break
		}
	}
	if hasWrite && writePol != nil {
		base = writePol.BasePolicy
	} else if !hasWrite && readPol != nil {
		base = readPol.BasePolicy
	}

	msg, err := e.execute(ctx, key, base, func() codec.Command {
		var info1, info2 byte
		if !hasWrite {
			info1 = codec.Info1Read
		} else {
			info2 = codec.Info2Write | codec.Info2RespondAllOps
		}
		return codec.Command{
			Info1:  info1,
			Info2:  info2,
			Fields: keyFields(key),
			Ops:    toOpEntries(ops),
		}
	})
	if err != nil {
		return nil, err
	}
	return msg.ToRecord(key), nil
}
