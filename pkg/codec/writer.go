package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/aeroclient/pkg/types"
)

// FieldEntry is one compiled [size][type][bytes] field.
type FieldEntry struct {
	Type FieldType
	Data []byte
}

// OpEntry is one compiled bin-level operation.
type OpEntry struct {
	Code    types.OpCode
	Name    string
	Value   *types.Value
}

// Command is the fully-specified request to compile into wire bytes.
type Command struct {
	Info1, Info2, Info3 byte
	Generation          uint32
	RecordTTL           uint32
	TxnTTL              uint32
	Fields              []FieldEntry
	Ops                 []OpEntry
	Compress            bool
}

func NamespaceField(ns string) FieldEntry { return FieldEntry{FieldNamespace, []byte(ns)} }
func SetField(set string) FieldEntry      { return FieldEntry{FieldSetName, []byte(set)} }
func DigestField(d types.Digest) FieldEntry {
	return FieldEntry{FieldDigest, append([]byte(nil), d[:]...)}
}
func TaskIDField(taskID uint64) FieldEntry {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, taskID)
	return FieldEntry{FieldTaskID, b}
}
func SocketTimeoutField(ms uint32) FieldEntry {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, ms)
	return FieldEntry{FieldSocketTimeout, b}
}
func RecordsPerSecondField(rps uint32) FieldEntry {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, rps)
	return FieldEntry{FieldRecordsPerSecond, b}
}
func MaxRecordsField(n uint64) FieldEntry {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return FieldEntry{FieldMaxRecords, b}
}
func PartitionIDArrayField(ids []uint16) FieldEntry {
	b := make([]byte, len(ids)*2)
	for i, id := range ids {
		binary.BigEndian.PutUint16(b[i*2:], id)
	}
	return FieldEntry{FieldPartitionIDArray, b}
}
func DigestArrayField(digests []types.Digest) FieldEntry {
	b := make([]byte, len(digests)*types.DigestSize)
	for i, d := range digests {
		copy(b[i*types.DigestSize:], d[:])
	}
	return FieldEntry{FieldDigestArray, b}
}

// IndexFilterOp mirrors as_predicate_type (as_query.h): the comparison a
// secondary-index filter applies to a bin.
type IndexFilterOp byte

const (
	IndexFilterEqual IndexFilterOp = 1
	IndexFilterRange IndexFilterOp = 2
)

// IndexFilterField encodes a single secondary-index query filter: bin
// name, comparison op, index value type, and one (equal) or two (range)
// bound values (grounded on as_query.c's query-filter field layout).
func IndexFilterField(bin string, op IndexFilterOp, indexType byte, begin, end *types.Value) (FieldEntry, error) {
	beginPT, beginBytes, err := EncodeValue(begin)
	if err != nil {
		return FieldEntry{}, err
	}
	var endPT types.ParticleType
	var endBytes []byte
	if op == IndexFilterRange {
		endPT, endBytes, err = EncodeValue(end)
		if err != nil {
			return FieldEntry{}, err
		}
	}

	b := make([]byte, 0, 16+len(bin)+len(beginBytes)+len(endBytes))
	b = append(b, byte(len(bin)))
	b = append(b, bin...)
	b = append(b, byte(op))
	b = append(b, indexType)

	b = append(b, byte(beginPT))
	sz := make([]byte, 4)
	binary.BigEndian.PutUint32(sz, uint32(len(beginBytes)))
	b = append(b, sz...)
	b = append(b, beginBytes...)

	if op == IndexFilterRange {
		b = append(b, byte(endPT))
		binary.BigEndian.PutUint32(sz, uint32(len(endBytes)))
		b = append(b, sz...)
		b = append(b, endBytes...)
	}

	return FieldEntry{FieldIndexFilter, b}, nil
}

// PredExpTag is a predicate-expression opcode, grounded on as_predexp.c's
// stack-machine tag constants.
type PredExpTag uint16

const (
	PredExpTagAnd           PredExpTag = 1
	PredExpTagOr            PredExpTag = 2
	PredExpTagNot           PredExpTag = 3
	PredExpTagIntegerValue  PredExpTag = 10
	PredExpTagStringValue   PredExpTag = 11
	PredExpTagIntegerBin    PredExpTag = 100
	PredExpTagStringBin     PredExpTag = 101
	PredExpTagIntegerEqual  PredExpTag = 200
	PredExpTagIntegerGreater PredExpTag = 202
	PredExpTagIntegerLess   PredExpTag = 204
	PredExpTagStringEqual   PredExpTag = 210
)

// PredExpNode is one postfix-ordered predicate-expression entry ready to
// encode onto the wire (see as_predexp_*_write: [tag uint16][len
// uint32][payload]).
type PredExpNode struct {
	Tag     PredExpTag
	NExpr   uint16 // AND/OR child count
	BinName string
	IntVal  int64
	StrVal  string
}

// PredExpField packs a postfix-ordered predicate-expression list into the
// wire field the query command carries to evaluate server-side, in
// addition to (or instead of) an index filter.
func PredExpField(nodes []PredExpNode) FieldEntry {
	var b []byte
	for _, n := range nodes {
		var payload []byte
		switch n.Tag {
		case PredExpTagAnd, PredExpTagOr:
			payload = make([]byte, 2)
			binary.BigEndian.PutUint16(payload, n.NExpr)
		case PredExpTagNot, PredExpTagIntegerEqual, PredExpTagIntegerGreater, PredExpTagIntegerLess, PredExpTagStringEqual:
			payload = nil
		case PredExpTagIntegerValue:
			payload = make([]byte, 8)
			binary.BigEndian.PutUint64(payload, uint64(n.IntVal))
		case PredExpTagStringValue:
			payload = []byte(n.StrVal)
		case PredExpTagIntegerBin, PredExpTagStringBin:
			payload = make([]byte, 1+len(n.BinName))
			payload[0] = byte(len(n.BinName))
			copy(payload[1:], n.BinName)
		}
		entry := make([]byte, 6+len(payload))
		binary.BigEndian.PutUint16(entry[0:2], uint16(n.Tag))
		binary.BigEndian.PutUint32(entry[2:6], uint32(len(payload)))
		copy(entry[6:], payload)
		b = append(b, entry...)
	}
	return FieldEntry{FieldPredExp, b}
}

// Compile serializes cmd into a full wire frame: proto header + message
// header + fields + ops, deflating the body first when cmd.Compress is set
// and the uncompressed size exceeds CompressThreshold (spec §4.1).
func Compile(cmd Command) ([]byte, error) {
	fieldBytes := make([][]byte, len(cmd.Fields))
	fieldsLen := 0
	for i, f := range cmd.Fields {
		fb := make([]byte, 4+1+len(f.Data))
		binary.BigEndian.PutUint32(fb[0:4], uint32(1+len(f.Data)))
		fb[4] = byte(f.Type)
		copy(fb[5:], f.Data)
		fieldBytes[i] = fb
		fieldsLen += len(fb)
	}

	opBytes := make([][]byte, len(cmd.Ops))
	opsLen := 0
	for i, op := range cmd.Ops {
		ob, err := encodeOp(op)
		if err != nil {
			return nil, fmt.Errorf("codec: encode op %q: %w", op.Name, err)
		}
		opBytes[i] = ob
		opsLen += len(ob)
	}

	bodyLen := MsgHeaderSize + fieldsLen + opsLen
	body := GetBuffer(bodyLen)

	hdr := MsgHeader{
		Info1: cmd.Info1, Info2: cmd.Info2, Info3: cmd.Info3,
		Generation: cmd.Generation, RecordTTL: cmd.RecordTTL, TxnTTL: cmd.TxnTTL,
		NFields: uint16(len(cmd.Fields)), NOps: uint16(len(cmd.Ops)),
	}
	hdr.Encode(body[:MsgHeaderSize])

	off := MsgHeaderSize
	for _, fb := range fieldBytes {
		off += copy(body[off:], fb)
	}
	for _, ob := range opBytes {
		off += copy(body[off:], ob)
	}

	proto := ProtoMessage
	payload := body
	if cmd.Compress && bodyLen > CompressThreshold {
		compressed, err := Compress(body)
		if err != nil {
			return nil, err
		}
		proto = ProtoCompressedMessage
		payload = compressed
	}

	out := make([]byte, ProtoHeaderSize+len(payload))
	ProtoHeader{Version: ProtoVersion, Type: proto, Size: uint64(len(payload))}.Encode(out[:ProtoHeaderSize])
	copy(out[ProtoHeaderSize:], payload)

	if cap(body) == SmallBufSize {
		PutBuffer(body)
	}
	return out, nil
}

func encodeOp(op OpEntry) ([]byte, error) {
	var particle types.ParticleType
	var valBytes []byte
	var err error
	if op.Value != nil {
		particle, valBytes, err = EncodeValue(op.Value)
		if err != nil {
			return nil, err
		}
	}
	nameLen := len(op.Name)
	size := 1 /*op*/ + 1 /*particle*/ + 1 /*reserved*/ + 1 /*namelen*/ + nameLen + len(valBytes)
	b := make([]byte, 4+size)
	binary.BigEndian.PutUint32(b[0:4], uint32(size))
	b[4] = byte(op.Code)
	b[5] = byte(particle)
	b[6] = 0
	b[7] = byte(nameLen)
	copy(b[8:8+nameLen], op.Name)
	copy(b[8+nameLen:], valBytes)
	return b, nil
}
