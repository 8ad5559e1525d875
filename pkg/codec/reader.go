package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/aeroclient/pkg/log"
	"github.com/cuemby/aeroclient/pkg/types"
)

// ParsedField is one decoded field. Fields with IDs the codec doesn't
// recognize are still carried (Type.String() reports "unknown") so callers
// that care can inspect Type numerically.
type ParsedField struct {
	Type FieldType
	Data []byte
}

// ParsedOp is one decoded operation result.
type ParsedOp struct {
	Code     types.OpCode
	Particle types.ParticleType
	Name     string
	Value    *types.Value
}

// ParsedMessage is a fully decoded response body.
type ParsedMessage struct {
	Header MsgHeader
	Fields []ParsedField
	Ops    []ParsedOp
}

// ParseMessageBody decodes a message body: everything after the 8-byte
// proto header of an already-inflated frame, starting with the 22-byte
// message header. len(body) bounds every field/op so a corrupt size never
// overruns the buffer (spec §4.1 Errors, invariant 3).
func ParseMessageBody(body []byte) (*ParsedMessage, error) {
	hdr, err := DecodeMsgHeader(body)
	if err != nil {
		return nil, err
	}

	off := MsgHeaderSize
	msg := &ParsedMessage{Header: hdr}

	for i := 0; i < int(hdr.NFields); i++ {
		f, n, err := parseField(body, off)
		if err != nil {
			return nil, err
		}
		msg.Fields = append(msg.Fields, f)
		off += n
	}

	for i := 0; i < int(hdr.NOps); i++ {
		op, n, err := parseOp(body, off)
		if err != nil {
			return nil, err
		}
		msg.Ops = append(msg.Ops, op)
		off += n
	}

	return msg, nil
}

func parseField(body []byte, off int) (ParsedField, int, error) {
	if off+4 > len(body) {
		return ParsedField{}, 0, fmt.Errorf("codec: field size would overrun buffer")
	}
	size := int(binary.BigEndian.Uint32(body[off : off+4]))
	if size < 1 || off+4+size > len(body) {
		return ParsedField{}, 0, fmt.Errorf("codec: field size %d would overflow frame", size)
	}
	typ := FieldType(body[off+4])
	data := body[off+5 : off+4+size]

	if _, ok := knownFields[typ]; !ok {
		log.Logger.Warn().Int("field_type", int(typ)).Msg("codec: skipping unknown field")
	}

	return ParsedField{Type: typ, Data: append([]byte(nil), data...)}, 4 + size, nil
}

func parseOp(body []byte, off int) (ParsedOp, int, error) {
	if off+4 > len(body) {
		return ParsedOp{}, 0, fmt.Errorf("codec: op size would overrun buffer")
	}
	size := int(binary.BigEndian.Uint32(body[off : off+4]))
	if size < 4 || off+4+size > len(body) {
		return ParsedOp{}, 0, fmt.Errorf("codec: op size %d would overflow frame", size)
	}

	p := off + 4
	opCode := types.OpCode(body[p])
	particle := types.ParticleType(body[p+1])
	// body[p+2] is reserved.
	nameLen := int(body[p+3])
	nameStart := p + 4
	nameEnd := nameStart + nameLen
	if nameEnd > off+4+size {
		return ParsedOp{}, 0, fmt.Errorf("codec: op name length would overflow frame")
	}
	name := string(body[nameStart:nameEnd])
	valData := body[nameEnd : off+4+size]

	val, err := DecodeValue(particle, valData)
	if err != nil {
		return ParsedOp{}, 0, err
	}

	return ParsedOp{Code: opCode, Particle: particle, Name: name, Value: val}, 4 + size, nil
}

// ToRecord assembles a Record from a parsed message's ops, attaching key
// and generation/TTL metadata that the caller already knows (the response
// itself does not echo the key digest back).
func (m *ParsedMessage) ToRecord(key *types.Key) *types.Record {
	bins := make([]types.Bin, 0, len(m.Ops))
	for _, op := range m.Ops {
		bins = append(bins, types.Bin{Name: op.Name, Value: op.Value})
	}
	return &types.Record{
		Key:        key,
		Bins:       bins,
		Generation: m.Header.Generation,
		TTL:        types.TTL(m.Header.RecordTTL),
	}
}
