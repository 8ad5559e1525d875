package codec

import (
	"encoding/binary"
	"fmt"
)

const ProtoVersion = 2

// ProtoHeader is the 8-byte frame prefix on every request and response
// (spec §6): [version:u8][type:u8][size:u48be].
type ProtoHeader struct {
	Version byte
	Type    ProtoType
	Size    uint64 // payload bytes following this 8-byte header
}

// Encode writes the 8-byte proto header into dst (len(dst) must be >= 8).
func (h ProtoHeader) Encode(dst []byte) {
	dst[0] = h.Version
	dst[1] = byte(h.Type)
	// 6-byte big-endian size: pack the low 48 bits of a 64-bit BE value.
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], h.Size)
	copy(dst[2:8], sz[2:8])
}

// DecodeProtoHeader parses the 8-byte frame prefix. A version mismatch or
// reserved type is a protocol error that must close the connection.
func DecodeProtoHeader(src []byte) (ProtoHeader, error) {
	if len(src) < ProtoHeaderSize {
		return ProtoHeader{}, fmt.Errorf("codec: short proto header (%d bytes)", len(src))
	}
	var sz [8]byte
	copy(sz[2:8], src[2:8])
	h := ProtoHeader{
		Version: src[0],
		Type:    ProtoType(src[1]),
		Size:    binary.BigEndian.Uint64(sz[:]),
	}
	if h.Version != ProtoVersion {
		return ProtoHeader{}, fmt.Errorf("codec: unexpected proto version %d", h.Version)
	}
	switch h.Type {
	case ProtoInfo, ProtoAdmin, ProtoMessage, ProtoCompressedMessage:
	default:
		return ProtoHeader{}, fmt.Errorf("codec: unknown proto type %d", h.Type)
	}
	return h, nil
}

// MsgHeader is the 22-byte message header following the proto header for
// MESSAGE/COMPRESSED_MESSAGE frames (spec §6).
type MsgHeader struct {
	Info1      byte
	Info2      byte
	Info3      byte
	ResultCode byte
	Generation uint32
	RecordTTL  uint32
	TxnTTL     uint32
	NFields    uint16
	NOps       uint16
}

func (h MsgHeader) Encode(dst []byte) {
	dst[0] = MsgHeaderSize
	dst[1] = h.Info1
	dst[2] = h.Info2
	dst[3] = h.Info3
	dst[4] = 0 // unused
	dst[5] = h.ResultCode
	binary.BigEndian.PutUint32(dst[6:10], h.Generation)
	binary.BigEndian.PutUint32(dst[10:14], h.RecordTTL)
	binary.BigEndian.PutUint32(dst[14:18], h.TxnTTL)
	binary.BigEndian.PutUint16(dst[18:20], h.NFields)
	binary.BigEndian.PutUint16(dst[20:22], h.NOps)
}

func DecodeMsgHeader(src []byte) (MsgHeader, error) {
	if len(src) < MsgHeaderSize {
		return MsgHeader{}, fmt.Errorf("codec: short message header (%d bytes)", len(src))
	}
	if src[0] != MsgHeaderSize {
		return MsgHeader{}, fmt.Errorf("codec: unexpected header size %d", src[0])
	}
	return MsgHeader{
		Info1:      src[1],
		Info2:      src[2],
		Info3:      src[3],
		ResultCode: src[5],
		Generation: binary.BigEndian.Uint32(src[6:10]),
		RecordTTL:  binary.BigEndian.Uint32(src[10:14]),
		TxnTTL:     binary.BigEndian.Uint32(src[14:18]),
		NFields:    binary.BigEndian.Uint16(src[18:20]),
		NOps:       binary.BigEndian.Uint16(src[20:22]),
	}, nil
}
