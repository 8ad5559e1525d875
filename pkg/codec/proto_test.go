package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtoHeaderRoundTrip(t *testing.T) {
	h := ProtoHeader{Version: ProtoVersion, Type: ProtoMessage, Size: 123456}
	buf := make([]byte, ProtoHeaderSize)
	h.Encode(buf)

	got, err := DecodeProtoHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDecodeProtoHeaderRejectsUnknownType(t *testing.T) {
	buf := make([]byte, ProtoHeaderSize)
	buf[0] = ProtoVersion
	buf[1] = 99
	_, err := DecodeProtoHeader(buf)
	assert.Error(t, err)
}

func TestDecodeProtoHeaderShortBuffer(t *testing.T) {
	_, err := DecodeProtoHeader([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestMsgHeaderRoundTrip(t *testing.T) {
	h := MsgHeader{
		Info1: Info1Read, Info2: Info2Write, Info3: Info3CommitMaster,
		Generation: 7, RecordTTL: 0xFFFFFFFF, TxnTTL: 0,
		NFields: 2, NOps: 3,
	}
	buf := make([]byte, MsgHeaderSize)
	h.Encode(buf)

	got, err := DecodeMsgHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestCompileThenParseRoundTrip(t *testing.T) {
	cmd := Command{
		Info1: Info1Read,
		Fields: []FieldEntry{
			NamespaceField("test"),
			SetField("demo"),
		},
	}
	wire, err := Compile(cmd)
	require.NoError(t, err)

	hdr, err := DecodeProtoHeader(wire[:ProtoHeaderSize])
	require.NoError(t, err)
	assert.Equal(t, ProtoMessage, hdr.Type)
	assert.EqualValues(t, len(wire)-ProtoHeaderSize, hdr.Size)

	msg, err := ParseMessageBody(wire[ProtoHeaderSize:])
	require.NoError(t, err)
	require.Len(t, msg.Fields, 2)
	assert.Equal(t, "test", string(msg.Fields[0].Data))
	assert.Equal(t, "demo", string(msg.Fields[1].Data))
}

func TestParseMessageBodyRejectsOversizeField(t *testing.T) {
	body := make([]byte, MsgHeaderSize+4)
	hdr := MsgHeader{NFields: 1}
	hdr.Encode(body)
	// field size claims far more than remains in the buffer.
	body[MsgHeaderSize] = 0xFF
	body[MsgHeaderSize+1] = 0xFF
	body[MsgHeaderSize+2] = 0xFF
	body[MsgHeaderSize+3] = 0xFF

	_, err := ParseMessageBody(body)
	assert.Error(t, err)
}
