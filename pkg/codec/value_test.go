package codec

import (
	"testing"

	"github.com/cuemby/aeroclient/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeValueRoundTrip(t *testing.T) {
	cases := []*types.Value{
		types.IntValue(42),
		types.DoubleValue(3.14),
		types.StringValue("hi"),
		types.BlobValue([]byte{1, 2, 3}),
		types.GeoJSONValue(`{"type":"Point"}`),
	}
	for _, v := range cases {
		pt, data, err := EncodeValue(v)
		require.NoError(t, err)
		got, err := DecodeValue(pt, data)
		require.NoError(t, err)
		assert.Equal(t, v.Interface(), got.Interface())
	}
}

func TestEncodeDecodeListValue(t *testing.T) {
	v := types.ListValue(types.IntValue(1), types.StringValue("a"), types.IntValue(2))
	pt, data, err := EncodeValue(v)
	require.NoError(t, err)
	assert.Equal(t, types.ParticleList, pt)

	got, err := DecodeValue(pt, data)
	require.NoError(t, err)
	assert.ElementsMatch(t, v.Interface(), got.Interface())
}

func TestEncodeDecodeMapValue(t *testing.T) {
	v := types.MapValue(types.MapUnordered,
		types.MapPair{Key: types.StringValue("a"), Value: types.IntValue(1)},
		types.MapPair{Key: types.StringValue("b"), Value: types.IntValue(2)},
	)
	pt, data, err := EncodeValue(v)
	require.NoError(t, err)
	assert.Equal(t, types.ParticleMap, pt)

	got, err := DecodeValue(pt, data)
	require.NoError(t, err)
	assert.Equal(t, v.Interface(), got.Interface())
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	payload := make([]byte, 2048)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	compressed, err := Compress(payload)
	require.NoError(t, err)

	out, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}
