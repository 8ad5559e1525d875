package codec

import (
	"encoding/binary"
	"math"

	"github.com/cuemby/aeroclient/pkg/types"
)

// EncodeValue renders a Value into its wire particle type and byte
// payload, following spec §3/§6.
func EncodeValue(v *types.Value) (types.ParticleType, []byte, error) {
	switch v.Type {
	case types.ParticleNil:
		return types.ParticleNil, nil, nil
	case types.ParticleInteger:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v.Int()))
		return types.ParticleInteger, b, nil
	case types.ParticleDouble:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(v.Double()))
		return types.ParticleDouble, b, nil
	case types.ParticleString:
		return types.ParticleString, []byte(v.String()), nil
	case types.ParticleBlob:
		return types.ParticleBlob, v.Bytes(), nil
	case types.ParticleJavaBlob, types.ParticleCSharpBlob, types.ParticlePythonBlob, types.ParticleRubyBlob:
		return v.Type, v.Bytes(), nil
	case types.ParticleGeoJSON:
		return types.ParticleGeoJSON, []byte(v.String()), nil
	case types.ParticleList, types.ParticleMap:
		b, err := EncodeCDTValue(v)
		if err != nil {
			return 0, nil, err
		}
		return v.Type, b, nil
	default:
		return 0, nil, errUnsupportedParticle(v.Type)
	}
}

// DecodeValue reverses EncodeValue.
func DecodeValue(pt types.ParticleType, data []byte) (*types.Value, error) {
	switch pt {
	case types.ParticleNil:
		return types.NilValue(), nil
	case types.ParticleInteger:
		if len(data) == 0 {
			return types.IntValue(0), nil
		}
		var b [8]byte
		copy(b[8-len(data):], data)
		return types.IntValue(int64(binary.BigEndian.Uint64(b[:]))), nil
	case types.ParticleDouble:
		var b [8]byte
		copy(b[:], data)
		return types.DoubleValue(math.Float64frombits(binary.BigEndian.Uint64(b[:]))), nil
	case types.ParticleString:
		return types.StringValue(string(data)), nil
	case types.ParticleBlob:
		return types.BlobValue(append([]byte(nil), data...)), nil
	case types.ParticleJavaBlob, types.ParticleCSharpBlob, types.ParticlePythonBlob, types.ParticleRubyBlob:
		return types.TaggedBlobValue(pt, append([]byte(nil), data...)), nil
	case types.ParticleGeoJSON:
		return types.GeoJSONValue(string(data)), nil
	case types.ParticleList, types.ParticleMap:
		return DecodeCDTValue(data)
	default:
		return nil, errUnsupportedParticle(pt)
	}
}

type unsupportedParticleError struct{ pt types.ParticleType }

func (e unsupportedParticleError) Error() string {
	return "codec: unsupported particle type"
}

func errUnsupportedParticle(pt types.ParticleType) error {
	return unsupportedParticleError{pt: pt}
}
