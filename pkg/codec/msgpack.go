package codec

import (
	"fmt"

	"github.com/cuemby/aeroclient/pkg/types"
	hcmsgpack "github.com/hashicorp/go-msgpack/v2/codec"
)

var msgpackHandle = &hcmsgpack.MsgpackHandle{}

// EncodeCDTValue serializes a list/map Value using the MessagePack variant
// the server expects for complex data types (spec §3). CDT sub-commands
// built by types.ListOp/MapOp are encoded as a plain MsgPack array whose
// first element is the sub-command code.
func EncodeCDTValue(v *types.Value) ([]byte, error) {
	obj, err := toMsgpackObject(v)
	if err != nil {
		return nil, err
	}
	var out []byte
	enc := hcmsgpack.NewEncoderBytes(&out, msgpackHandle)
	if err := enc.Encode(obj); err != nil {
		return nil, fmt.Errorf("codec: msgpack encode: %w", err)
	}
	return out, nil
}

// DecodeCDTValue parses MessagePack bytes back into a list/map Value.
func DecodeCDTValue(b []byte) (*types.Value, error) {
	var obj interface{}
	dec := hcmsgpack.NewDecoderBytes(b, msgpackHandle)
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("codec: msgpack decode: %w", err)
	}
	return fromMsgpackObject(obj), nil
}

func toMsgpackObject(v *types.Value) (interface{}, error) {
	switch v.Type {
	case types.ParticleNil:
		return nil, nil
	case types.ParticleInteger:
		return v.Int(), nil
	case types.ParticleDouble:
		return v.Double(), nil
	case types.ParticleString:
		return v.String(), nil
	case types.ParticleBlob:
		return v.Bytes(), nil
	case types.ParticleList:
		items := v.List()
		out := make([]interface{}, len(items))
		for i, e := range items {
			obj, err := toMsgpackObject(e)
			if err != nil {
				return nil, err
			}
			out[i] = obj
		}
		return out, nil
	case types.ParticleMap:
		pairs := v.MapPairs()
		out := make(map[interface{}]interface{}, len(pairs))
		for _, p := range pairs {
			key, err := toMsgpackObject(p.Key)
			if err != nil {
				return nil, err
			}
			val, err := toMsgpackObject(p.Value)
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: value type %v not msgpack-encodable", v.Type)
	}
}

func fromMsgpackObject(obj interface{}) *types.Value {
	switch t := obj.(type) {
	case nil:
		return types.NilValue()
	case int64:
		return types.IntValue(t)
	case float64:
		return types.DoubleValue(t)
	case string:
		return types.StringValue(t)
	case []byte:
		return types.BlobValue(t)
	case []interface{}:
		elems := make([]*types.Value, len(t))
		for i, e := range t {
			elems[i] = fromMsgpackObject(e)
		}
		return types.ListValue(elems...)
	case map[interface{}]interface{}:
		pairs := make([]types.MapPair, 0, len(t))
		for k, val := range t {
			pairs = append(pairs, types.MapPair{Key: fromMsgpackObject(k), Value: fromMsgpackObject(val)})
		}
		return types.MapValue(types.MapUnordered, pairs...)
	default:
		return types.NilValue()
	}
}
