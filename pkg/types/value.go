// Package types implements the value/record/key data model: a tagged union
// over the server's particle types, the record container, and the key
// digest used to route a request to its owning partition.
package types

import "fmt"

// ParticleType is the server-side wire tag for a value's storage
// representation (spec §6).
type ParticleType byte

const (
	ParticleNil            ParticleType = 0
	ParticleInteger        ParticleType = 1
	ParticleDouble         ParticleType = 2
	ParticleString         ParticleType = 3
	ParticleBlob           ParticleType = 4
	ParticleTimestamp      ParticleType = 5
	ParticleDigest         ParticleType = 6
	ParticleJavaBlob       ParticleType = 7
	ParticleCSharpBlob     ParticleType = 8
	ParticlePythonBlob     ParticleType = 9
	ParticleRubyBlob       ParticleType = 10
	ParticleMax            ParticleType = 11
	ParticleList           ParticleType = 20
	ParticleMap            ParticleType = 19
	ParticleGeoJSON        ParticleType = 23
	ParticleHLL            ParticleType = 18
)

// MapOrder controls how a map Value is encoded and, in turn, how the server
// orders and indexes it.
type MapOrder byte

const (
	MapUnordered  MapOrder = 0
	MapKeyOrdered MapOrder = 1
	MapKeyValueOrdered MapOrder = 3
)

// Value is a tagged union over every particle type a bin may carry.
// Exactly one of the typed accessors is meaningful for a given Type.
type Value struct {
	Type    ParticleType
	boolean bool
	integer int64
	float64 float64
	str     string
	blob    []byte
	// BlobSubType carries the language-tag byte (7..10) when Type is one of
	// the tagged blob variants, so a round-trip through a non-Go client
	// preserves its subtype.
	BlobSubType ParticleType
	list        []*Value
	mapOrder    MapOrder
	mapPairs    []MapPair
	geoJSON     string
	cdtCommand  bool
}

// MapPair is one key/value entry of a map Value. Order is preserved as
// provided; MapOrder governs whether the server treats it as sorted.
type MapPair struct {
	Key   *Value
	Value *Value
}

func NilValue() *Value { return &Value{Type: ParticleNil} }

func BoolValue(b bool) *Value {
	var i int64
	if b {
		i = 1
	}
	return &Value{Type: ParticleInteger, boolean: b, integer: i}
}

func IntValue(v int64) *Value { return &Value{Type: ParticleInteger, integer: v} }

func DoubleValue(v float64) *Value { return &Value{Type: ParticleDouble, float64: v} }

func StringValue(s string) *Value { return &Value{Type: ParticleString, str: s} }

func BlobValue(b []byte) *Value { return &Value{Type: ParticleBlob, blob: b} }

// TaggedBlobValue carries a language-specific serialization subtype
// (ParticleJavaBlob..ParticleRubyBlob) so other-language clients can
// deserialize it natively.
func TaggedBlobValue(sub ParticleType, b []byte) *Value {
	return &Value{Type: sub, blob: b, BlobSubType: sub}
}

func GeoJSONValue(json string) *Value { return &Value{Type: ParticleGeoJSON, geoJSON: json} }

func ListValue(items ...*Value) *Value { return &Value{Type: ParticleList, list: items} }

func MapValue(order MapOrder, pairs ...MapPair) *Value {
	return &Value{Type: ParticleMap, mapOrder: order, mapPairs: pairs}
}

func (v *Value) Bool() bool { return v.boolean || v.integer != 0 }
func (v *Value) Int() int64 { return v.integer }
func (v *Value) Double() float64 { return v.float64 }
func (v *Value) String() string {
	switch v.Type {
	case ParticleString:
		return v.str
	case ParticleGeoJSON:
		return v.geoJSON
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}
func (v *Value) Bytes() []byte { return v.blob }
func (v *Value) List() []*Value { return v.list }
func (v *Value) MapPairs() []MapPair { return v.mapPairs }
func (v *Value) MapOrder() MapOrder  { return v.mapOrder }

// Interface returns the value boxed as an interface{}, mirroring the type
// a caller would get back from a record bin.
func (v *Value) Interface() interface{} {
	if v == nil {
		return nil
	}
	switch v.Type {
	case ParticleNil:
		return nil
	case ParticleInteger:
		return v.integer
	case ParticleDouble:
		return v.float64
	case ParticleString:
		return v.str
	case ParticleGeoJSON:
		return v.geoJSON
	case ParticleBlob, ParticleJavaBlob, ParticleCSharpBlob, ParticlePythonBlob, ParticleRubyBlob:
		return v.blob
	case ParticleList:
		out := make([]interface{}, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case ParticleMap:
		out := make(map[interface{}]interface{}, len(v.mapPairs))
		for _, p := range v.mapPairs {
			out[p.Key.Interface()] = p.Value.Interface()
		}
		return out
	default:
		return nil
	}
}
