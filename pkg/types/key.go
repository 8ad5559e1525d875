package types

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // matches the server's fixed digest algorithm
)

// DigestSize is the fixed digest length the server expects.
const DigestSize = 20

// Digest uniquely identifies a record's storage location.
type Digest [DigestSize]byte

// Key identifies a record by namespace, set, and user key. The digest is
// computed once and memoized.
type Key struct {
	Namespace string
	Set       string
	UserKey   *Value
	digest    Digest
	hasDigest bool
}

// NewKey builds a Key and eagerly memoizes its digest.
func NewKey(namespace, set string, userKey *Value) (*Key, error) {
	k := &Key{Namespace: namespace, Set: set, UserKey: userKey}
	if _, err := k.Digest(); err != nil {
		return nil, err
	}
	return k, nil
}

// NewKeyWithDigest builds a Key from a caller-supplied digest, skipping
// hashing. UserKey may be nil (the server never needs it once the digest
// is known).
func NewKeyWithDigest(namespace, set string, digest Digest) *Key {
	return &Key{Namespace: namespace, Set: set, digest: digest, hasDigest: true}
}

// Digest returns the memoized 20-byte RIPEMD-160 digest over
// set-name ‖ particle-type ‖ user-key-bytes.
func (k *Key) Digest() (Digest, error) {
	if k.hasDigest {
		return k.digest, nil
	}
	if k.UserKey == nil {
		return Digest{}, fmt.Errorf("types: key has neither digest nor user key")
	}

	keyBytes, particleType, err := keyValueBytes(k.UserKey)
	if err != nil {
		return Digest{}, err
	}

	h := ripemd160.New()
	_, _ = h.Write([]byte(k.Set))
	_, _ = h.Write([]byte{byte(particleType)})
	_, _ = h.Write(keyBytes)

	var d Digest
	copy(d[:], h.Sum(nil))
	k.digest = d
	k.hasDigest = true
	return d, nil
}

func keyValueBytes(v *Value) ([]byte, ParticleType, error) {
	switch v.Type {
	case ParticleInteger:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v.Int()))
		return b, ParticleInteger, nil
	case ParticleString:
		return []byte(v.String()), ParticleString, nil
	case ParticleBlob:
		return v.Bytes(), ParticleBlob, nil
	default:
		return nil, 0, fmt.Errorf("types: unsupported key value type %v", v.Type)
	}
}

// PartitionID derives the owning partition for this key's digest:
// little-endian uint32 over the first 4 digest bytes, modulo the
// namespace's partition count (spec invariant 1).
func PartitionID(d Digest, partitionCount int) int {
	v := binary.LittleEndian.Uint32(d[0:4])
	return int(v) % partitionCount
}
