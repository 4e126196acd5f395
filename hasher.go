package dynfield

import (
	"encoding/binary"
	"reflect"

	"golang.org/x/crypto/blake2b"
)

// Domain separation for derived addresses; object UIDs are hashed without it.
const childObjectScope byte = 0xf0

// DeriveFieldAddress computes the address of the field named by keyBytes
// (the encoded key) of type keyType on parent.
func DeriveFieldAddress(parent Address, keyBytes []byte, keyType TypeTag) Address {
	buf := make([]byte, 0, 1+AddressLen+2*binary.MaxVarintLen64+len(keyBytes)+len(keyType))
	buf = append(buf, childObjectScope)
	buf = append(buf, parent[:]...)
	buf = appendVarbytes(buf, keyBytes)
	buf = appendVarbytes(buf, []byte(keyType))
	return blake2b.Sum256(buf)
}

// encodeKey returns the canonical bytes of key: Go-equal keys encode equally
// and unequal keys differently. Key types that cannot guarantee this, and NaN
// keys, are rejected. Any failure is reported as ErrKeyEncoding.
func encodeKey[K comparable](key K) ([]byte, error) {
	shape := keyShapeOf(reflect.TypeFor[K]())
	if shape.err != nil {
		return nil, &keyEncodingError{shape.err}
	}
	if shape.floats {
		if err := canonicalizeFloats(reflect.ValueOf(&key).Elem()); err != nil {
			return nil, &keyEncodingError{err}
		}
	}
	b, err := encodeMsgpack(nil, key)
	if err != nil {
		return nil, &keyEncodingError{err}
	}
	return b, nil
}

type keyEncodingError struct {
	err error
}

func (e *keyEncodingError) Error() string {
	return ErrKeyEncoding.Error() + ": " + e.err.Error()
}

func (e *keyEncodingError) Unwrap() []error {
	return []error{ErrKeyEncoding, e.err}
}

// FieldID returns the address the field named key has, or would have, on parent.
func FieldID[K comparable](parent UID, key K) (Address, error) {
	id, _, err := deriveFieldID(parent.addr, key, TypeTagOf[K]())
	return id, err
}

func deriveFieldID[K comparable](parent Address, key K, keyType TypeTag) (Address, []byte, error) {
	name, err := encodeKey(key)
	if err != nil {
		return ZeroAddress, nil, err
	}
	return DeriveFieldAddress(parent, name, keyType), name, nil
}
