package dynfield

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeMsgpack appends the canonical msgpack encoding of v to buf. Map keys
// are sorted and integers use the shortest form, so equal keys always
// produce equal bytes.
func encodeMsgpack(buf []byte, v any) ([]byte, error) {
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
	}
	return bb.Buf, nil
}

func decodeMsgpack(data []byte, ptr any) error {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(ptr)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(data, 0, err, "failed to decode msgpack into %T", ptr)
	}
	return nil
}

func encodeValue[V any](value V) ([]byte, error) {
	return encodeMsgpack(nil, value)
}

func decodeValue[V any](data []byte) (V, error) {
	var v V
	err := decodeMsgpack(data, &v)
	return v, err
}
