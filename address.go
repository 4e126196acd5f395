package dynfield

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

const AddressLen = 32

// Address is an opaque 32-byte identity of an object or a field record.
type Address [AddressLen]byte

var ZeroAddress Address

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Short returns the first 8 hex digits, for logs.
func (a Address) Short() string {
	return hex.EncodeToString(a[:4])
}

func (a Address) LogValue() slog.Value {
	return slog.StringValue(a.String())
}

func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*AddressLen {
		return a, fmt.Errorf("invalid address %q: wanted %d hex digits, got %d", s, 2*AddressLen, len(s))
	}
	_, err := hex.Decode(a[:], []byte(s))
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return a, nil
}

func (a Address) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeBytes(a[:])
}

func (a *Address) DecodeMsgpack(dec *msgpack.Decoder) error {
	b, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	if len(b) != AddressLen {
		return fmt.Errorf("invalid address: %d bytes, wanted %d", len(b), AddressLen)
	}
	copy(a[:], b)
	return nil
}

// UID is the identity of an object that can own dynamic fields.
//
// Operations that change the field set take *UID, standing in for exclusive
// access to the object; read-only operations take a UID value.
type UID struct {
	addr Address
}

// NewUID returns a fresh identity, the blake2b-256 hash of a new UUIDv7.
func NewUID() UID {
	u := uuid.Must(uuid.NewV7())
	return UID{addr: blake2b.Sum256(u[:])}
}

func UIDFromAddress(a Address) UID {
	return UID{addr: a}
}

func (u UID) Address() Address {
	return u.addr
}

func (u UID) String() string {
	return u.addr.String()
}

func (u UID) EncodeMsgpack(enc *msgpack.Encoder) error {
	return u.addr.EncodeMsgpack(enc)
}

func (u *UID) DecodeMsgpack(dec *msgpack.Decoder) error {
	return u.addr.DecodeMsgpack(dec)
}
