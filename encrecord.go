package dynfield

import (
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
)

type RecordKind uint8

const (
	// KindField is a field record: the name is the key, the value is the field value.
	KindField RecordKind = 1
	// KindObject is an object attached through an object field. Its parent is
	// the field record that owns it, and it has no name.
	KindObject RecordKind = 2
)

func (k RecordKind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("invalid kind %d", int(k))
	}
}

type recordFlags uint64

const (
	rfVerBit0 = recordFlags(1 << iota)
	rfVerBit1
	rfKindBit0
	rfKindBit1

	rfVerMask       = (rfVerBit0 | rfVerBit1)
	rfVer1          = rfVerBit0
	rfKindMask      = (rfKindBit0 | rfKindBit1)
	rfKindShift     = 2
	rfSupportedMask = (rfVerMask | rfKindMask)

	minRecordSize = 1 + AddressLen + 1 + 1 + 1 + 1 + 8
	maxTypeTagLen = 4096 // sanity value
)

func (rf recordFlags) ver() recordFlags {
	return rf & rfVerMask
}

func (rf recordFlags) kind() RecordKind {
	return RecordKind((rf & rfKindMask) >> rfKindShift)
}

func makeRecordFlags(kind RecordKind) recordFlags {
	return rfVer1 | (recordFlags(kind)<<rfKindShift)&rfKindMask
}

// Record is the stored form of a field or an attached object. ID is the
// storage key and is not part of the encoded bytes.
type Record struct {
	Kind      RecordKind
	ID        Address
	Parent    Address
	KeyType   TypeTag
	ValueType TypeTag
	Name      []byte
	Value     []byte
}

func (rec *Record) checksum() uint64 {
	d := xxhash.New()
	d.Write(rec.Name)
	d.Write(rec.Value)
	return d.Sum64()
}

func (rec *Record) encode(buf []byte) []byte {
	if rec.Kind != KindField && rec.Kind != KindObject {
		panic(fmt.Errorf("invalid record kind %d", rec.Kind))
	}
	bb := bytesBuilder{buf}
	bb.AppendUvarint(uint64(makeRecordFlags(rec.Kind)))
	bb.Buf = appendRaw(bb.Buf, rec.Parent[:])
	bb.AppendVarBytes([]byte(rec.KeyType))
	bb.AppendVarBytes([]byte(rec.ValueType))
	bb.AppendUvarint(uint64(len(rec.Name)))
	bb.AppendUvarint(uint64(len(rec.Value)))
	bb.AppendFixedUint64(rec.checksum())
	bb.Buf = appendRaw(bb.Buf, rec.Name)
	bb.Buf = appendRaw(bb.Buf, rec.Value)
	return bb.Buf
}

// decodeRecord parses a stored record. With headerOnly, the checksum is not
// verified and Name/Value alias data; otherwise they are copies.
func decodeRecord(id Address, data []byte, headerOnly bool) (*Record, error) {
	if len(data) < minRecordSize {
		return nil, dataErrf(data, 0, nil, "invalid record: at least %d bytes required", minRecordSize)
	}
	d := makeByteDecoder(data)

	v, err := d.Uvarint()
	if err != nil {
		return nil, err
	}
	flags := recordFlags(v)
	if (flags &^ rfSupportedMask) != 0 {
		return nil, dataErrf(data, d.Off(), nil, "invalid record: unsupported flags %x", v)
	}
	if flags.ver() != rfVer1 {
		return nil, dataErrf(data, d.Off(), nil, "invalid record: unsupported version %d", flags.ver())
	}
	rec := &Record{ID: id, Kind: flags.kind()}
	if rec.Kind != KindField && rec.Kind != KindObject {
		return nil, dataErrf(data, d.Off(), nil, "invalid record: bad kind %d", rec.Kind)
	}

	parent, err := d.Raw(AddressLen)
	if err != nil {
		return nil, err
	}
	copy(rec.Parent[:], parent)

	keyType, err := d.VarBytes()
	if err != nil {
		return nil, err
	}
	valueType, err := d.VarBytes()
	if err != nil {
		return nil, err
	}
	if len(keyType) > maxTypeTagLen || len(valueType) > maxTypeTagLen {
		return nil, dataErrf(data, d.Off(), nil, "invalid record: type tag too long")
	}
	rec.KeyType, rec.ValueType = TypeTag(keyType), TypeTag(valueType)

	nameSize, err := d.Uvarinti()
	if err != nil {
		return nil, err
	}
	valueSize, err := d.Uvarinti()
	if err != nil {
		return nil, err
	}
	sum, err := d.FixedUint64()
	if err != nil {
		return nil, err
	}
	if len(d.Buf) != nameSize+valueSize {
		return nil, dataErrf(data, d.Off(), nil, "invalid record: got %d bytes for name+value, expected %d bytes", len(d.Buf), nameSize+valueSize)
	}
	rec.Name, rec.Value = d.Buf[:nameSize], d.Buf[nameSize:]

	if !headerOnly {
		if actual := rec.checksum(); actual != sum {
			return nil, dataErrf(data, d.Off(), nil, "invalid record: checksum %016x, expected %016x", actual, sum)
		}
		rec.Name, rec.Value = slices.Clone(rec.Name), slices.Clone(rec.Value)
	}
	return rec, nil
}
