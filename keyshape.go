package dynfield

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/tagparser/v2"
)

var errNaNKey = errors.New("NaN key never equals itself")

var (
	customEncoderType   = reflect.TypeFor[msgpack.CustomEncoder]()
	marshalerType       = reflect.TypeFor[msgpack.Marshaler]()
	binaryMarshalerType = reflect.TypeFor[encoding.BinaryMarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
)

// keyShape says whether values of a key type encode injectively, and whether
// they hold floats that need canonicalizing first.
type keyShape struct {
	err    error
	floats bool
}

var keyShapeCache sync.Map

func keyShapeOf(typ reflect.Type) keyShape {
	if v, ok := keyShapeCache.Load(typ); ok {
		return v.(keyShape)
	}
	shape := keyShapeWithoutCache(typ)
	actual, _ := keyShapeCache.LoadOrStore(typ, shape)
	return actual.(keyShape)
}

// keyShapeWithoutCache rejects key types where two Go-unequal keys could
// encode to the same bytes.
func keyShapeWithoutCache(typ reflect.Type) keyShape {
	switch typ.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
		return keyShape{err: fmt.Errorf("%v compares by identity", typ)}
	case reflect.Interface:
		return keyShape{err: fmt.Errorf("%v loses the dynamic type of the key", typ)}
	case reflect.Func, reflect.Complex64, reflect.Complex128:
		return keyShape{err: fmt.Errorf("%v is not supported as a key", typ)}
	}
	if hasCustomEncoding(typ) {
		return keyShape{}
	}
	switch typ.Kind() {
	case reflect.Float32, reflect.Float64:
		return keyShape{floats: true}
	case reflect.Array:
		return keyShapeOf(typ.Elem())
	case reflect.Struct:
		var shape keyShape
		for i := range typ.NumField() {
			f := typ.Field(i)
			tag := tagparser.Parse(f.Tag.Get("msgpack"))
			if f.Name == "_msgpack" && !tag.HasOption("omitempty") {
				continue
			}
			switch {
			case f.Anonymous:
				return keyShape{err: fmt.Errorf("%v: embedded field %s", typ, f.Name)}
			case !f.IsExported():
				return keyShape{err: fmt.Errorf("%v: unexported field %s is not encoded", typ, f.Name)}
			case tag.Name == "-":
				return keyShape{err: fmt.Errorf("%v: field %s is not encoded", typ, f.Name)}
			case tag.HasOption("omitempty"):
				return keyShape{err: fmt.Errorf("%v: field %s is omitempty", typ, f.Name)}
			}
			fs := keyShapeOf(f.Type)
			if fs.err != nil {
				return keyShape{err: fmt.Errorf("%v.%s: %w", typ, f.Name, fs.err)}
			}
			shape.floats = shape.floats || fs.floats
		}
		return shape
	}
	return keyShape{}
}

func hasCustomEncoding(typ reflect.Type) bool {
	ptr := reflect.PointerTo(typ)
	for _, iface := range []reflect.Type{customEncoderType, marshalerType, binaryMarshalerType, textMarshalerType} {
		if typ.Implements(iface) || ptr.Implements(iface) {
			return true
		}
	}
	return false
}

// canonicalizeFloats folds -0 into +0 and rejects NaN, walking v in place.
// v must be settable.
func canonicalizeFloats(v reflect.Value) error {
	if !keyShapeOf(v.Type()).floats {
		return nil
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) {
			return errNaNKey
		}
		if f == 0 {
			v.SetFloat(0)
		}
	case reflect.Array:
		for i := range v.Len() {
			if err := canonicalizeFloats(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := range v.NumField() {
			if err := canonicalizeFloats(v.Field(i)); err != nil {
				return err
			}
		}
	}
	return nil
}
