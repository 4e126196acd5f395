package dynfield

import (
	"fmt"
	"reflect"
	"sync"
)

// TypeTag names a Go type inside the store. Keys of different types hash to
// different addresses, and records remember the type of their value.
type TypeTag string

// TypeNamer lets a type pick its own stable tag, e.g. to survive a package rename.
// The name must not be claimed by any other type; TypeTagOf panics when two
// types end up with the same tag.
type TypeNamer interface {
	FieldTypeName() string
}

var (
	typeTagCache  sync.Map // reflect.Type -> TypeTag
	typeTagOwners sync.Map // TypeTag -> reflect.Type
)

func TypeTagOf[T any]() TypeTag {
	typ := reflect.TypeFor[T]()
	if v, ok := typeTagCache.Load(typ); ok {
		return v.(TypeTag)
	}
	var zero T
	var tag TypeTag
	if n, ok := any(&zero).(TypeNamer); ok {
		tag = TypeTag(n.FieldTypeName())
	} else {
		tag = typeTagWithoutCache(typ)
	}
	if owner, loaded := typeTagOwners.LoadOrStore(tag, typ); loaded && owner != typ {
		panic(fmt.Errorf("type tag %q used by both %v and %v", tag, owner, typ))
	}
	actual, _ := typeTagCache.LoadOrStore(typ, tag)
	return actual.(TypeTag)
}

// typeTagWithoutCache names defined types by their full package path, also
// inside pointer, slice, array and map types.
func typeTagWithoutCache(typ reflect.Type) TypeTag {
	if typ.Name() != "" {
		if typ.PkgPath() != "" {
			return TypeTag(typ.PkgPath() + "." + typ.Name())
		}
		return TypeTag(typ.Name())
	}
	switch typ.Kind() {
	case reflect.Pointer:
		return "*" + typeTagWithoutCache(typ.Elem())
	case reflect.Slice:
		return "[]" + typeTagWithoutCache(typ.Elem())
	case reflect.Array:
		return TypeTag(fmt.Sprintf("[%d]", typ.Len())) + typeTagWithoutCache(typ.Elem())
	case reflect.Map:
		return "map[" + typeTagWithoutCache(typ.Key()) + "]" + typeTagWithoutCache(typ.Elem())
	default:
		return TypeTag(typ.String())
	}
}

func (tag TypeTag) String() string {
	return string(tag)
}
