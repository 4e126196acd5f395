package dynfield

// Object is anything with its own identity that can be attached as an
// object field. The UID must be part of the object's msgpack encoding.
type Object interface {
	ObjectUID() *UID
}

// objectKey wraps the names of object fields, so that an object field and a
// plain field with an equal key never share an address.
type objectKey[K comparable] struct {
	Name K `msgpack:"n"`
}

// AddObject attaches obj to parent under key. The field stores only the
// object's address; the object itself is stored at that address, owned by
// the field. Fails with ErrFieldAlreadyExists if the field exists or the
// object is already stored somewhere.
func AddObject[K comparable, V Object](tx *Tx, parent *UID, key K, obj V) error {
	const op = "add_object"
	wk := objectKey[K]{key}
	kt, vt := TypeTagOf[objectKey[K]](), TypeTagOf[V]()
	objID := obj.ObjectUID().addr

	fieldID, _, err := deriveFieldID(parent.addr, wk, kt)
	if err != nil {
		return fieldErrf(op, parent.addr, ZeroAddress, kt, vt, err, "")
	}
	if !tx.writable {
		return fieldErrf(op, parent.addr, fieldID, kt, vt, ErrReadOnlyTx, "")
	}
	if tx.children.Contains(parent.addr, fieldID) {
		return fieldErrf(op, parent.addr, fieldID, kt, vt, ErrFieldAlreadyExists, "")
	}
	if existing, err := tx.children.Fetch(objID); err != nil {
		return fieldErrf(op, parent.addr, fieldID, kt, vt, err, "")
	} else if existing != nil {
		return fieldErrf(op, parent.addr, fieldID, kt, vt, ErrFieldAlreadyExists, "object %v already stored", objID)
	}
	data, err := encodeValue(obj)
	if err != nil {
		return fieldErrf(op, parent.addr, fieldID, kt, vt, err, "")
	}

	if err := Add(tx, parent, wk, objID); err != nil {
		return err
	}
	objRec := &Record{
		Kind:      KindObject,
		ID:        objID,
		Parent:    fieldID,
		ValueType: vt,
		Value:     data,
	}
	if err := tx.children.Insert(fieldID, objRec); err != nil {
		_, _ = Remove[objectKey[K], Address](tx, parent, wk)
		return fieldErrf(op, parent.addr, fieldID, kt, vt, err, "")
	}
	tx.markWritten(OpAdd, objRec)
	return nil
}

// BorrowObject returns a copy of the object attached under key.
func BorrowObject[K comparable, V Object](tx *Tx, parent UID, key K) (V, error) {
	var zero V
	_, objRec, err := lookupObject[K, V](tx, "borrow_object", parent.addr, key, false)
	if err != nil {
		return zero, err
	}
	return decodeFieldValue[V](objRec, "borrow_object")
}

// BorrowObjectMut calls f with the object attached under key and stores it
// back if f returns nil. f must not change the object's UID.
func BorrowObjectMut[K comparable, V Object](tx *Tx, parent *UID, key K, f func(obj *V) error) error {
	const op = "borrow_object_mut"
	_, objRec, err := lookupObject[K, V](tx, op, parent.addr, key, true)
	if err != nil {
		return err
	}
	obj, err := decodeFieldValue[V](objRec, op)
	if err != nil {
		return err
	}
	if err := f(&obj); err != nil {
		return err
	}
	if actual := obj.ObjectUID().addr; actual != objRec.ID {
		return fieldErrf(op, parent.addr, objRec.Parent, objRec.KeyType, objRec.ValueType, nil, "object identity changed from %v to %v", objRec.ID, actual)
	}
	data, err := encodeValue(obj)
	if err != nil {
		return fieldErrf(op, parent.addr, objRec.Parent, objRec.KeyType, objRec.ValueType, err, "")
	}
	objRec.Value = data
	if err := tx.children.Update(objRec); err != nil {
		return fieldErrf(op, parent.addr, objRec.Parent, objRec.KeyType, objRec.ValueType, err, "")
	}
	tx.markWritten(OpMutate, objRec)
	return nil
}

// RemoveObject detaches the object attached under key and returns it. Both
// the field and the stored object are deleted.
func RemoveObject[K comparable, V Object](tx *Tx, parent *UID, key K) (V, error) {
	const op = "remove_object"
	var zero V
	fieldRec, objRec, err := lookupObject[K, V](tx, op, parent.addr, key, true)
	if err != nil {
		return zero, err
	}
	obj, err := decodeFieldValue[V](objRec, op)
	if err != nil {
		return zero, err
	}
	if _, err := tx.children.Delete(fieldRec.ID, objRec.ID); err != nil {
		return zero, fieldErrf(op, parent.addr, fieldRec.ID, fieldRec.KeyType, objRec.ValueType, err, "")
	}
	tx.markWritten(OpRemove, objRec)
	if _, err := Remove[objectKey[K], Address](tx, parent, objectKey[K]{key}); err != nil {
		return zero, err
	}
	return obj, nil
}

// ExistsObject reports whether an object is attached to parent under key.
func ExistsObject[K comparable](tx *Tx, parent UID, key K) bool {
	return Exists(tx, parent, objectKey[K]{key})
}

// ExistsObjectWithType reports whether a V is attached to parent under key.
func ExistsObjectWithType[K comparable, V Object](tx *Tx, parent UID, key K) bool {
	fieldRec, err := lookupField[objectKey[K], Address](tx, "exists_object", parent.addr, objectKey[K]{key}, false)
	if err != nil {
		return false
	}
	objID, err := decodeValue[Address](fieldRec.Value)
	if err != nil {
		return false
	}
	return tx.children.ContainsWithType(fieldRec.ID, objID, TypeTagOf[V]())
}

// ObjectID returns the address of the object attached under key.
func ObjectID[K comparable](tx *Tx, parent UID, key K) (Address, error) {
	fieldRec, err := lookupField[objectKey[K], Address](tx, "object_id", parent.addr, objectKey[K]{key}, false)
	if err != nil {
		return ZeroAddress, err
	}
	return decodeFieldValue[Address](fieldRec, "object_id")
}

func lookupObject[K comparable, V Object](tx *Tx, op string, parent Address, key K, mut bool) (fieldRec, objRec *Record, err error) {
	fieldRec, err = lookupField[objectKey[K], Address](tx, op, parent, objectKey[K]{key}, mut)
	if err != nil {
		return nil, nil, err
	}
	objID, err := decodeFieldValue[Address](fieldRec, op)
	if err != nil {
		return nil, nil, err
	}
	vt := TypeTagOf[V]()
	if mut {
		objRec, err = tx.children.FetchMut(objID)
	} else {
		objRec, err = tx.children.Fetch(objID)
	}
	if err != nil {
		return nil, nil, fieldErrf(op, parent, fieldRec.ID, fieldRec.KeyType, vt, err, "")
	}
	if objRec == nil || objRec.Kind != KindObject || objRec.Parent != fieldRec.ID {
		return nil, nil, fieldErrf(op, parent, fieldRec.ID, fieldRec.KeyType, vt, ErrFieldDoesNotExist, "object %v missing", objID)
	}
	if objRec.ValueType != vt {
		return nil, nil, fieldErrf(op, parent, fieldRec.ID, fieldRec.KeyType, vt, ErrFieldTypeMismatch, "stored %s", objRec.ValueType)
	}
	return fieldRec, objRec, nil
}
