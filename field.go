package dynfield

// Field is the unit a field operation stores: its identity, its name and its
// value. It is what Borrow would return if fields were returned whole.
type Field[K comparable, V any] struct {
	ID    Address
	Name  K
	Value V
}

// Add attaches a new field named key to parent. It fails with
// ErrFieldAlreadyExists if parent already has a field with this key,
// whatever its value type. Nothing is written on failure.
func Add[K comparable, V any](tx *Tx, parent *UID, key K, value V) error {
	const op = "add"
	kt, vt := TypeTagOf[K](), TypeTagOf[V]()
	id, name, err := deriveFieldID(parent.addr, key, kt)
	if err != nil {
		return fieldErrf(op, parent.addr, ZeroAddress, kt, vt, err, "")
	}
	if !tx.writable {
		return fieldErrf(op, parent.addr, id, kt, vt, ErrReadOnlyTx, "")
	}
	if tx.children.Contains(parent.addr, id) {
		return fieldErrf(op, parent.addr, id, kt, vt, ErrFieldAlreadyExists, "")
	}
	data, err := encodeValue(value)
	if err != nil {
		return fieldErrf(op, parent.addr, id, kt, vt, err, "")
	}

	rec := &Record{
		Kind:      KindField,
		ID:        id,
		Parent:    parent.addr,
		KeyType:   kt,
		ValueType: vt,
		Name:      name,
		Value:     data,
	}
	if err := tx.children.Insert(parent.addr, rec); err != nil {
		return fieldErrf(op, parent.addr, id, kt, vt, err, "")
	}
	tx.markWritten(OpAdd, rec)
	return nil
}

// Borrow returns a copy of the value of the field named key. It fails with
// ErrFieldDoesNotExist if there is no such field, and ErrFieldTypeMismatch
// if the field holds a value of a type other than V.
func Borrow[K comparable, V any](tx *Tx, parent UID, key K) (V, error) {
	rec, err := lookupField[K, V](tx, "borrow", parent.addr, key, false)
	if err != nil {
		var zero V
		return zero, err
	}
	return decodeFieldValue[V](rec, "borrow")
}

// BorrowMut calls f with a pointer to the value of the field named key and
// stores the value back if f returns nil. It fails like Borrow; errors from
// f are returned as is, and leave the field unchanged.
func BorrowMut[K comparable, V any](tx *Tx, parent *UID, key K, f func(v *V) error) error {
	const op = "borrow_mut"
	rec, err := lookupField[K, V](tx, op, parent.addr, key, true)
	if err != nil {
		return err
	}
	v, err := decodeFieldValue[V](rec, op)
	if err != nil {
		return err
	}
	if err := f(&v); err != nil {
		return err
	}
	data, err := encodeValue(v)
	if err != nil {
		return fieldErrf(op, rec.Parent, rec.ID, rec.KeyType, rec.ValueType, err, "")
	}
	rec.Value = data
	if err := tx.children.Update(rec); err != nil {
		return fieldErrf(op, rec.Parent, rec.ID, rec.KeyType, rec.ValueType, err, "")
	}
	tx.markWritten(OpMutate, rec)
	return nil
}

// Remove deletes the field named key and returns its value. It fails like
// Borrow, leaving the field in place.
func Remove[K comparable, V any](tx *Tx, parent *UID, key K) (V, error) {
	const op = "remove"
	var zero V
	rec, err := lookupField[K, V](tx, op, parent.addr, key, true)
	if err != nil {
		return zero, err
	}
	v, err := decodeFieldValue[V](rec, op)
	if err != nil {
		return zero, err
	}
	deleted, err := tx.children.Delete(parent.addr, rec.ID)
	if err != nil {
		return zero, fieldErrf(op, rec.Parent, rec.ID, rec.KeyType, rec.ValueType, err, "")
	}
	if deleted == nil {
		return zero, fieldErrf(op, rec.Parent, rec.ID, rec.KeyType, rec.ValueType, ErrFieldDoesNotExist, "vanished during removal")
	}
	tx.markWritten(OpRemove, rec)
	return v, nil
}

// RemoveIfExists removes the field named key if it exists. A missing field
// is not an error; a field of another value type is.
func RemoveIfExists[K comparable, V any](tx *Tx, parent *UID, key K) (V, bool, error) {
	var zero V
	kt := TypeTagOf[K]()
	id, _, err := deriveFieldID(parent.addr, key, kt)
	if err != nil {
		return zero, false, fieldErrf("remove", parent.addr, ZeroAddress, kt, TypeTagOf[V](), err, "")
	}
	if !tx.children.Contains(parent.addr, id) {
		return zero, false, nil
	}
	v, err := Remove[K, V](tx, parent, key)
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Exists reports whether parent has a field named key, whatever its value
// type. It panics with ErrKeyEncoding if the key cannot be encoded.
func Exists[K comparable](tx *Tx, parent UID, key K) bool {
	id := mustFieldID(parent.addr, key)
	return tx.children.Contains(parent.addr, id)
}

// ExistsWithType reports whether parent has a field named key holding a V.
// It panics with ErrKeyEncoding if the key cannot be encoded.
func ExistsWithType[K comparable, V any](tx *Tx, parent UID, key K) bool {
	id := mustFieldID(parent.addr, key)
	return tx.children.ContainsWithType(parent.addr, id, TypeTagOf[V]())
}

// BorrowField returns the whole field record named key.
func BorrowField[K comparable, V any](tx *Tx, parent UID, key K) (*Field[K, V], error) {
	v, err := Borrow[K, V](tx, parent, key)
	if err != nil {
		return nil, err
	}
	return &Field[K, V]{
		ID:    mustFieldID(parent.addr, key),
		Name:  key,
		Value: v,
	}, nil
}

func mustFieldID[K comparable](parent Address, key K) Address {
	kt := TypeTagOf[K]()
	id, _, err := deriveFieldID(parent, key, kt)
	if err != nil {
		panic(fieldErrf("exists", parent, ZeroAddress, kt, "", err, ""))
	}
	return id
}

// lookupField fetches the record of the field named key. Absence is checked
// before the value type.
func lookupField[K comparable, V any](tx *Tx, op string, parent Address, key K, mut bool) (*Record, error) {
	kt, vt := TypeTagOf[K](), TypeTagOf[V]()
	id, _, err := deriveFieldID(parent, key, kt)
	if err != nil {
		return nil, fieldErrf(op, parent, ZeroAddress, kt, vt, err, "")
	}
	var rec *Record
	if mut {
		if !tx.writable {
			return nil, fieldErrf(op, parent, id, kt, vt, ErrReadOnlyTx, "")
		}
		rec, err = tx.children.FetchMut(id)
	} else {
		rec, err = tx.children.Fetch(id)
	}
	if err != nil {
		return nil, fieldErrf(op, parent, id, kt, vt, err, "")
	}
	if rec == nil || rec.Kind != KindField || rec.Parent != parent || rec.KeyType != kt {
		return nil, fieldErrf(op, parent, id, kt, vt, ErrFieldDoesNotExist, "")
	}
	if rec.ValueType != vt {
		return nil, fieldErrf(op, parent, id, kt, vt, ErrFieldTypeMismatch, "stored %s", rec.ValueType)
	}
	return rec, nil
}

func decodeFieldValue[V any](rec *Record, op string) (V, error) {
	v, err := decodeValue[V](rec.Value)
	if err != nil {
		return v, fieldErrf(op, rec.Parent, rec.ID, rec.KeyType, rec.ValueType, err, "")
	}
	return v, nil
}
