package dynfield

// Table is a typed map stored as dynamic fields of its own UID. The Table
// value itself (UID and size) is a regular value: store it in a field, attach
// it as an object, or keep it elsewhere, and persist it after changes.
type Table[K comparable, V any] struct {
	ID   UID    `msgpack:"id"`
	Size uint64 `msgpack:"size"`
}

func NewTable[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{ID: NewUID()}
}

func (t *Table[K, V]) ObjectUID() *UID {
	return &t.ID
}

func (t *Table[K, V]) Add(tx *Tx, key K, value V) error {
	if err := Add(tx, &t.ID, key, value); err != nil {
		return err
	}
	t.Size++
	return nil
}

func (t *Table[K, V]) Borrow(tx *Tx, key K) (V, error) {
	return Borrow[K, V](tx, t.ID, key)
}

func (t *Table[K, V]) BorrowMut(tx *Tx, key K, f func(v *V) error) error {
	return BorrowMut(tx, &t.ID, key, f)
}

func (t *Table[K, V]) Remove(tx *Tx, key K) (V, error) {
	v, err := Remove[K, V](tx, &t.ID, key)
	if err != nil {
		return v, err
	}
	t.Size--
	return v, nil
}

// Contains reports whether the table has an entry for key.
func (t *Table[K, V]) Contains(tx *Tx, key K) bool {
	return ExistsWithType[K, V](tx, t.ID, key)
}

func (t *Table[K, V]) Len() uint64 {
	return t.Size
}

func (t *Table[K, V]) IsEmpty() bool {
	return t.Size == 0
}

// Destroy checks that the table is empty; an empty table owns no records,
// so there is nothing else to delete.
func (t *Table[K, V]) Destroy() error {
	if t.Size != 0 {
		return fieldErrf("destroy_table", t.ID.addr, ZeroAddress, TypeTagOf[K](), TypeTagOf[V](), ErrTableNotEmpty, "%d entries", t.Size)
	}
	return nil
}
