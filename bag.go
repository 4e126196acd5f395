package dynfield

// Bag is a heterogeneous collection: every entry may have its own key and
// value types. Like Table, the Bag value must be persisted by its owner.
type Bag struct {
	ID   UID    `msgpack:"id"`
	Size uint64 `msgpack:"size"`
}

func NewBag() *Bag {
	return &Bag{ID: NewUID()}
}

func (b *Bag) ObjectUID() *UID {
	return &b.ID
}

func (b *Bag) Len() uint64 {
	return b.Size
}

func (b *Bag) IsEmpty() bool {
	return b.Size == 0
}

func (b *Bag) Destroy() error {
	if b.Size != 0 {
		return fieldErrf("destroy_bag", b.ID.addr, ZeroAddress, "", "", ErrBagNotEmpty, "%d entries", b.Size)
	}
	return nil
}

func BagAdd[K comparable, V any](tx *Tx, b *Bag, key K, value V) error {
	if err := Add(tx, &b.ID, key, value); err != nil {
		return err
	}
	b.Size++
	return nil
}

func BagBorrow[K comparable, V any](tx *Tx, b *Bag, key K) (V, error) {
	return Borrow[K, V](tx, b.ID, key)
}

func BagBorrowMut[K comparable, V any](tx *Tx, b *Bag, key K, f func(v *V) error) error {
	return BorrowMut(tx, &b.ID, key, f)
}

func BagRemove[K comparable, V any](tx *Tx, b *Bag, key K) (V, error) {
	v, err := Remove[K, V](tx, &b.ID, key)
	if err != nil {
		return v, err
	}
	b.Size--
	return v, nil
}

// BagContains reports whether the bag has an entry for key of any value type.
func BagContains[K comparable](tx *Tx, b *Bag, key K) bool {
	return Exists(tx, b.ID, key)
}

func BagContainsWithType[K comparable, V any](tx *Tx, b *Bag, key K) bool {
	return ExistsWithType[K, V](tx, b.ID, key)
}
