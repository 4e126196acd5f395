package dynfield

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectField_Lifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		parent := NewUID()
		c := newCounter(5)

		db.Write(func(tx *Tx) {
			require.NoError(t, AddObject(tx, &parent, "counter", c))
			assert.ErrorIs(t, AddObject(tx, &parent, "counter", newCounter(0)), ErrFieldAlreadyExists)
		})

		db.Read(func(tx *Tx) {
			assert.True(t, ExistsObject(tx, parent, "counter"))
			assert.True(t, ExistsObjectWithType[string, *Counter](tx, parent, "counter"))
			assert.False(t, ExistsObjectWithType[string, *Gadget](tx, parent, "counter"))

			got, err := BorrowObject[string, *Counter](tx, parent, "counter")
			require.NoError(t, err)
			assert.Equal(t, c, got)

			id, err := ObjectID(tx, parent, "counter")
			require.NoError(t, err)
			assert.Equal(t, c.ID.Address(), id)
		})

		db.Write(func(tx *Tx) {
			require.NoError(t, BorrowObjectMut(tx, &parent, "counter", func(obj **Counter) error {
				(*obj).Count += 10
				return nil
			}))
		})

		db.Write(func(tx *Tx) {
			got, err := RemoveObject[string, *Counter](tx, &parent, "counter")
			require.NoError(t, err)
			assert.Equal(t, 15, got.Count)
			assert.Equal(t, c.ID, got.ID)

			assert.False(t, ExistsObject(tx, parent, "counter"))
			_, err = BorrowObject[string, *Counter](tx, parent, "counter")
			assert.ErrorIs(t, err, ErrFieldDoesNotExist)
		})

		db.Read(func(tx *Tx) {
			s := tx.Stats()
			assert.Zero(t, s.Fields)
			assert.Zero(t, s.Objects)
		})
	})
}

func TestObjectField_PartitionedFromPlainFields(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		parent := NewUID()
		db.Write(func(tx *Tx) {
			require.NoError(t, Add(tx, &parent, "x", 1))
			require.NoError(t, AddObject(tx, &parent, "x", newCounter(2)))

			v, err := Borrow[string, int](tx, parent, "x")
			require.NoError(t, err)
			assert.Equal(t, 1, v)

			obj, err := BorrowObject[string, *Counter](tx, parent, "x")
			require.NoError(t, err)
			assert.Equal(t, 2, obj.Count)

			_, err = Remove[string, int](tx, &parent, "x")
			require.NoError(t, err)
			assert.True(t, ExistsObject(tx, parent, "x"))
			assert.False(t, Exists(tx, parent, "x"))
		})
	})
}

func TestObjectField_TypeMismatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		parent := NewUID()
		db.Write(func(tx *Tx) {
			require.NoError(t, AddObject(tx, &parent, 1, &Gadget{ID: NewUID(), Kind: "lamp"}))

			_, err := BorrowObject[int, *Counter](tx, parent, 1)
			assert.ErrorIs(t, err, ErrFieldTypeMismatch)
			_, err = RemoveObject[int, *Counter](tx, &parent, 1)
			assert.ErrorIs(t, err, ErrFieldTypeMismatch)

			g, err := BorrowObject[int, *Gadget](tx, parent, 1)
			require.NoError(t, err)
			assert.Equal(t, "lamp", g.Kind)
		})
	})
}

func TestObjectField_ObjectStoredOnce(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		p1, p2 := NewUID(), NewUID()
		c := newCounter(0)
		db.Write(func(tx *Tx) {
			require.NoError(t, AddObject(tx, &p1, "c", c))
			err := AddObject(tx, &p2, "c", c)
			assert.ErrorIs(t, err, ErrFieldAlreadyExists)
			assert.ErrorContains(t, err, "already stored")
			assert.False(t, ExistsObject(tx, p2, "c"))
		})
	})
}

func TestObjectField_IdentityIsFixed(t *testing.T) {
	db := setup(t, BackendMemory)
	parent := NewUID()
	db.Write(func(tx *Tx) {
		require.NoError(t, AddObject(tx, &parent, "c", newCounter(0)))
		err := BorrowObjectMut(tx, &parent, "c", func(obj **Counter) error {
			(*obj).ID = NewUID()
			return nil
		})
		require.Error(t, err)
		assert.ErrorContains(t, err, "object identity changed")

		boom := errors.New("boom")
		err = BorrowObjectMut(tx, &parent, "c", func(obj **Counter) error {
			(*obj).Count = 99
			return boom
		})
		assert.Same(t, boom, err)

		got, err := BorrowObject[string, *Counter](tx, parent, "c")
		require.NoError(t, err)
		assert.Zero(t, got.Count)
	})
}

func TestObjectField_TableAsObject(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		parent := NewUID()
		tbl := NewTable[string, Point]()

		db.Write(func(tx *Tx) {
			require.NoError(t, tbl.Add(tx, "origin", Point{}))
			require.NoError(t, tbl.Add(tx, "unit", Point{1, 1}))
			require.NoError(t, AddObject(tx, &parent, "points", tbl))
		})

		db.Read(func(tx *Tx) {
			stored, err := BorrowObject[string, *Table[string, Point]](tx, parent, "points")
			require.NoError(t, err)
			assert.EqualValues(t, 2, stored.Len())

			p, err := stored.Borrow(tx, "unit")
			require.NoError(t, err)
			assert.Equal(t, Point{1, 1}, p)
		})
	})
}
