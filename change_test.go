package dynfield

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOp_String(t *testing.T) {
	assert.Equal(t, "none", OpNone.String())
	assert.Equal(t, "add", OpAdd.String())
	assert.Equal(t, "mutate", OpMutate.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "invalid op 999", Op(999).String())
}

func TestTx_OnChange(t *testing.T) {
	forEachBackend(t, func(t *testing.T, db *DB) {
		parent := NewUID()
		id, err := FieldID(parent, "score")
		require.NoError(t, err)

		var got []*Change
		db.Write(func(tx *Tx) {
			tx.OnChange(func(chg *Change) {
				got = append(got, chg)
			})
			require.NoError(t, Add(tx, &parent, "score", 10))
			require.NoError(t, BorrowMut(tx, &parent, "score", incr))
			_, err := Remove[string, int](tx, &parent, "score")
			require.NoError(t, err)

			// failed operations report nothing
			_, err = Remove[string, int](tx, &parent, "score")
			require.ErrorIs(t, err, ErrFieldDoesNotExist)
		})

		require.Len(t, got, 3)
		for i, op := range []Op{OpAdd, OpMutate, OpRemove} {
			assert.Equal(t, op, got[i].Op)
			assert.Equal(t, KindField, got[i].Kind)
			assert.Equal(t, id, got[i].ID)
			assert.Equal(t, parent.Address(), got[i].Parent)
			assert.Equal(t, TypeTag("string"), got[i].KeyType)
			assert.Equal(t, TypeTag("int"), got[i].ValueType)
		}
		assert.Contains(t, got[0].String(), "add field "+parent.Address().Short()+"/"+id.Short())
	})
}

func TestTx_OnChange_Objects(t *testing.T) {
	db := setup(t, BackendMemory)
	parent := NewUID()
	c := newCounter(1)

	var ops []string
	db.Write(func(tx *Tx) {
		tx.OnChange(func(chg *Change) {
			ops = append(ops, chg.Op.String()+" "+chg.Kind.String())
		})
		require.NoError(t, AddObject(tx, &parent, "c", c))
		_, err := RemoveObject[string, *Counter](tx, &parent, "c")
		require.NoError(t, err)
	})
	assert.Equal(t, []string{"add field", "add object", "remove object", "remove field"}, ops)
}
