package dynfield

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

var storageFactories = map[Backend]func(t *testing.T) storage{
	BackendMemory: func(t *testing.T) storage {
		return newMemStorage()
	},
	BackendBolt: func(t *testing.T) storage {
		bdb, err := bbolt.Open(filepath.Join(t.TempDir(), "kv.bolt"), 0666, &bbolt.Options{NoSync: true})
		require.NoError(t, err)
		return newBoltStorage(bdb)
	},
	BackendSQLite: func(t *testing.T) storage {
		st, err := openSQLiteStorage(filepath.Join(t.TempDir(), "kv.sqlite"))
		require.NoError(t, err)
		return st
	},
}

func forEachStorage(t *testing.T, f func(t *testing.T, st storage)) {
	for _, backend := range allBackends {
		t.Run(string(backend), func(t *testing.T) {
			st := storageFactories[backend](t)
			t.Cleanup(func() { st.Close() })
			f(t, st)
		})
	}
}

func update(t *testing.T, st storage, f func(stx storageTx)) {
	t.Helper()
	stx, err := st.BeginTx(true)
	require.NoError(t, err)
	defer stx.Rollback()
	f(stx)
	require.NoError(t, stx.Commit())
}

func view(t *testing.T, st storage, f func(stx storageTx)) {
	t.Helper()
	stx, err := st.BeginTx(false)
	require.NoError(t, err)
	defer stx.Rollback()
	f(stx)
}

func TestStorage_GetPutDelete(t *testing.T) {
	forEachStorage(t, func(t *testing.T, st storage) {
		update(t, st, func(stx storageTx) {
			assert.True(t, stx.Writable())
			assert.Nil(t, stx.Bucket("b"))
			b, err := stx.CreateBucket("b")
			require.NoError(t, err)
			require.NoError(t, b.Put([]byte("k1"), []byte("v1")))
			require.NoError(t, b.Put([]byte("k2"), []byte("v2")))
			require.NoError(t, b.Put([]byte("k1"), []byte("v1'")))
			require.NoError(t, b.Delete([]byte("k2")))
			require.NoError(t, b.Delete([]byte("missing")))

			again, err := stx.CreateBucket("b")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1'"), again.Get([]byte("k1")))
		})

		view(t, st, func(stx storageTx) {
			assert.False(t, stx.Writable())
			b := stx.Bucket("b")
			require.NotNil(t, b)
			assert.Equal(t, []byte("v1'"), b.Get([]byte("k1")))
			assert.Nil(t, b.Get([]byte("k2")))
			assert.Equal(t, 1, b.Stats().KeyN)
		})
	})
}

func TestStorage_CursorOrder(t *testing.T) {
	forEachStorage(t, func(t *testing.T, st storage) {
		keys := [][]byte{{0x03}, {0x01, 0xFF}, {0x01}, {0x02}, {0xFF, 0x00}}
		update(t, st, func(stx storageTx) {
			b, err := stx.CreateBucket("b")
			require.NoError(t, err)
			_, err = stx.CreateBucket("other")
			require.NoError(t, err)
			for i, k := range keys {
				require.NoError(t, b.Put(k, []byte{byte(i)}))
			}
			require.NoError(t, stx.Bucket("other").Put([]byte{0x00}, []byte{0}))
		})

		view(t, st, func(stx storageTx) {
			var got [][]byte
			c := stx.Bucket("b").Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				got = append(got, append([]byte(nil), k...))
			}
			assert.Equal(t, [][]byte{{0x01}, {0x01, 0xFF}, {0x02}, {0x03}, {0xFF, 0x00}}, got)

			k, v := stx.Bucket("b").Cursor().First()
			assert.Equal(t, []byte{0x01}, k)
			assert.Equal(t, []byte{2}, v)
		})
	})
}

func TestStorage_EmptyCursor(t *testing.T) {
	forEachStorage(t, func(t *testing.T, st storage) {
		update(t, st, func(stx storageTx) {
			_, err := stx.CreateBucket("b")
			require.NoError(t, err)
		})
		view(t, st, func(stx storageTx) {
			c := stx.Bucket("b").Cursor()
			k, _ := c.First()
			assert.Nil(t, k)
			k, _ = c.Next()
			assert.Nil(t, k)
		})
	})
}

func TestStorage_ReadOnly(t *testing.T) {
	forEachStorage(t, func(t *testing.T, st storage) {
		update(t, st, func(stx storageTx) {
			_, err := stx.CreateBucket("b")
			require.NoError(t, err)
		})
		view(t, st, func(stx storageTx) {
			_, err := stx.CreateBucket("c")
			assert.ErrorIs(t, err, ErrReadOnlyTx)
			b := stx.Bucket("b")
			assert.ErrorIs(t, b.Put([]byte("k"), []byte("v")), ErrReadOnlyTx)
			assert.ErrorIs(t, b.Delete([]byte("k")), ErrReadOnlyTx)
			assert.Error(t, stx.Commit())
		})
	})
}

func TestStorage_Rollback(t *testing.T) {
	forEachStorage(t, func(t *testing.T, st storage) {
		update(t, st, func(stx storageTx) {
			b, err := stx.CreateBucket("b")
			require.NoError(t, err)
			require.NoError(t, b.Put([]byte("kept"), []byte{1}))
		})

		stx, err := st.BeginTx(true)
		require.NoError(t, err)
		require.NoError(t, stx.Bucket("b").Put([]byte("dropped"), []byte{2}))
		require.NoError(t, stx.Bucket("b").Delete([]byte("kept")))
		require.NoError(t, stx.Rollback())
		require.NoError(t, stx.Rollback())

		view(t, st, func(stx storageTx) {
			b := stx.Bucket("b")
			assert.Equal(t, []byte{1}, b.Get([]byte("kept")))
			assert.Nil(t, b.Get([]byte("dropped")))
		})
	})
}

func TestStorage_RollbackAfterCommit(t *testing.T) {
	forEachStorage(t, func(t *testing.T, st storage) {
		stx, err := st.BeginTx(true)
		require.NoError(t, err)
		b, err := stx.CreateBucket("b")
		require.NoError(t, err)
		require.NoError(t, b.Put([]byte("k"), []byte("v")))
		require.NoError(t, stx.Commit())
		require.NoError(t, stx.Rollback())

		view(t, st, func(stx storageTx) {
			assert.Equal(t, []byte("v"), stx.Bucket("b").Get([]byte("k")))
		})
	})
}

func TestStorage_Stats(t *testing.T) {
	forEachStorage(t, func(t *testing.T, st storage) {
		update(t, st, func(stx storageTx) {
			b, err := stx.CreateBucket("b")
			require.NoError(t, err)
			for i := range 10 {
				require.NoError(t, b.Put([]byte{byte(i)}, make([]byte, 100)))
			}
		})
		view(t, st, func(stx storageTx) {
			s := stx.Bucket("b").Stats()
			assert.Equal(t, 10, s.KeyN)
			assert.GreaterOrEqual(t, s.LeafInuse, int64(10*101))
			assert.GreaterOrEqual(t, s.TotalAlloc(), int64(0))
		})
	})
}

func TestStorage_ReadWhileWriteIsOpen(t *testing.T) {
	forEachStorage(t, func(t *testing.T, st storage) {
		wtx, err := st.BeginTx(true)
		require.NoError(t, err)

		began := make(chan storageTx, 1)
		go func() {
			rtx, err := st.BeginTx(false)
			if err != nil {
				t.Error(err)
			}
			began <- rtx
		}()

		if _, ok := st.(*sqliteStorage); ok {
			select {
			case rtx := <-began:
				if rtx != nil {
					rtx.Rollback()
				}
				t.Fatal("read transaction began while the single connection was held by a writer")
			case <-time.After(100 * time.Millisecond):
			}
			require.NoError(t, wtx.Commit())
		}

		select {
		case rtx := <-began:
			require.NotNil(t, rtx)
			assert.False(t, rtx.Writable())
			rtx.Rollback()
		case <-time.After(5 * time.Second):
			t.Fatal("read transaction did not begin")
		}
		wtx.Rollback()
	})
}
