package dynfield

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS buckets (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS kv (
	bucket TEXT NOT NULL,
	key    BLOB NOT NULL,
	value  BLOB NOT NULL,
	PRIMARY KEY (bucket, key)
) WITHOUT ROWID;
`

// sqliteStorage keeps every bucket in a single kv table. It uses a single
// connection, so transactions are serialized and readers wait for the writer.
// A goroutine that begins a read while holding a write transaction never
// gets the connection back.
type sqliteStorage struct {
	db *sql.DB
}

func openSQLiteStorage(path string) (storage, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &sqliteStorage{db: db}, nil
}

func (s *sqliteStorage) BeginTx(writable bool) (storageTx, error) {
	stx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &sqliteTx{stx: stx, writable: writable}, nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	stx      *sql.Tx
	writable bool
}

func (tx *sqliteTx) Writable() bool { return tx.writable }

func (tx *sqliteTx) Bucket(name string) storageBucket {
	var found string
	err := tx.stx.QueryRow(`SELECT name FROM buckets WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	ensure(err)
	return sqliteBucket{tx: tx, name: name}
}

func (tx *sqliteTx) CreateBucket(name string) (storageBucket, error) {
	if !tx.writable {
		return nil, ErrReadOnlyTx
	}
	_, err := tx.stx.Exec(`INSERT OR IGNORE INTO buckets (name) VALUES (?)`, name)
	if err != nil {
		return nil, err
	}
	return sqliteBucket{tx: tx, name: name}, nil
}

func (tx *sqliteTx) Commit() error {
	if !tx.writable {
		return ErrReadOnlyTx
	}
	return tx.stx.Commit()
}

func (tx *sqliteTx) Rollback() error {
	err := tx.stx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (tx *sqliteTx) Size() int64 {
	var pageCount, pageSize int64
	if err := tx.stx.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err != nil {
		return 0
	}
	if err := tx.stx.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

type sqliteBucket struct {
	tx   *sqliteTx
	name string
}

func (b sqliteBucket) Get(key []byte) []byte {
	var value []byte
	err := b.tx.stx.QueryRow(`SELECT value FROM kv WHERE bucket = ? AND key = ?`, b.name, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	ensure(err)
	if value == nil {
		value = []byte{}
	}
	return value
}

func (b sqliteBucket) Put(key, value []byte) error {
	if !b.tx.writable {
		return ErrReadOnlyTx
	}
	_, err := b.tx.stx.Exec(`INSERT INTO kv (bucket, key, value) VALUES (?, ?, ?)
		ON CONFLICT (bucket, key) DO UPDATE SET value = excluded.value`, b.name, key, value)
	return err
}

func (b sqliteBucket) Delete(key []byte) error {
	if !b.tx.writable {
		return ErrReadOnlyTx
	}
	_, err := b.tx.stx.Exec(`DELETE FROM kv WHERE bucket = ? AND key = ?`, b.name, key)
	return err
}

func (b sqliteBucket) Cursor() storageCursor {
	return &sqliteCursor{b: b}
}

func (b sqliteBucket) Stats() bucketStats {
	var n int
	var size int64
	err := b.tx.stx.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv WHERE bucket = ?`, b.name).Scan(&n, &size)
	ensure(err)
	return bucketStats{
		KeyN:      n,
		LeafInuse: size,
	}
}

// sqliteCursor re-queries for every step, seeking past the last key seen.
type sqliteCursor struct {
	b    sqliteBucket
	last []byte
	done bool
}

func (c *sqliteCursor) First() ([]byte, []byte) {
	c.done = false
	return c.step(c.b.tx.stx.QueryRow(`SELECT key, value FROM kv WHERE bucket = ? ORDER BY key LIMIT 1`, c.b.name))
}

func (c *sqliteCursor) Next() ([]byte, []byte) {
	if c.done {
		return nil, nil
	}
	if c.last == nil {
		return c.First()
	}
	return c.step(c.b.tx.stx.QueryRow(`SELECT key, value FROM kv WHERE bucket = ? AND key > ? ORDER BY key LIMIT 1`, c.b.name, c.last))
}

func (c *sqliteCursor) step(row *sql.Row) ([]byte, []byte) {
	var k, v []byte
	err := row.Scan(&k, &v)
	if errors.Is(err, sql.ErrNoRows) {
		c.done = true
		c.last = nil
		return nil, nil
	}
	ensure(err)
	c.last = k
	return k, v
}
