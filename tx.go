package dynfield

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Tx is a storage transaction. All field operations run inside one; a
// writable Tx is exclusive, which is what makes a *UID handle exclusive.
type Tx struct {
	db       *DB
	stx      storageTx
	children ChildStore
	writable bool
	logger   *slog.Logger
	verbose  bool

	written bool
	closed  bool

	changeHandler func(chg *Change)
}

func (db *DB) begin(writable bool) (*Tx, error) {
	stx, err := db.st.BeginTx(writable)
	if err != nil {
		return nil, fmt.Errorf("dynfield: begin: %w", err)
	}
	if writable {
		db.WriterCount.Add(1)
		db.WriteCount.Add(1)
	} else {
		db.ReaderCount.Add(1)
		db.ReadCount.Add(1)
	}
	tx := &Tx{
		db:       db,
		stx:      stx,
		writable: writable,
		logger:   db.logger,
		verbose:  db.verbose,
	}
	if stx.Bucket(fieldsBucketName) != nil {
		tx.children = newBucketStore(stx)
	}
	return tx, nil
}

// NewTxOver returns a Tx that runs field operations against cs directly,
// without a database. Commit and Close do nothing.
func NewTxOver(cs ChildStore, writable bool, logger *slog.Logger) *Tx {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tx{
		children: cs,
		writable: writable,
		logger:   logger,
	}
}

// Tx runs f in a transaction. A writable transaction is committed when f
// returns nil, and rolled back when f fails or panics.
func (db *DB) Tx(writable bool, f func(tx *Tx) error) error {
	tx, err := db.begin(writable)
	if err != nil {
		return err
	}
	defer tx.Close()
	err = safelyCall(f, tx)
	if err != nil {
		return err
	}
	if writable {
		return tx.Commit()
	}
	return nil
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func (p panicked) Unwrap() error {
	err, _ := p.reason.(error)
	return err
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (db *DB) BeginRead() *Tx {
	return must(db.begin(false))
}

func (db *DB) BeginUpdate() *Tx {
	return must(db.begin(true))
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *DB) ReadErr(f func(tx *Tx) error) error {
	tx := db.BeginRead()
	defer tx.Close()
	return f(tx)
}

func (db *DB) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

func (tx *Tx) DB() *DB {
	return tx.db
}

func (tx *Tx) IsWritable() bool {
	return tx.writable
}

// Children returns the store holding this transaction's records.
func (tx *Tx) Children() ChildStore {
	return tx.children
}

// OnChange registers a handler called after every record the transaction
// adds, mutates or removes.
func (tx *Tx) OnChange(f func(chg *Change)) {
	tx.changeHandler = f
}

func (tx *Tx) markWritten(op Op, rec *Record) {
	tx.written = true
	if tx.verbose {
		tx.logger.Debug("dynfield: write", "op", op, "kind", rec.Kind, "parent", rec.Parent, "id", rec.ID,
			"key_type", rec.KeyType, "value_type", rec.ValueType, hexAttr("name", rec.Name))
	}
	if tx.changeHandler != nil {
		tx.changeHandler(changeOf(op, rec))
	}
}

func (tx *Tx) Commit() error {
	if tx.stx == nil || tx.closed {
		return nil
	}
	if tx.written {
		tx.db.lastSize.Store(tx.stx.Size())
	}
	err := tx.stx.Commit()
	tx.release()
	return err
}

// Close rolls back the transaction unless it has been committed. It is safe
// to call more than once.
func (tx *Tx) Close() {
	if tx.stx == nil || tx.closed {
		return
	}
	err := tx.stx.Rollback()
	tx.release()
	if err != nil {
		panic(fmt.Errorf("rollback: %w", err))
	}
}

func (tx *Tx) release() {
	tx.closed = true
	if tx.writable {
		tx.db.WriterCount.Add(-1)
	} else {
		tx.db.ReaderCount.Add(-1)
	}
}
