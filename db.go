package dynfield

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

const storageFormatVersion = 1

var formatKey = []byte("format")

type Backend string

const (
	BackendBolt   Backend = "bolt"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"

	DefaultBackend = BackendBolt
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendBolt, BackendSQLite, BackendMemory:
		return b, nil
	case "":
		return DefaultBackend, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

type DB struct {
	st      storage
	backend Backend
	logger  *slog.Logger
	verbose bool

	lastSize    atomic.Int64
	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64
}

type Options struct {
	// Backend picks the storage engine. Bolt and memory allow read
	// transactions while a write transaction is open. SQLite runs on a single
	// connection, so opening any transaction while another is still open
	// blocks until it ends, and deadlocks when both are in one goroutine.
	Backend   Backend
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int
}

// Open opens or creates the database at path using opt.Backend.
// BackendMemory ignores path.
func Open(path string, opt Options) (*DB, error) {
	if opt.Backend == "" {
		opt.Backend = DefaultBackend
	}
	var st storage
	switch opt.Backend {
	case BackendBolt:
		bopt := &bbolt.Options{}
		*bopt = *bbolt.DefaultOptions
		bopt.Timeout = 10 * time.Second
		if opt.IsTesting {
			bopt.NoSync = true
			bopt.NoFreelistSync = true
			bopt.InitialMmapSize = 1024 * 1024 * 5
		} else {
			bopt.InitialMmapSize = 1024 * 1024 * 64
			bopt.FreelistType = bbolt.FreelistMapType
		}
		if opt.MmapSize != 0 {
			bopt.InitialMmapSize = opt.MmapSize
		}
		bdb, err := bbolt.Open(path, 0666, bopt)
		if err != nil {
			return nil, fmt.Errorf("dynfield: %w", err)
		}
		st = newBoltStorage(bdb)
	case BackendSQLite:
		var err error
		st, err = openSQLiteStorage(path)
		if err != nil {
			return nil, fmt.Errorf("dynfield: %w", err)
		}
	case BackendMemory:
		st = newMemStorage()
	default:
		return nil, fmt.Errorf("dynfield: unknown backend %q", opt.Backend)
	}

	db, err := openStorage(st, opt)
	if err != nil {
		st.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory returns a transient in-memory database.
func OpenMemory(opt Options) *DB {
	opt.Backend = BackendMemory
	return must(openStorage(newMemStorage(), opt))
}

func openStorage(st storage, opt Options) (*DB, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db := &DB{
		st:      st,
		backend: opt.Backend,
		logger:  logger,
		verbose: opt.Verbose,
	}

	err := db.Tx(true, func(tx *Tx) error {
		return prepareBuckets(tx.stx)
	})
	if err != nil {
		return nil, fmt.Errorf("dynfield: preparing storage: %w", err)
	}
	return db, nil
}

func prepareBuckets(stx storageTx) error {
	if _, err := stx.CreateBucket(fieldsBucketName); err != nil {
		return err
	}
	meta, err := stx.CreateBucket(metaBucketName)
	if err != nil {
		return err
	}
	want := appendUvarint(nil, storageFormatVersion)
	if existing := meta.Get(formatKey); existing == nil {
		return meta.Put(formatKey, want)
	} else if !bytes.Equal(existing, want) {
		return dataErrf(existing, 0, nil, "unsupported storage format")
	}
	return nil
}

func (db *DB) Backend() Backend {
	return db.backend
}

func (db *DB) Logger() *slog.Logger {
	return db.logger
}

// Size returns the database size observed by the last committed write.
func (db *DB) Size() int64 {
	return db.lastSize.Load()
}

func (db *DB) Close() error {
	return db.st.Close()
}
