package dynfield

import "fmt"

const (
	fieldsBucketName = "fields"
	metaBucketName   = "meta"
)

// ChildStore holds records keyed by address. Field operations sequence calls
// to it; it never interprets keys or values.
//
// Fetch, FetchMut and Delete return a nil record when nothing is stored at
// the address. Delete also returns nil when the record belongs to another
// parent.
type ChildStore interface {
	Insert(parent Address, rec *Record) error
	Fetch(id Address) (*Record, error)
	// FetchMut is Fetch for a record the caller intends to Update.
	FetchMut(id Address) (*Record, error)
	// Update replaces the name and value of an existing record.
	Update(rec *Record) error
	Delete(parent, id Address) (*Record, error)
	Contains(parent, id Address) bool
	ContainsWithType(parent, id Address, valueType TypeTag) bool
}

// bucketStore is the ChildStore over a storage bucket.
type bucketStore struct {
	stx  storageTx
	buck storageBucket
}

var _ ChildStore = (*bucketStore)(nil)

func newBucketStore(stx storageTx) *bucketStore {
	buck := stx.Bucket(fieldsBucketName)
	if buck == nil {
		panic(fmt.Errorf("missing %q bucket", fieldsBucketName))
	}
	return &bucketStore{stx: stx, buck: buck}
}

func (cs *bucketStore) Insert(parent Address, rec *Record) error {
	if !cs.stx.Writable() {
		return ErrReadOnlyTx
	}
	if rec.Parent != parent {
		panic(fmt.Errorf("record parent %v, inserting under %v", rec.Parent, parent))
	}
	if cs.buck.Get(rec.ID[:]) != nil {
		return fmt.Errorf("insert %v: %w", rec.ID, ErrFieldAlreadyExists)
	}
	return cs.buck.Put(rec.ID[:], rec.encode(nil))
}

func (cs *bucketStore) Fetch(id Address) (*Record, error) {
	raw := cs.buck.Get(id[:])
	if raw == nil {
		return nil, nil
	}
	return decodeRecord(id, raw, false)
}

func (cs *bucketStore) FetchMut(id Address) (*Record, error) {
	if !cs.stx.Writable() {
		return nil, ErrReadOnlyTx
	}
	return cs.Fetch(id)
}

func (cs *bucketStore) Update(rec *Record) error {
	if !cs.stx.Writable() {
		return ErrReadOnlyTx
	}
	raw := cs.buck.Get(rec.ID[:])
	if raw == nil {
		return fmt.Errorf("update %v: %w", rec.ID, ErrFieldDoesNotExist)
	}
	old, err := decodeRecord(rec.ID, raw, true)
	if err != nil {
		return err
	}
	if old.Parent != rec.Parent || old.Kind != rec.Kind || old.KeyType != rec.KeyType || old.ValueType != rec.ValueType {
		panic(fmt.Errorf("update %v: record identity changed", rec.ID))
	}
	return cs.buck.Put(rec.ID[:], rec.encode(nil))
}

func (cs *bucketStore) Delete(parent, id Address) (*Record, error) {
	if !cs.stx.Writable() {
		return nil, ErrReadOnlyTx
	}
	rec, err := cs.Fetch(id)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Parent != parent {
		return nil, nil
	}
	if err := cs.buck.Delete(id[:]); err != nil {
		return nil, err
	}
	return rec, nil
}

func (cs *bucketStore) Contains(parent, id Address) bool {
	rec, present := cs.header(id)
	return present && (rec == nil || rec.Parent == parent)
}

func (cs *bucketStore) ContainsWithType(parent, id Address, valueType TypeTag) bool {
	rec, _ := cs.header(id)
	return rec != nil && rec.Parent == parent && rec.ValueType == valueType
}

// header decodes the record header at id. A record that cannot be decoded is
// present but has a nil header; Contains never fails, and the next Fetch
// reports the corruption.
func (cs *bucketStore) header(id Address) (*Record, bool) {
	raw := cs.buck.Get(id[:])
	if raw == nil {
		return nil, false
	}
	rec, err := decodeRecord(id, raw, true)
	if err != nil {
		return nil, true
	}
	return rec, true
}
