package objstore

import (
	"github.com/ksyncdev/ksync/internal/kv"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when an object is requested by a pointer that
// is not present in the store.
var ErrNotFound = errors.New("objstore: not found")

// ErrNotAPointer is returned when a string does not decode to a valid
// 32-byte pointer.
var ErrNotAPointer = errors.New("objstore: not a pointer")

// Store is the content-addressed blob store, backed by the shared
// embedded KV database's "objects" bucket.
type Store struct {
	db *kv.DB
}

// New returns an object store backed by db.
func New(db *kv.DB) *Store {
	return &Store{db: db}
}

// Put hashes content with SHA-256 and writes it to the store if and only
// if no object with that hash is already present. It is idempotent: a
// write that finds an existing hash is a no-op on storage.
func (s *Store) Put(content []byte) (Pointer, error) {
	const method = "Store.Put"
	p := PointerTo(content)
	exists, err := s.db.Contains(kv.BucketObjects, p[:])
	if err != nil {
		return Pointer{}, errorf(method, "checking existence of %v: %v", p, err)
	}
	if exists {
		return p, nil
	}
	if err := s.db.Put(kv.BucketObjects, p[:], content); err != nil {
		return Pointer{}, errorf(method, "writing %v: %v", p, err)
	}
	return p, nil
}

// Get returns the content identified by p, or ErrNotFound.
func (s *Store) Get(p Pointer) ([]byte, error) {
	const method = "Store.Get"
	b, err := s.db.Get(kv.BucketObjects, p[:])
	if errors.Is(err, kv.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "%v", p)
	}
	if err != nil {
		return nil, errorf(method, "reading %v: %v", p, err)
	}
	return b, nil
}
