// Package kv wraps the embedded KV engine (go.etcd.io/bbolt) that backs
// both the object store and the roots registry. It is treated as a
// monotonic map with atomic merge: callers never see a partially-applied
// update, which is what lets the roots registry's append-merge operator
// (see internal/roots) serialize concurrent setters into a well-defined
// total order instead of a lost update.
package kv

import (
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

// Bucket names for the two logical namespaces of the persistent state
// layout.
const (
	BucketObjects = "objects"
	BucketRoots   = "roots"
)

// ErrNotFound is returned when a key is absent from a bucket.
var ErrNotFound = errors.New("kv: not found")

// DB is a thin wrapper around a bbolt database, exposing exactly the
// operations the object store and roots registry need.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (creating if necessary) the database at path, ensuring the
// given buckets exist.
func Open(path string, buckets ...string) (*DB, error) {
	bdb, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("kv: init buckets: %w", err)
	}
	return &DB{bolt: bdb}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.bolt.Close()
}

// Get returns a copy of the value stored at key in bucket, or ErrNotFound.
func (d *DB) Get(bucket string, key []byte) ([]byte, error) {
	var out []byte
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("kv: no such bucket %q", bucket)
		}
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Contains reports whether key is present in bucket.
func (d *DB) Contains(bucket string, key []byte) (bool, error) {
	var found bool
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("kv: no such bucket %q", bucket)
		}
		found = b.Get(key) != nil
		return nil
	})
	return found, err
}

// Put unconditionally writes value at key in bucket.
func (d *DB) Put(bucket string, key, value []byte) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("kv: no such bucket %q", bucket)
		}
		return b.Put(key, value)
	})
}

// Merge performs an atomic read-modify-write: within a single bbolt
// transaction, it reads the
// current value at key (nil if absent), passes it to fn, and writes
// fn's result back. Concurrent callers serialize through bbolt's
// single-writer transactions, so readers always see either the pre- or
// post-merge value, never a partial one.
func (d *DB) Merge(bucket string, key []byte, fn func(old []byte) ([]byte, error)) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("kv: no such bucket %q", bucket)
		}
		var old []byte
		if v := b.Get(key); v != nil {
			old = append([]byte(nil), v...)
		}
		newVal, err := fn(old)
		if err != nil {
			return err
		}
		return b.Put(key, newVal)
	})
}

// ClearBucket drops and recreates bucket, discarding all its contents.
func (d *DB) ClearBucket(bucket string) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucket)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucket))
		return err
	})
}
