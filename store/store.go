// Package store implements the principal_store capability spec.md treats
// as an external collaborator (section 1): "open/read-write, apply-put,
// apply-delete, lock shared/exclusive". The ulog core calls through this
// interface during Replay (recovery.go, replay.go), and takes its shared
// lock during GetEntries (pull.go); it never implements the principal
// database itself.
//
// BoltStore is the durable reference implementation, backed by
// go.etcd.io/bbolt — a dependency already present in the teacher's
// go.mod (there as a comparison backend for its own B+tree benchmarks).
// bbolt's read/write transaction model maps directly onto the
// capability's lock-shared/lock-exclusive requirement: a View is a
// shared lock, an Update is an exclusive one, and bbolt already
// serializes concurrent writers with its own file lock, the same
// guarantee the canonical ulog-then-principal_store lock order assumes
// from its other half.
package store

import (
	"errors"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

// ErrNoActiveLock is returned by Put/Delete when called without a held
// LockExclusive (a LockShared is not enough), and by Unlock when no lock
// is held.
var ErrNoActiveLock = errors.New("store: no active lock")

// ErrNotFound is not returned by BoltStore: its Delete of a principal
// that does not exist succeeds (see PrincipalStore.Delete).
var ErrNotFound = errors.New("store: principal not found")

// Record is one principal's opaque attribute blob, exactly as the codec
// capability decoded it off a put update.
type Record struct {
	Principal string
	Data      []byte
}

// PrincipalStore is the external principal_store capability.
type PrincipalStore interface {
	// Put applies an upsert of rec.
	Put(rec Record) error
	// Delete removes the named principal. Deleting an absent principal
	// is not an error — Replayer must tolerate replaying a delete twice.
	Delete(principal string) error
	// LockShared acquires a read lock, serializing with LockExclusive
	// holders (spec section 5: "acquired shared by Follower pull,
	// read-write by Replayer").
	LockShared() error
	// LockExclusive acquires a write lock.
	LockExclusive() error
	// Unlock releases whichever lock is currently held.
	Unlock() error
	// Close releases the store's resources.
	Close() error
}

var bucketName = []byte("principals")

// BoltStore is a bbolt-backed PrincipalStore.
type BoltStore struct {
	db *bbolt.DB

	mu  sync.Mutex
	txn *bbolt.Tx // the active Lock{Shared,Exclusive} transaction, if any
}

var _ PrincipalStore = (*BoltStore)(nil)

// OpenBoltStore opens (creating if absent) a bbolt-backed principal
// store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) LockShared() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txn != nil {
		return fmt.Errorf("store: lock already held")
	}
	tx, err := s.db.Begin(false)
	if err != nil {
		return err
	}
	s.txn = tx
	return nil
}

func (s *BoltStore) LockExclusive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txn != nil {
		return fmt.Errorf("store: lock already held")
	}
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	s.txn = tx
	return nil
}

func (s *BoltStore) Unlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txn == nil {
		return ErrNoActiveLock
	}
	tx := s.txn
	s.txn = nil

	if tx.Writable() {
		return tx.Commit()
	}
	return tx.Rollback()
}

func (s *BoltStore) Put(rec Record) error {
	s.mu.Lock()
	tx := s.txn
	s.mu.Unlock()

	if tx == nil || !tx.Writable() {
		return ErrNoActiveLock
	}
	return tx.Bucket(bucketName).Put([]byte(rec.Principal), rec.Data)
}

func (s *BoltStore) Delete(principal string) error {
	s.mu.Lock()
	tx := s.txn
	s.mu.Unlock()

	if tx == nil || !tx.Writable() {
		return ErrNoActiveLock
	}
	return tx.Bucket(bucketName).Delete([]byte(principal))
}

// Get is a read helper for tests; it requires a held LockShared or
// LockExclusive.
func (s *BoltStore) Get(principal string) ([]byte, bool) {
	s.mu.Lock()
	tx := s.txn
	s.mu.Unlock()

	if tx == nil {
		return nil, false
	}
	v := tx.Bucket(bucketName).Get([]byte(principal))
	if v == nil {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
