// Package store persists serialized execution plans in BadgerDB, keyed by a
// caller-chosen string (typically the hash of the query text). It stores the
// serializer's output verbatim; reconstruction stays with plan.UnmarshalPlan.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "plan/"

// PlanStore is a BadgerDB-backed store for serialized plans.
type PlanStore struct {
	db *badger.DB
}

// Open opens (or creates) a plan store at path.
func Open(path string) (*PlanStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // plan stores are small, keep Badger quiet

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &PlanStore{db: db}, nil
}

// Close closes the underlying database.
func (s *PlanStore) Close() error {
	return s.db.Close()
}

// Hash derives a stable store key from a query's text.
func Hash(queryText string) string {
	sum := sha256.Sum256([]byte(queryText))
	return hex.EncodeToString(sum[:])
}

// Put stores a serialized plan under the given key, replacing any previous
// value.
func (s *PlanStore) Put(key string, planJSON []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyPrefix+key), planJSON); err != nil {
			return fmt.Errorf("failed to store plan %q: %w", key, err)
		}
		return nil
	})
}

// Get retrieves a serialized plan. The second return is false when the key
// is absent.
func (s *PlanStore) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load plan %q: %w", key, err)
	}
	return out, true, nil
}

// Delete removes a stored plan. Deleting an absent key is not an error.
func (s *PlanStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(keyPrefix + key)); err != nil && err != badger.ErrKeyNotFound {
			return fmt.Errorf("failed to delete plan %q: %w", key, err)
		}
		return nil
	})
}

// Keys lists every stored plan key.
func (s *PlanStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
