// ABOUTME: Device-local durable KV store on badger for synced state and the offline queue.
// ABOUTME: Every key lives under an owner prefix so accounts never share data.
package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/cradle/internal/errs"
)

const (
	ownerPrefix = "owner/"

	StatePrefix = "state/"
	QueuePrefix = "queue/"
)

// Store wraps a badger database.
type Store struct {
	db *badger.DB
	mu sync.RWMutex
}

// Open opens or creates a store in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create local store directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the badger database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Reset removes every key the owner has, state and queue alike.
func (s *Store) Reset(owner int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.DropPrefix([]byte(scope(owner, "")))
	return errs.Storage("reset local store", err)
}

// scope builds "owner/<id>/<rest>".
func scope(owner int64, rest string) string {
	return ownerPrefix + strconv.FormatInt(owner, 10) + "/" + rest
}

// set stores a value with the given key.
func (s *Store) set(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// get returns the value for key, or ok=false when it is absent.
func (s *Store) get(key string) (data []byte, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		ok = err == nil
		return err
	})
	return data, ok, err
}

// delete removes a key. Missing keys are not an error.
func (s *Store) delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// kv is one key and its value.
type kv struct {
	Key   string
	Value []byte
}

// listByPrefix returns every pair under prefix in ascending key order.
func (s *Store) listByPrefix(prefix string) ([]kv, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []kv
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			results = append(results, kv{Key: string(item.KeyCopy(nil)), Value: val})
		}
		return nil
	})
	return results, err
}
