// Package store persists run records so the API can answer for runs
// after the in-memory registry is gone (process restart, old history).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"video-transcriber/internal/domain"
)

// ErrRunNotFound is returned for run IDs absent from the store.
var ErrRunNotFound = errors.New("run record not found")

const runKeyPrefix = "run:"

// RunStore defines persistence operations for run records.
type RunStore interface {
	Put(run domain.Run) error
	Get(id string) (domain.Run, error)
	List() ([]domain.Run, error)
	Close() error
}

type badgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the run database under dataDir.
func NewBadgerStore(dataDir string) (RunStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dataDir, "runs"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}

	return &badgerStore{db: db}, nil
}

// Put writes one run record, replacing any previous version.
func (s *badgerStore) Put(run domain.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runKeyPrefix+run.ID), data)
	})
}

// Get reads one run record by ID.
func (s *badgerStore) Get(id string) (domain.Run, error) {
	var run domain.Run

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Run{}, ErrRunNotFound
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("read run record: %w", err)
	}

	return run, nil
}

// List returns all run records, newest first.
func (s *badgerStore) List() ([]domain.Run, error) {
	var runs []domain.Run

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var run domain.Run
				if err := json.Unmarshal(val, &run); err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list run records: %w", err)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// Close releases the underlying database.
func (s *badgerStore) Close() error {
	return s.db.Close()
}
