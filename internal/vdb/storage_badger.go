package vdb

import (
	"errors"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStorage is a Storage backed by Badger, for deployments whose write
// rate outpaces what FileStorage's single-file, full-snapshot-per-write
// layout can sustain.
type BadgerStorage struct {
	db *badger.DB
}

// OpenBadgerStorage opens (or creates) a Badger-backed store at dir.
func OpenBadgerStorage(dir string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dir)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, NewStorageError("open badger store", err)
	}
	return &BadgerStorage{db: db}, nil
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

func (s *BadgerStorage) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			out = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, NewStorageError("get value", err)
	}
	return out, nil
}

func (s *BadgerStorage) Put(key, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return NewStorageError("put value", err)
	}
	return nil
}

func (s *BadgerStorage) Delete(key []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return NewStorageError("delete value", err)
	}
	return nil
}
