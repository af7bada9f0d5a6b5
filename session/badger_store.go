package session

import (
	stderrors "errors"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists the session pair in a local badger database, the
// embedded counterpart of the browser's client-local storage.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(db *badger.DB) BadgerStore {
	return BadgerStore{db: db}
}

func sessionKey(key string) []byte { return []byte("session:" + key) }

func (s BadgerStore) Get(key string) (string, bool) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false
	}
	return value, true
}

func (s BadgerStore) Set(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(key), []byte(value))
	})
}

func (s BadgerStore) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(key))
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}
