// Package badger is a kv backend on an embedded badger database. An address
// without a path, badger://, opens an in-memory database.
package badger

import (
	"errors"
	"strings"

	"github.com/canonical/cloudsupport/pkg/kv"
	"github.com/dgraph-io/badger/v4"
)

func init() {
	kv.Register("badger", New)
}

type bkv struct {
	db *badger.DB
}

// New opens the badger database at the path of addr, e.g.
// badger:///var/lib/cloudsupport/state
func New(addr string) (kv.KV, error) {
	path, err := kv.Path(addr)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &bkv{db: db}, nil
}

func (b *bkv) Delete(key string, recurse bool) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if !recurse {
			if _, err := txn.Get([]byte(key)); err != nil {
				return err
			}
			return txn.Delete([]byte(key))
		}

		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		prefix := []byte(strings.TrimSuffix(key, "/") + "/")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		keys := [][]byte{}
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *bkv) Get(key string) (kv.Value, error) {
	var v kv.Value
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		v.Data, err = item.ValueCopy(nil)
		return err
	})
	return v, err
}

func (b *bkv) Keys(prefix string) ([]string, error) {
	keys := []string{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	return keys, err
}

func (b *bkv) Set(key, value string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (b *bkv) IsKeyNotFound(err error) bool {
	return errors.Is(err, badger.ErrKeyNotFound)
}

func (b *bkv) Close() error {
	return b.db.Close()
}
