package cache

import (
	"time"

	"github.com/dgraph-io/badger/v4"
)

// badgerCache is an on-disk, process-local implementation of Cache that
// survives process restarts, for CLI users who want CDX page caching
// without standing up a shared Redis instance.
type badgerCache struct {
	db *badger.DB
}

// NewBadger opens (creating if needed) a Badger database at dir for use
// as a persistent Cache.
func NewBadger(dir string) (Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerCache{db: db}, nil
}

func (c *badgerCache) Get(key string) ([]byte, bool) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c *badgerCache) Set(key string, value []byte, ttl time.Duration) {
	_ = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (c *badgerCache) Delete(key string) {
	_ = c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (c *badgerCache) Clear() {
	_ = c.db.DropAll()
}

// Close closes the underlying Badger database.
func (c *badgerCache) Close() error {
	return c.db.Close()
}
