// Package keyValStore persists node blobs in a key-value backend. Keys are
// the 8-byte big-endian encoding of the node id so that iteration order
// matches numeric order.
package keyValStore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Store is the point-lookup surface the table layer consumes. Get returns
// nil, nil for a node without a value. Delete of an absent node is a no-op.
// Implementations must be safe for concurrent use on distinct nodes.
type Store interface {
	Get(node uint64) ([]byte, error)
	Put(node uint64, data []byte) error
	Delete(node uint64) error
	Close() error
}

type StoreConfig struct {
	Paths            []string // only the first path is used
	MinimumFreeSpace int      // in GB
	SyncWrites       bool
	ValueLogFileSize int64 // in bytes, 0 keeps the 100MB default
	Logger           *logrus.Logger
}

// Counters reports how many backend operations a store has served.
type Counters struct {
	Reads   uint64
	Writes  uint64
	Deletes uint64
}

type counters struct {
	reads   atomic.Uint64
	writes  atomic.Uint64
	deletes atomic.Uint64
}

func (c *counters) snapshot() Counters {
	return Counters{
		Reads:   c.reads.Load(),
		Writes:  c.writes.Load(),
		Deletes: c.deletes.Load(),
	}
}

type KeyValStore struct {
	config   StoreConfig
	log      *logrus.Logger
	badgerDB *badger.DB
	counters counters
}

func NewKeyValStore(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log := config.Logger

	err := config.checkConfig()
	if err != nil {
		return nil, fmt.Errorf("error checking config for KeyValStore: %w", err)
	}

	opts := badger.DefaultOptions(config.Paths[0])
	opts.Logger = log.WithField("component", "badger")
	opts.ValueLogFileSize = 1024 * 1024 * 100 // Set max size of each value log file to 100MB
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	opts.SyncWrites = config.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		log.WithError(err).Error("Error opening badger")
		return nil, fmt.Errorf("keyValStore: open %s: %w", config.Paths[0], err)
	}

	err = displayDiskUsage(log, config.Paths)
	if err != nil {
		log.WithError(err).Warn("Could not display disk usage")
	}

	return &KeyValStore{
		config:   config,
		log:      log,
		badgerDB: db,
	}, nil
}

func (k *KeyValStore) Get(node uint64) ([]byte, error) {
	k.counters.reads.Add(1)
	var value []byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(EncodeKey(node))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keyValStore: get node %d: %w", node, err)
	}
	return value, nil
}

func (k *KeyValStore) Put(node uint64, data []byte) error {
	k.counters.writes.Add(1)
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(EncodeKey(node), data)
	})
	if err != nil {
		return fmt.Errorf("keyValStore: put node %d: %w", node, err)
	}
	return nil
}

func (k *KeyValStore) Delete(node uint64) error {
	k.counters.deletes.Add(1)
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Delete(EncodeKey(node))
	})
	if err != nil {
		return fmt.Errorf("keyValStore: delete node %d: %w", node, err)
	}
	return nil
}

// Nodes returns every stored node id in ascending order.
func (k *KeyValStore) Nodes() ([]uint64, error) {
	var nodes []uint64
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			node, ok := DecodeKey(it.Item().Key())
			if !ok {
				continue
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("keyValStore: list nodes: %w", err)
	}
	return nodes, nil
}

func (k *KeyValStore) Counters() Counters {
	return k.counters.snapshot()
}

func (k *KeyValStore) Close() error {
	return multierr.Combine(k.Clean(), k.badgerDB.Close())
}

func (k *KeyValStore) Clean() error {
	err := k.badgerDB.Sync()
	if err != nil {
		return fmt.Errorf("error syncing db: %w", err)
	}

	err = k.badgerDB.RunValueLogGC(0.5)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("error cleaning db: %w", err)
	}

	return nil
}

var _ Store = (*KeyValStore)(nil)
