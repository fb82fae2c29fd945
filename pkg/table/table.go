// Package table exposes per-node blobs of a key-value store as files.
//
// Each node touched through a Table gets a cached entry that loads the blob
// once, lets readers work on immutable snapshots, serializes writers and
// deleters behind a per-node lock, and evicts itself after a grace period
// without holders. An operation that races an eviction is retried against
// a fresh entry, so callers never see a finalized entry.
package table

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/i5heu/ouroboros-storaged/internal/keyValStore"
	"github.com/i5heu/ouroboros-storaged/pkg/blob"
	"github.com/i5heu/ouroboros-storaged/pkg/logging"
)

// DefaultGracePeriod is how long an entry without holders stays cached.
const DefaultGracePeriod = time.Second

type Config struct {
	// GracePeriod defaults to DefaultGracePeriod.
	GracePeriod time.Duration
	// Logger defaults to logging.Logger.
	Logger *slog.Logger
	// Now stamps creation and modification times. Defaults to time.Now.
	Now func() time.Time
}

type Table struct {
	store keyValStore.Store
	grace time.Duration
	log   *slog.Logger
	now   func() time.Time

	mu     sync.Mutex
	opened map[uint64]*entry
	closed bool
}

// New wraps store. The table owns the store from here on and closes it in
// Close.
func New(store keyValStore.Store, conf Config) *Table {
	if conf.GracePeriod <= 0 {
		conf.GracePeriod = DefaultGracePeriod
	}
	if conf.Logger == nil {
		conf.Logger = logging.Logger
	}
	if conf.Now == nil {
		conf.Now = time.Now
	}
	return &Table{
		store:  store,
		grace:  conf.GracePeriod,
		log:    conf.Logger,
		now:    conf.Now,
		opened: make(map[uint64]*entry),
	}
}

func (t *Table) getOrCreate(node uint64) (*entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	e, ok := t.opened[node]
	if !ok {
		e = newEntry(t, node)
		t.opened[node] = e
	}
	return e, nil
}

// removeEntry is called by a finalizing entry. The map may already hold a
// newer entry for the node, or none at all after Close drained it.
func (t *Table) removeEntry(e *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.opened[e.node] == e {
		delete(t.opened, e.node)
	}
}

// acquire returns a borrowed entry for node. When the cached entry turns
// out to be finalized, it waits until that entry has left the map and
// looks again.
func (t *Table) acquire(ctx context.Context, node uint64) (*entry, error) {
	for {
		e, err := t.getOrCreate(node)
		if err != nil {
			return nil, err
		}
		if e.borrow() {
			return e, nil
		}
		select {
		case <-e.finalized:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Stat returns nil without error for a node that has no value.
func (t *Table) Stat(ctx context.Context, node uint64) (*blob.FileStat, error) {
	e, err := t.acquire(ctx, node)
	if err != nil {
		return nil, err
	}
	return e.stat(ctx)
}

// Open returns a read-only file, or with write set a writable one that holds
// the node's write lock until closed. Opening a node without a value for
// writing creates it. timeout bounds the wait for the write lock; zero or
// less waits as long as ctx allows.
func (t *Table) Open(ctx context.Context, node uint64, write bool, timeout time.Duration) (File, error) {
	e, err := t.acquire(ctx, node)
	if err != nil {
		return nil, err
	}
	if write {
		f, err := e.openWrite(ctx, timeout)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	f, err := e.openRead(ctx)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the node's value. Deleting a node without a value is not
// an error.
func (t *Table) Delete(ctx context.Context, node uint64, timeout time.Duration) error {
	e, err := t.acquire(ctx, node)
	if err != nil {
		return err
	}
	return e.delete(ctx, timeout)
}

// Len reports how many nodes are currently cached.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opened)
}

// Close waits until every cached entry has been evicted and closes the
// store. Files still open must be closed by their owners for Close to
// return.
func (t *Table) Close() error {
	return t.Shutdown(context.Background())
}

// Shutdown is Close bounded by ctx. The store is closed even when ctx ends
// first.
func (t *Table) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	entries := make([]*entry, 0, len(t.opened))
	for _, e := range t.opened {
		entries = append(entries, e)
	}
	t.opened = make(map[uint64]*entry)
	t.mu.Unlock()

	t.log.Debug("table closing", "entries", len(entries))

	var err error
wait:
	for _, e := range entries {
		select {
		case <-e.finalized:
		case <-ctx.Done():
			err = ctx.Err()
			break wait
		}
	}
	return multierr.Append(err, t.store.Close())
}
