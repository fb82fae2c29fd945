package table

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/i5heu/ouroboros-storaged/pkg/blob"
)

// finalizedRefs marks an entry that has been evicted. Any borrow that
// observes a negative count must go back to the table for a fresh entry.
const finalizedRefs = math.MinInt64

// entry caches one node. The published blob is immutable; writers work on
// a private copy and swap it in. A nil blob means the node has no value.
type entry struct {
	table *Table
	node  uint64

	current   atomic.Pointer[[]byte]
	refs      atomic.Int64
	writeLock *semaphore.Weighted

	loaded    chan struct{}
	loadErr   error
	finalized chan struct{}

	evict atomic.Pointer[time.Timer]
}

// newEntry starts the initial load right away.
func newEntry(t *Table, node uint64) *entry {
	e := &entry{
		table:     t,
		node:      node,
		writeLock: semaphore.NewWeighted(1),
		loaded:    make(chan struct{}),
		finalized: make(chan struct{}),
	}
	go e.load()
	return e
}

func (e *entry) load() {
	defer close(e.loaded)

	data, err := e.table.store.Get(e.node)
	if err != nil {
		e.loadErr = err
		return
	}
	if data == nil {
		return
	}
	if len(data) < blob.HeaderSize {
		e.loadErr = fmt.Errorf("table: node %d: %w", e.node, blob.ErrShortBlob)
		return
	}
	e.current.Store(&data)
	e.table.log.Debug("entry loaded", "node", e.node, "bytes", len(data))
}

// borrow takes a reference unless the entry is already finalized.
func (e *entry) borrow() bool {
	for {
		n := e.refs.Load()
		if n < 0 {
			return false
		}
		if e.refs.CompareAndSwap(n, n+1) {
			if n == 0 {
				e.cancelEviction()
			}
			return true
		}
	}
}

func (e *entry) release() {
	if e.refs.Add(-1) == 0 {
		e.armEviction()
	}
}

func (e *entry) armEviction() {
	t := time.AfterFunc(e.table.grace, e.tryFinalize)
	if old := e.evict.Swap(t); old != nil {
		old.Stop()
	}
}

func (e *entry) cancelEviction() {
	if t := e.evict.Swap(nil); t != nil {
		t.Stop()
	}
}

// tryFinalize runs on the grace timer. A timer that lost against a newer
// borrow does nothing; the next release to zero arms a new one.
func (e *entry) tryFinalize() {
	if !e.refs.CompareAndSwap(0, finalizedRefs) {
		return
	}
	<-e.loaded
	e.table.removeEntry(e)
	close(e.finalized)
	e.table.log.Debug("entry evicted", "node", e.node)
}

func (e *entry) awaitLoaded(ctx context.Context) error {
	select {
	case <-e.loaded:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.loadErr
}

// lock acquires the write lock. A timeout of zero or less waits as long as
// ctx allows. A failed acquisition leaves the lock untouched.
func (e *entry) lock(ctx context.Context, timeout time.Duration) error {
	lockCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := e.writeLock.Acquire(lockCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: node %d after %s", ErrTimeout, e.node, timeout)
	}
	return nil
}

func (e *entry) unlock() {
	e.writeLock.Release(1)
}

// The operations below expect a borrowed entry and hand the borrow back on
// every path, except the open calls which pass it to the returned file.

func (e *entry) stat(ctx context.Context) (*blob.FileStat, error) {
	defer e.release()

	if err := e.awaitLoaded(ctx); err != nil {
		return nil, err
	}
	cur := e.current.Load()
	if cur == nil {
		return nil, nil
	}
	st, err := blob.StatOf(*cur)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (e *entry) delete(ctx context.Context, timeout time.Duration) error {
	defer e.release()

	if err := e.awaitLoaded(ctx); err != nil {
		return err
	}
	if err := e.lock(ctx, timeout); err != nil {
		return err
	}
	defer e.unlock()

	prev := e.current.Swap(nil)
	if err := e.table.store.Delete(e.node); err != nil {
		e.current.Store(prev)
		return err
	}
	e.table.log.Debug("node deleted", "node", e.node)
	return nil
}

func (e *entry) openRead(ctx context.Context) (*readFile, error) {
	if err := e.awaitLoaded(ctx); err != nil {
		e.release()
		return nil, err
	}
	cur := e.current.Load()
	if cur == nil {
		e.release()
		return nil, fmt.Errorf("%w: node %d", ErrNotFound, e.node)
	}
	return &readFile{entry: e, data: *cur}, nil
}

func (e *entry) openWrite(ctx context.Context, timeout time.Duration) (*writeFile, error) {
	if err := e.awaitLoaded(ctx); err != nil {
		e.release()
		return nil, err
	}
	if err := e.lock(ctx, timeout); err != nil {
		e.release()
		return nil, err
	}

	cur := e.current.Load()
	if cur == nil {
		// A fresh node is persisted right away so Stat reports real stamps
		// while the first writer is still open.
		data := blob.EncodeNew(e.table.now())
		if err := e.table.store.Put(e.node, data); err != nil {
			e.unlock()
			e.release()
			return nil, err
		}
		e.current.Store(&data)
		cur = &data
		e.table.log.Debug("node created", "node", e.node)
	}
	return &writeFile{entry: e, buf: *cur, shared: true}, nil
}
