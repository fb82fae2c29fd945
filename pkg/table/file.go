package table

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/i5heu/ouroboros-storaged/pkg/blob"
)

// MaxContentSize bounds the content a write handle can grow a node to.
const MaxContentSize = 1 << 30

// File is an open view of one node. Offsets address the content and never
// the blob header. Close must be called exactly once; a second call returns
// ErrClosed.
type File interface {
	io.ReaderAt
	io.WriterAt
	// Truncate sets the content length, zero filling when it grows.
	Truncate(size int64) error
	Flush() error
	Stat() (blob.FileStat, error)
	Close() error
}

func checkRange(off int64, n int) error {
	if off < 0 {
		return fmt.Errorf("table: negative offset %d", off)
	}
	if off > int64(MaxContentSize-n) {
		return fmt.Errorf("%w: %d + %d bytes exceeds %d", ErrOutOfRange, off, n, MaxContentSize)
	}
	return nil
}

func readContent(data []byte, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("table: negative offset %d", off)
	}
	content := data[blob.HeaderSize:]
	if off >= int64(len(content)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// readFile serves reads from the blob that was current when it was opened.
type readFile struct {
	entry  *entry
	data   []byte
	closed atomic.Bool
}

func (f *readFile) ReadAt(p []byte, off int64) (int, error) {
	if f.closed.Load() {
		return 0, ErrClosed
	}
	return readContent(f.data, p, off)
}

func (f *readFile) WriteAt(p []byte, off int64) (int, error) {
	return 0, ErrNotAllowed
}

func (f *readFile) Truncate(size int64) error {
	return ErrNotAllowed
}

func (f *readFile) Flush() error {
	return ErrNotAllowed
}

func (f *readFile) Stat() (blob.FileStat, error) {
	if f.closed.Load() {
		return blob.FileStat{}, ErrClosed
	}
	return blob.StatOf(f.data)
}

func (f *readFile) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	f.entry.release()
	return nil
}

// writeFile holds the entry's write lock until Close. buf is the published
// blob as long as shared is set and is cloned before the first change.
type writeFile struct {
	entry *entry

	mu     sync.Mutex
	buf    []byte
	shared bool
	closed bool
}

func (f *writeFile) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}
	return readContent(f.buf, p, off)
}

func (f *writeFile) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}
	if err := checkRange(off, len(p)); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	f.own()
	end := blob.HeaderSize + int(off) + len(p)
	if grow := end - len(f.buf); grow > 0 {
		f.buf = append(f.buf, make([]byte, grow)...)
	}
	copy(f.buf[blob.HeaderSize+int(off):], p)

	if err := blob.SetModification(f.buf, f.entry.table.now()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *writeFile) Truncate(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if err := checkRange(size, 0); err != nil {
		return err
	}

	f.own()
	end := blob.HeaderSize + int(size)
	if grow := end - len(f.buf); grow > 0 {
		f.buf = append(f.buf, make([]byte, grow)...)
	} else {
		f.buf = f.buf[:end]
	}
	return blob.SetModification(f.buf, f.entry.table.now())
}

// own swaps a published buffer for a private copy before it is changed.
func (f *writeFile) own() {
	if f.shared {
		f.buf = bytes.Clone(f.buf)
		f.shared = false
	}
}

func (f *writeFile) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	return f.flushLocked()
}

// flushLocked persists the working buffer and then publishes it. Nothing
// reaches the backend when the buffer is already the published one.
func (f *writeFile) flushLocked() error {
	if f.shared {
		return nil
	}
	e := f.entry
	if err := e.table.store.Put(e.node, f.buf); err != nil {
		return err
	}
	published := f.buf
	e.current.Store(&published)
	f.shared = true
	e.table.log.Debug("node flushed", "node", e.node, "bytes", len(published))
	return nil
}

func (f *writeFile) Stat() (blob.FileStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return blob.FileStat{}, ErrClosed
	}
	return blob.StatOf(f.buf)
}

// Close flushes pending writes, then gives back the write lock and the
// borrow even if the flush failed.
func (f *writeFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.closed = true

	err := f.flushLocked()
	f.entry.unlock()
	f.entry.release()
	return err
}
