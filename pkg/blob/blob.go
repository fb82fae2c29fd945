// Package blob encodes the persisted value of a node: a fixed header with
// the creation and modification timestamps, followed by the raw content.
package blob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// HeaderSize is the number of bytes in front of the content of every blob.
const HeaderSize = 16

const (
	creationOffset     = 0
	modificationOffset = 8
)

var ErrShortBlob = errors.New("blob: shorter than header")

// FileStat is derived from a blob and never stored on its own.
type FileStat struct {
	Size         int64
	Creation     time.Time
	Modification time.Time
}

// Decode splits a blob into its header timestamps and the content view. The
// returned content aliases b.
func Decode(b []byte) (creation, modification time.Time, content []byte, err error) {
	if len(b) < HeaderSize {
		return time.Time{}, time.Time{}, nil, fmt.Errorf("%w: %d bytes", ErrShortBlob, len(b))
	}
	creation = readStamp(b[creationOffset:])
	modification = readStamp(b[modificationOffset:])
	return creation, modification, b[HeaderSize:], nil
}

// EncodeNew builds a blob without content, created and modified at now.
func EncodeNew(now time.Time) []byte {
	b := make([]byte, HeaderSize)
	writeStamp(b[creationOffset:], now)
	writeStamp(b[modificationOffset:], now)
	return b
}

// StatOf derives the FileStat of a blob.
func StatOf(b []byte) (FileStat, error) {
	creation, modification, content, err := Decode(b)
	if err != nil {
		return FileStat{}, err
	}
	return FileStat{
		Size:         int64(len(content)),
		Creation:     creation,
		Modification: modification,
	}, nil
}

// SetModification overwrites the modification stamp of b in place. b must
// not be a published blob.
func SetModification(b []byte, now time.Time) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortBlob, len(b))
	}
	writeStamp(b[modificationOffset:], now)
	return nil
}

// Stamps are Unix milliseconds.
func readStamp(b []byte) time.Time {
	return time.UnixMilli(int64(binary.BigEndian.Uint64(b)))
}

func writeStamp(b []byte, t time.Time) {
	binary.BigEndian.PutUint64(b, uint64(t.UnixMilli()))
}
