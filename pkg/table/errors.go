package table

import "errors"

var (
	ErrNotFound   = errors.New("table: node not found")
	ErrNotAllowed = errors.New("table: operation not allowed on a read-only file")
	ErrTimeout    = errors.New("table: timed out waiting for write lock")
	ErrClosed     = errors.New("table: closed")
	ErrOutOfRange = errors.New("table: offset out of range")
)
