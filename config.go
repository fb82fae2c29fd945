package storaged

import (
	"log/slog"
	"time"
)

// Config configures a badger-backed table. Only Paths[0] is used.
type Config struct {
	// Paths contains data directories. Currently only Paths[0] is used.
	Paths []string
	// MinimumFreeGB refuses to open when the data directory has less free space.
	MinimumFreeGB uint
	// SyncWrites makes every put durable before it returns.
	SyncWrites bool
	// ValueLogFileSize caps badger's value log files, in bytes.
	ValueLogFileSize int64
	// GracePeriod keeps idle nodes cached this long. Zero uses the table default.
	GracePeriod time.Duration
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *slog.Logger
}
