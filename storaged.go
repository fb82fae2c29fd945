/*
Package storaged opens a node-addressed file table on top of badger.
*/
package storaged

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/i5heu/ouroboros-storaged/internal/keyValStore"
	"github.com/i5heu/ouroboros-storaged/pkg/logging"
	"github.com/i5heu/ouroboros-storaged/pkg/table"
)

// Open creates Paths[0] if needed, opens the key-value store in it and
// returns a table owning that store.
func Open(conf Config) (*table.Table, error) {
	if len(conf.Paths) == 0 {
		return nil, fmt.Errorf("at least one path must be provided in config")
	}
	if conf.Logger == nil {
		conf.Logger = logging.Logger
	}

	dataRoot := conf.Paths[0]
	if err := os.MkdirAll(dataRoot, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dataRoot, err)
	}

	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths:            conf.Paths,
		MinimumFreeSpace: int(conf.MinimumFreeGB),
		SyncWrites:       conf.SyncWrites,
		ValueLogFileSize: conf.ValueLogFileSize,
		Logger:           badgerLogger(conf.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("init kv: %w", err)
	}

	return table.New(kv, table.Config{
		GracePeriod: conf.GracePeriod,
		Logger:      conf.Logger,
	}), nil
}

// badgerLogger gives the store a logrus logger that only speaks up when the
// slog logger would show warnings.
func badgerLogger(log *slog.Logger) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	switch {
	case log.Enabled(context.Background(), slog.LevelDebug):
		l.SetLevel(logrus.DebugLevel)
	case log.Enabled(context.Background(), slog.LevelWarn):
		l.SetLevel(logrus.WarnLevel)
	default:
		l.SetLevel(logrus.ErrorLevel)
	}
	return l
}
