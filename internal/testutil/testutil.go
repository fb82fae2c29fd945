package testutil

import (
	"flag"
	"io"
	"log/slog"
	"testing"

	"github.com/i5heu/ouroboros-storaged/pkg/logging"
)

var RunLong = flag.Bool("long", false, "run long stress tests")

func RequireLong(t testing.TB) {
	t.Helper()
	if !*RunLong {
		t.Skip("skipping stress test (use -long to enable)")
	}
}

// Logger only lets errors through, and drops those as well.
func Logger() *slog.Logger {
	return logging.New(io.Discard, slog.LevelError)
}
