package storaged

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-storaged/pkg/logging"
	"github.com/i5heu/ouroboros-storaged/pkg/table"
)

func testConfig(t *testing.T) Config {
	return Config{
		Paths:       []string{filepath.Join(t.TempDir(), "data")},
		GracePeriod: 10 * time.Millisecond,
		Logger:      logging.New(io.Discard, slog.LevelError),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestBadgerBackedTableSurvivesReopen(t *testing.T) {
	conf := testConfig(t)
	ctx := context.Background()

	tbl, err := Open(conf)
	require.NoError(t, err)

	st, err := tbl.Stat(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, st)

	f, err := tbl.Open(ctx, 7, true, 5*time.Second)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{1, 2, 3}, 0)
	require.NoError(t, err)
	require.NoError(t, f.Flush())
	require.NoError(t, f.Close())

	f, err = tbl.Open(ctx, 8, true, 5*time.Second)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("gone"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, tbl.Delete(ctx, 8, 5*time.Second))

	require.NoError(t, tbl.Close())

	tbl, err = Open(conf)
	require.NoError(t, err)
	defer tbl.Close()

	st, err = tbl.Stat(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(3), st.Size)
	assert.False(t, st.Modification.Before(st.Creation))

	r, err := tbl.Open(ctx, 7, false, 0)
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = r.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf)
	require.NoError(t, r.Close())

	_, err = tbl.Open(ctx, 8, false, 0)
	assert.ErrorIs(t, err, table.ErrNotFound)
}
