package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/ouroboros-storaged/internal/keyValStore"
	"github.com/i5heu/ouroboros-storaged/internal/testutil"
	"github.com/i5heu/ouroboros-storaged/pkg/table"
)

func TestPutNodeReplacesInPlace(t *testing.T) {
	tbl := table.New(keyValStore.NewMemStore(), table.Config{
		GracePeriod: 10 * time.Millisecond,
		Logger:      testutil.Logger(),
	})
	defer tbl.Close()
	ctx := context.Background()

	require.NoError(t, putNode(ctx, tbl, 3, strings.NewReader("a longer first value")))
	first, err := tbl.Stat(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, putNode(ctx, tbl, 3, strings.NewReader("short")))
	second, err := tbl.Stat(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), second.Size)
	assert.True(t, second.Creation.Equal(first.Creation))

	var out bytes.Buffer
	require.NoError(t, catNode(ctx, tbl, 3, &out))
	assert.Equal(t, "short", out.String())
}
