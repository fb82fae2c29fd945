package keyValStore

import (
	"bytes"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *KeyValStore {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	kv, err := NewKeyValStore(StoreConfig{
		Paths:  []string{t.TempDir()},
		Logger: logger,
	})
	require.NoError(t, err)
	return kv
}

func TestKeyValStore_GetPutDelete(t *testing.T) {
	kv := newTestStore(t)
	defer kv.Close()

	v, err := kv.Get(7)
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, kv.Put(7, []byte("hello")))
	v, err = kv.Get(7)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)

	require.NoError(t, kv.Put(7, []byte("world")))
	v, err = kv.Get(7)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), v)

	require.NoError(t, kv.Delete(7))
	v, err = kv.Get(7)
	require.NoError(t, err)
	assert.Nil(t, v)

	// deleting an absent key is a no-op
	require.NoError(t, kv.Delete(7))
	require.NoError(t, kv.Delete(12345))

	c := kv.Counters()
	assert.Equal(t, uint64(4), c.Reads)
	assert.Equal(t, uint64(2), c.Writes)
	assert.Equal(t, uint64(3), c.Deletes)
}

func TestKeyValStore_ReopenKeepsValues(t *testing.T) {
	dir := t.TempDir()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	conf := StoreConfig{Paths: []string{dir}, Logger: logger, SyncWrites: true}

	kv, err := NewKeyValStore(conf)
	require.NoError(t, err)
	require.NoError(t, kv.Put(1, []byte{1, 2, 3}))
	require.NoError(t, kv.Close())

	kv, err = NewKeyValStore(conf)
	require.NoError(t, err)
	defer kv.Close()

	v, err := kv.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, v)
}

func TestKeyValStore_NodesAreOrdered(t *testing.T) {
	kv := newTestStore(t)
	defer kv.Close()

	in := []uint64{1 << 40, 3, 0, 256, 1<<64 - 1, 255}
	for _, n := range in {
		require.NoError(t, kv.Put(n, []byte{byte(n)}))
	}

	nodes, err := kv.Nodes()
	require.NoError(t, err)

	want := append([]uint64(nil), in...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	assert.Equal(t, want, nodes)
}

func TestKeyValStore_CheckConfig(t *testing.T) {
	_, err := NewKeyValStore(StoreConfig{})
	assert.Error(t, err)

	_, err = NewKeyValStore(StoreConfig{Paths: []string{"/does/not/exist/anywhere"}})
	assert.Error(t, err)

	_, err = NewKeyValStore(StoreConfig{
		Paths:            []string{t.TempDir()},
		MinimumFreeSpace: 1 << 30,
	})
	assert.Error(t, err)
}

func TestEncodeKey(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 7}, EncodeKey(7))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, EncodeKey(0x0102030405060708))

	for _, n := range []uint64{0, 1, 7, 1 << 32, 1<<64 - 1} {
		got, ok := DecodeKey(EncodeKey(n))
		assert.True(t, ok)
		assert.Equal(t, n, got)
	}

	_, ok := DecodeKey([]byte{1, 2, 3})
	assert.False(t, ok)

	assert.Equal(t, -1, bytes.Compare(EncodeKey(255), EncodeKey(256)))
}

func TestMemStore(t *testing.T) {
	m := NewMemStore()

	v, err := m.Get(1)
	require.NoError(t, err)
	assert.Nil(t, v)

	in := []byte{9, 8, 7}
	require.NoError(t, m.Put(1, in))
	in[0] = 0 // the store keeps its own copy

	v, err = m.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, v)

	require.NoError(t, m.Delete(1))
	require.NoError(t, m.Delete(1))
	v, err = m.Get(1)
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.Equal(t, Counters{Reads: 3, Writes: 1, Deletes: 2}, m.Counters())

	require.NoError(t, m.Close())
	_, err = m.Get(1)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, m.Put(1, nil), ErrStoreClosed)
}
