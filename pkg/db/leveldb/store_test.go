package leveldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvcontainer/pkg/db"
	"github.com/eigerco/kvcontainer/pkg/db/dbtest"
)

func TestKVStore(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) db.KVStore {
		store, err := NewMemKVStore()
		require.NoError(t, err)
		return store
	})
}

func TestBatchRangeCoversPendingPuts(t *testing.T) {
	store, err := NewMemKVStore()
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck

	require.NoError(t, store.Put([]byte("a"), []byte("0")))

	b := store.NewBatch()
	require.NoError(t, b.Put([]byte("b"), []byte("1")))
	require.NoError(t, b.DeleteRange([]byte("a"), []byte("c")))
	require.NoError(t, b.Put([]byte("a"), []byte("2")))
	require.NoError(t, b.Commit())

	v, err := store.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
	_, err = store.Get([]byte("b"))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestOnDiskReadOnly(t *testing.T) {
	path := t.TempDir()

	store, err := Engine{}.Open(path, db.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	require.NoError(t, store.Close())

	opts := db.DefaultOptions()
	opts.ReadOnly = true
	ro, err := Engine{}.Open(path, opts)
	require.NoError(t, err)
	defer ro.Close() //nolint:errcheck

	v, err := ro.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
	assert.ErrorIs(t, ro.Delete([]byte("k")), db.ErrReadOnly)
}

func TestOptionsMapping(t *testing.T) {
	lo := newLevelDBOptions(db.DefaultOptions())
	assert.Equal(t, 64*db.MiB, lo.WriteBuffer)
	assert.Equal(t, 8, lo.CompactionL0Trigger)
	assert.Equal(t, 17, lo.WriteL0SlowdownTrigger)
	assert.Equal(t, 24, lo.WriteL0PauseTrigger)
	assert.Equal(t, 512*db.MiB, lo.CompactionTotalSize)
	assert.Equal(t, 8.0, lo.CompactionTotalSizeMultiplier)
	assert.False(t, lo.ErrorIfMissing)
}
