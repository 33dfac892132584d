package pebble

import (
	"testing"

	"github.com/cockroachdb/pebble/vfs"
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

func TestOnDisk(t *testing.T) {
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

	assert.ErrorIs(t, ro.Put([]byte("k"), []byte("w")), db.ErrReadOnly)
	assert.ErrorIs(t, ro.DeleteRange([]byte("a"), []byte("z")), db.ErrReadOnly)

	batch := ro.NewBatch()
	require.NoError(t, batch.Put([]byte("x"), []byte("y")))
	assert.ErrorIs(t, batch.Commit(), db.ErrReadOnly)
	assert.NoError(t, batch.Close())
}

func TestMissingWithoutCreate(t *testing.T) {
	opts := db.DefaultOptions()
	opts.CreateIfMissing = false
	_, err := Engine{FS: vfs.NewMem()}.Open("absent", opts)
	assert.Error(t, err)
}

func TestOptionsMapping(t *testing.T) {
	opts := db.DefaultOptions()
	po := newPebbleOptions(opts, nil)

	assert.Equal(t, uint64(64*db.MiB), po.MemTableSize)
	assert.Equal(t, 3, po.MemTableStopWritesThreshold)
	assert.Equal(t, 8, po.L0CompactionThreshold)
	assert.Equal(t, 24, po.L0StopWritesThreshold)
	assert.Equal(t, int64(512*db.MiB), po.LBaseMaxBytes)
	assert.Equal(t, 4, po.MaxConcurrentCompactions())
	require.Len(t, po.Levels, 4)
	for _, l := range po.Levels {
		assert.Equal(t, int64(64*db.MiB), l.TargetFileSize)
	}
	assert.False(t, po.ErrorIfNotExists)
	assert.Zero(t, po.MaxOpenFiles)
}
