// Package dbtest holds the behaviour every db.KVStore implementation must
// share. Engine packages run it from their own tests.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvcontainer/pkg/db"
)

// NewStoreFunc returns a fresh, empty, writable store.
type NewStoreFunc func(t *testing.T) db.KVStore

func Run(t *testing.T, newStore NewStoreFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store db.KVStore)
	}{
		{name: "basic_put_get", fn: testBasicPutGet},
		{name: "delete_operations", fn: testDelete},
		{name: "delete_range", fn: testDeleteRange},
		{name: "store_closure", fn: testStoreClosure},
		{name: "basic_batch_operations", fn: testBasicBatchOperations},
		{name: "batch_commit_closure", fn: testBatchCommitAndClose},
		{name: "batch_invalid_range_is_rejected", fn: testBatchInvalidRange},
		{name: "multiple_batches", fn: testMultipleBatches},
		{name: "full_range_iteration", fn: testFullRangeIteration},
		{name: "bounded_range_iteration", fn: testBoundedRangeIteration},
		{name: "iterator_validity", fn: testIteratorValidity},
		{name: "iterator_seeks", fn: testIteratorSeeks},
		{name: "seek_for_prev", fn: testSeekForPrev},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			defer store.Close() //nolint:errcheck

			tc.fn(t, store)
		})
	}
}

func put(t *testing.T, store db.KVStore, data map[string]string) {
	t.Helper()
	for k, v := range data {
		require.NoError(t, store.Put([]byte(k), []byte(v)))
	}
}

func collect(t *testing.T, iter db.Iterator) []string {
	t.Helper()
	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	require.NoError(t, iter.Error())
	return keys
}

func testBasicPutGet(t *testing.T, store db.KVStore) {
	key := []byte("test-key")
	value := []byte("test-value")

	err := store.Put(key, value)
	require.NoError(t, err)

	retrieved, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, retrieved)

	// returned slices are owned by the caller
	retrieved[0] = 'X'
	again, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, again)

	_, err = store.Get([]byte("non-existent"))
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func testDelete(t *testing.T, store db.KVStore) {
	key := []byte("delete-test")
	value := []byte("to-be-deleted")

	err := store.Put(key, value)
	require.NoError(t, err)

	err = store.Delete(key)
	require.NoError(t, err)

	_, err = store.Get(key)
	assert.ErrorIs(t, err, db.ErrNotFound)

	// Delete non-existent key should not error
	err = store.Delete([]byte("non-existent"))
	assert.NoError(t, err)
}

func testDeleteRange(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"})

	require.NoError(t, store.DeleteRange([]byte("b"), []byte("d")))

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck
	assert.Equal(t, []string{"a", "d"}, collect(t, iter))

	// empty range is a no-op
	require.NoError(t, store.DeleteRange([]byte("a"), []byte("a")))
	_, err = store.Get([]byte("a"))
	assert.NoError(t, err)

	assert.ErrorIs(t, store.DeleteRange([]byte("d"), []byte("a")), db.ErrInvalidRange)

	// a nil end is the empty key, never an open end
	assert.ErrorIs(t, store.DeleteRange([]byte("a"), nil), db.ErrInvalidRange)
	require.NoError(t, store.DeleteRange(nil, nil))

	iter2, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter2.Close() //nolint:errcheck
	assert.Equal(t, []string{"a", "d"}, collect(t, iter2))
}

func testStoreClosure(t *testing.T, store db.KVStore) {
	err := store.Close()
	require.NoError(t, err)

	_, err = store.Get([]byte("key"))
	assert.ErrorIs(t, err, db.ErrClosed)

	err = store.Put([]byte("key"), []byte("value"))
	assert.ErrorIs(t, err, db.ErrClosed)

	err = store.Delete([]byte("key"))
	assert.ErrorIs(t, err, db.ErrClosed)

	_, err = store.NewIterator(nil, nil)
	assert.ErrorIs(t, err, db.ErrClosed)

	// Double close should not error
	err = store.Close()
	assert.NoError(t, err)
}

func testBasicBatchOperations(t *testing.T, store db.KVStore) {
	batch := store.NewBatch()
	defer batch.Close() //nolint:errcheck

	keys := [][]byte{[]byte("key1"), []byte("key2"), []byte("key3")}
	values := [][]byte{[]byte("value1"), []byte("value2"), []byte("value3")}

	for i := range keys {
		err := batch.Put(keys[i], values[i])
		require.NoError(t, err)
	}

	// Delete one key in the same batch
	err := batch.Delete(keys[1])
	require.NoError(t, err)

	// Nothing is visible before commit
	_, err = store.Get(keys[0])
	assert.ErrorIs(t, err, db.ErrNotFound)

	err = batch.Commit()
	require.NoError(t, err)

	val1, err := store.Get(keys[0])
	require.NoError(t, err)
	assert.Equal(t, values[0], val1)

	_, err = store.Get(keys[1])
	assert.ErrorIs(t, err, db.ErrNotFound)

	val3, err := store.Get(keys[2])
	require.NoError(t, err)
	assert.Equal(t, values[2], val3)
}

func testBatchCommitAndClose(t *testing.T, store db.KVStore) {
	batch := store.NewBatch()

	err := batch.Put([]byte("key"), []byte("value"))
	require.NoError(t, err)

	err = batch.Commit()
	require.NoError(t, err)

	// Operations after commit should fail
	err = batch.Put([]byte("key2"), []byte("value2"))
	assert.ErrorIs(t, err, db.ErrBatchDone)

	err = batch.Delete([]byte("key2"))
	assert.ErrorIs(t, err, db.ErrBatchDone)

	err = batch.DeleteRange([]byte("a"), []byte("z"))
	assert.ErrorIs(t, err, db.ErrBatchDone)

	// Second commit should fail
	err = batch.Commit()
	assert.ErrorIs(t, err, db.ErrBatchDone)

	// Close should not error
	err = batch.Close()
	assert.NoError(t, err)

	// Double close should not error
	err = batch.Close()
	assert.NoError(t, err)
}

func testBatchInvalidRange(t *testing.T, store db.KVStore) {
	batch := store.NewBatch()
	defer batch.Close() //nolint:errcheck

	assert.ErrorIs(t, batch.DeleteRange([]byte("z"), []byte("a")), db.ErrInvalidRange)
	assert.ErrorIs(t, batch.DeleteRange([]byte("f"), nil), db.ErrInvalidRange)

	put(t, store, map[string]string{"a": "1", "f": "2", "g": "3"})
	require.NoError(t, batch.DeleteRange(nil, nil))
	require.NoError(t, batch.Commit())

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck
	assert.Equal(t, []string{"a", "f", "g"}, collect(t, iter))
}

func testMultipleBatches(t *testing.T, store db.KVStore) {
	batch1 := store.NewBatch()
	batch2 := store.NewBatch()
	defer batch1.Close() //nolint:errcheck
	defer batch2.Close() //nolint:errcheck

	err := batch1.Put([]byte("key1"), []byte("batch1"))
	require.NoError(t, err)
	err = batch2.Put([]byte("key2"), []byte("batch2"))
	require.NoError(t, err)
	err = batch2.DeleteRange([]byte("key1"), []byte("key2"))
	require.NoError(t, err)

	err = batch1.Commit()
	require.NoError(t, err)
	err = batch2.Commit()
	require.NoError(t, err)

	// batch2's range delete applies to state at its commit
	_, err = store.Get([]byte("key1"))
	assert.ErrorIs(t, err, db.ErrNotFound)

	val2, err := store.Get([]byte("key2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("batch2"), val2)
}

func testFullRangeIteration(t *testing.T, store db.KVStore) {
	data := map[string]string{
		"a": "value-a",
		"b": "value-b",
		"c": "value-c",
		"d": "value-d",
	}
	put(t, store, data)

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	var keys []string
	for iter.Next() {
		value, err := iter.Value()
		require.NoError(t, err)
		assert.Equal(t, data[string(iter.Key())], string(value))
		keys = append(keys, string(iter.Key()))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, keys)
}

func testBoundedRangeIteration(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{
		"a": "value-a",
		"b": "value-b",
		"c": "value-c",
		"d": "value-d",
		"e": "value-e",
	})

	iter, err := store.NewIterator([]byte("b"), []byte("e"))
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	assert.Equal(t, []string{"b", "c", "d"}, collect(t, iter))
}

func testIteratorValidity(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{"key1": "value1", "key2": "value2"})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	// Initial state - iterator is not positioned
	assert.False(t, iter.Valid())

	assert.True(t, iter.Next())
	assert.True(t, iter.Valid())
	assert.Equal(t, []byte("key1"), iter.Key())

	assert.True(t, iter.Next())
	val, err := iter.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("value2"), val)

	// No more elements, and exhaustion is sticky
	assert.False(t, iter.Next())
	assert.False(t, iter.Valid())
	assert.False(t, iter.Next())

	_, err = iter.Value()
	assert.ErrorIs(t, err, db.ErrIteratorInvalid)
}

func testIteratorSeeks(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{"b": "1", "d": "2", "f": "3"})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	require.True(t, iter.SeekGE([]byte("c")))
	assert.Equal(t, []byte("d"), iter.Key())
	require.True(t, iter.Next())
	assert.Equal(t, []byte("f"), iter.Key())
	require.True(t, iter.Prev())
	assert.Equal(t, []byte("d"), iter.Key())

	require.True(t, iter.SeekGE([]byte("d")))
	assert.Equal(t, []byte("d"), iter.Key())

	require.True(t, iter.SeekLT([]byte("d")))
	assert.Equal(t, []byte("b"), iter.Key())
	assert.False(t, iter.SeekLT([]byte("b")))

	assert.False(t, iter.SeekGE([]byte("g")))

	require.True(t, iter.First())
	assert.Equal(t, []byte("b"), iter.Key())
	require.True(t, iter.Last())
	assert.Equal(t, []byte("f"), iter.Key())
}

func testSeekForPrev(t *testing.T, store db.KVStore) {
	put(t, store, map[string]string{"b": "1", "d": "2"})

	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck

	require.True(t, db.SeekForPrev(iter, []byte("d")))
	assert.Equal(t, []byte("d"), iter.Key())
	require.True(t, db.SeekForPrev(iter, []byte("c")))
	assert.Equal(t, []byte("b"), iter.Key())
	require.True(t, db.SeekForPrev(iter, []byte("z")))
	assert.Equal(t, []byte("d"), iter.Key())
	assert.False(t, db.SeekForPrev(iter, []byte("a")))
}
