package container

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvcontainer/internal/progress"
	"github.com/eigerco/kvcontainer/pkg/db"
	"github.com/eigerco/kvcontainer/pkg/db/memory"
	"github.com/eigerco/kvcontainer/pkg/db/pebble"
)

func dump(t *testing.T, c Container) string {
	t.Helper()
	items, err := c.Items(nil)
	var sb strings.Builder
	for _, e := range drain(t, items, err) {
		sb.WriteString(e.key + " = " + e.value + "\n")
	}
	return sb.String()
}

func requireSameContents(t *testing.T, expected, actual Container) {
	t.Helper()
	want, got := dump(t, expected), dump(t, actual)
	if want != got {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(want),
			B:        difflib.SplitLines(got),
			FromFile: "Expected",
			ToFile:   "Actual",
			Context:  3,
		})
		t.Fatalf("containers differ:\n%s", diff)
	}
}

func TestLockContention(t *testing.T) {
	engine := memory.NewEngine()
	path := containerPath(t)

	writer := openWritable(t, engine, path)
	fill(t, writer, exampleData)

	timeout := 200 * time.Millisecond
	start := time.Now()
	_, err := Open(path, Options{Engine: engine, LockTimeout: timeout})
	elapsed := time.Since(start)
	assert.ErrorIs(t, err, ErrLockBusy)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+time.Second)

	reader, err := Open(path, Options{Engine: engine, ReadOnly: true})
	require.NoError(t, err)
	defer reader.Close() //nolint:errcheck

	v, err := reader.Get([]byte("meta.x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("123"), v)

	require.NoError(t, writer.Close())
	second, err := Open(path, Options{Engine: engine, LockTimeout: timeout})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestOnDiskReaderWaitsForWriter(t *testing.T) {
	path := containerPath(t)
	writer := openWritable(t, pebble.Engine{}, path)
	fill(t, writer, exampleData)

	reader, err := Open(path, Options{Engine: pebble.Engine{}, ReadOnly: true})
	require.NoError(t, err)
	_, err = reader.Get([]byte("meta.x"))
	assert.Error(t, err)
	require.NoError(t, reader.Close())

	require.NoError(t, writer.Close())
	reader, err = Open(path, Options{Engine: pebble.Engine{}, ReadOnly: true})
	require.NoError(t, err)
	defer reader.Close() //nolint:errcheck
	v, err := reader.Get([]byte("meta.x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("123"), v)
}

func TestReadOnly(t *testing.T) {
	engine := memory.NewEngine()
	path := containerPath(t)

	c, err := Open(path, Options{Engine: engine, ReadOnly: true})
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	require.NoError(t, c.Preload())
	assert.ErrorIs(t, c.Set([]byte("k"), []byte("v"), nil), ErrReadOnly)
	assert.ErrorIs(t, c.Delete([]byte("k"), nil), ErrReadOnly)
	assert.ErrorIs(t, c.DeleteRange([]byte("a"), []byte("b"), nil), ErrReadOnly)

	b := c.Batch()
	require.NoError(t, c.Set([]byte("k"), []byte("v"), b))
	assert.ErrorIs(t, c.Commit(b), ErrReadOnly)

	inProgress, err := c.InProgress()
	require.NoError(t, err)
	assert.False(t, inProgress)

	// finalizing a reader is a no-op
	require.NoError(t, c.Finalize(openWritable(t, engine, containerPath(t))))
}

func TestCloseIsIdempotent(t *testing.T) {
	engine := memory.NewEngine()
	path := containerPath(t)

	c, err := Open(path, Options{Engine: engine})
	require.NoError(t, err)
	require.NoError(t, c.Set([]byte("k"), []byte("v"), nil))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Set([]byte("k"), []byte("v"), nil), ErrClosed)
	_, err = c.Items(nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Walk(nil)
	assert.ErrorIs(t, err, ErrClosed)

	// the lock went with it
	again, err := Open(path, Options{Engine: engine, LockTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer again.Close() //nolint:errcheck
	v, err := again.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestLazyOpen(t *testing.T) {
	engine := &countingEngine{Engine: memory.NewEngine()}
	c := openWritable(t, engine, containerPath(t))
	assert.Zero(t, engine.opens)

	inProgress, err := c.InProgress()
	require.NoError(t, err)
	assert.False(t, inProgress)

	_, err = c.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, engine.opens)

	// reading does not mark progress
	inProgress, err = c.InProgress()
	require.NoError(t, err)
	assert.False(t, inProgress)

	require.NoError(t, c.Set([]byte("k"), []byte("v"), nil))
	assert.Equal(t, 1, engine.opens)
	inProgress, err = c.InProgress()
	require.NoError(t, err)
	assert.True(t, inProgress)
}

func TestFinalize(t *testing.T) {
	engine := memory.NewEngine()
	src := openWritable(t, engine, containerPath(t))
	index := openWritable(t, engine, containerPath(t))

	// nothing written, nothing to do
	require.NoError(t, src.Finalize(index))

	fill(t, src, exampleData)
	finalized, err := IsFinalized(src.Path())
	require.NoError(t, err)
	assert.False(t, finalized)

	require.NoError(t, src.Finalize(index))

	finalized, err = IsFinalized(src.Path())
	require.NoError(t, err)
	assert.True(t, finalized)
	requireSameContents(t, src, index)

	want, err := Digest(src, nil)
	require.NoError(t, err)
	got, err := Digest(index, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// no marker, no copy
	other := openWritable(t, engine, containerPath(t))
	require.NoError(t, src.Finalize(other))
	assert.Empty(t, dump(t, other))

	// writing again re-arms the marker
	require.NoError(t, src.Set([]byte("late"), []byte("1"), nil))
	finalized, err = IsFinalized(src.Path())
	require.NoError(t, err)
	assert.False(t, finalized)
}

func TestFinalizeThroughView(t *testing.T) {
	engine := memory.NewEngine()
	src := openWritable(t, engine, containerPath(t))
	index := openWritable(t, engine, containerPath(t))
	fill(t, src, exampleData)

	require.NoError(t, src.View([]byte("meta.")).Finalize(index))

	// the whole container is copied with full keys
	requireSameContents(t, src, index)
}

func TestFinalizeFailureKeepsMarker(t *testing.T) {
	engine := memory.NewEngine()
	src := openWritable(t, engine, containerPath(t))
	fill(t, src, exampleData)

	index, err := Open(containerPath(t), Options{Engine: engine, ReadOnly: true})
	require.NoError(t, err)
	defer index.Close() //nolint:errcheck

	err = src.Finalize(index)
	assert.ErrorIs(t, err, ErrReadOnly)

	inProgress, err := src.InProgress()
	require.NoError(t, err)
	assert.True(t, inProgress)
}

func TestFinalizeAfterCrash(t *testing.T) {
	engine := memory.NewEngine()
	path := containerPath(t)

	crashed, err := Open(path, Options{Engine: engine})
	require.NoError(t, err)
	fill(t, crashed, exampleData)
	// the writer goes away without finalizing
	require.NoError(t, crashed.Close())

	exists, err := progress.Exists(path)
	require.NoError(t, err)
	require.True(t, exists)

	recovered := openWritable(t, engine, path)
	index := openWritable(t, engine, containerPath(t))
	require.NoError(t, recovered.Finalize(index))

	requireSameContents(t, recovered, index)
	exists, err = progress.Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)
}

var errInjected = errors.New("injected commit failure")

type countingEngine struct {
	*memory.Engine
	opens int
}

func (e *countingEngine) Open(path string, opts db.Options) (db.KVStore, error) {
	e.opens++
	return e.Engine.Open(path, opts)
}

type failingEngine struct {
	*memory.Engine
}

func (e failingEngine) Open(path string, opts db.Options) (db.KVStore, error) {
	store, err := e.Engine.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return failingStore{KVStore: store}, nil
}

type failingStore struct {
	db.KVStore
}

func (s failingStore) NewBatch() db.Batch {
	return failingBatch{Batch: s.KVStore.NewBatch()}
}

type failingBatch struct {
	db.Batch
}

func (failingBatch) Commit() error {
	return errInjected
}

func TestFailedCommitAppliesNothing(t *testing.T) {
	engine := memory.NewEngine()
	path := containerPath(t)

	c := openWritable(t, failingEngine{Engine: engine}, path)
	fill(t, c, exampleData)

	b := c.Batch()
	require.NoError(t, c.Set([]byte("a"), []byte("1"), b))
	require.NoError(t, c.DeleteRange([]byte("meta."), []byte("meta/"), b))

	err := c.Commit(b)
	// engine errors come back untouched
	assert.Equal(t, errInjected, err)

	reader, err := Open(path, Options{Engine: engine, ReadOnly: true})
	require.NoError(t, err)
	defer reader.Close() //nolint:errcheck

	items, err := reader.Items(nil)
	assert.Equal(t, []kv{{"e.y", "012"}, {"meta.x", "123"}, {"meta.z", "x"}, {"zzz", "oOo"}}, drain(t, items, err))

	assert.ErrorIs(t, c.Commit(b), ErrBatchDone)
}

func TestInvalidTuning(t *testing.T) {
	tuning := db.DefaultOptions()
	tuning.NumLevels = 0
	_, err := Open(containerPath(t), Options{Engine: memory.NewEngine(), Tuning: &tuning})
	assert.ErrorIs(t, err, db.ErrInvalidOptions)
}
