package container

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eigerco/kvcontainer/internal/lock"
	"github.com/eigerco/kvcontainer/internal/progress"
	"github.com/eigerco/kvcontainer/pkg/db"
	"github.com/eigerco/kvcontainer/pkg/db/pebble"
	"github.com/eigerco/kvcontainer/pkg/log"
)

const DefaultLockTimeout = 10 * time.Second

type Options struct {
	ReadOnly bool
	// LockTimeout bounds the wait for the writer lock. Zero means
	// DefaultLockTimeout.
	LockTimeout time.Duration
	// Engine defaults to pebble on the OS filesystem. Pebble and leveldb lock
	// their directory, so a read-only container opens while a writer holds
	// the path but fails on first access until the writer closes.
	Engine db.Engine
	// Tuning defaults to db.DefaultOptions().
	Tuning *db.Options
	// Logger defaults to log.Storage.
	Logger *zerolog.Logger
}

// DB is a Container stored at a filesystem path.
//
// DB is not safe for concurrent use, except for Close which may be called any
// number of times from any goroutine.
type DB struct {
	path     string
	readOnly bool
	engine   db.Engine
	tuning   db.Options
	log      zerolog.Logger

	mu     sync.Mutex
	closed bool
	lock   *lock.Lock
	store  db.KVStore
	marked bool
}

// Open returns the container at path. A writable container takes the
// exclusive lock right away and fails with ErrLockBusy if it cannot get it
// within the timeout; the engine itself is opened on first use.
func Open(path string, opts Options) (*DB, error) {
	c := &DB{
		path:     filepath.Clean(path),
		readOnly: opts.ReadOnly,
		engine:   opts.Engine,
		tuning:   db.DefaultOptions(),
	}
	if c.engine == nil {
		c.engine = pebble.Engine{}
	}
	if opts.Tuning != nil {
		c.tuning = *opts.Tuning
	}
	c.tuning.ReadOnly = opts.ReadOnly
	if err := c.tuning.Validate(); err != nil {
		return nil, err
	}

	logger := log.Storage
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	c.log = logger.With().Str("path", c.path).Bool("read_only", c.readOnly).Logger()

	if !c.readOnly {
		timeout := opts.LockTimeout
		if timeout == 0 {
			timeout = DefaultLockTimeout
		}
		c.log.Debug().Dur("timeout", timeout).Msg("acquiring writer lock")
		l, err := lock.Acquire(c.path, timeout)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", c.path, err)
		}
		c.lock = l
	}
	return c, nil
}

func (c *DB) Path() string { return c.path }

func (c *DB) ReadOnly() bool { return c.readOnly }

// InProgress reports whether a progress marker exists for this container.
func (c *DB) InProgress() (bool, error) {
	return progress.Exists(c.path)
}

// IsFinalized reports whether the container at path has no pending
// progress marker.
func IsFinalized(path string) (bool, error) {
	inProgress, err := progress.Exists(filepath.Clean(path))
	return !inProgress, err
}

// ensureOpen opens the engine on first use.
func (c *DB) ensureOpen() (db.KVStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.store != nil {
		return c.store, nil
	}

	c.log.Debug().Str("engine", c.engine.Name()).Msg("opening store")
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return nil, fmt.Errorf("create container dir: %w", err)
	}
	store, err := c.engine.Open(c.path, c.tuning)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// ensureWritable opens the engine and leaves the progress marker the first
// time the container is written to.
func (c *DB) ensureWritable() (db.KVStore, error) {
	if c.readOnly {
		return nil, ErrReadOnly
	}
	store, err := c.ensureOpen()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.marked {
		if err := progress.Mark(c.path); err != nil {
			return nil, err
		}
		c.marked = true
	}
	return store, nil
}

// Preload opens the engine now instead of on first use, surfacing open
// errors early.
func (c *DB) Preload() error {
	_, err := c.ensureOpen()
	return err
}

func (c *DB) Get(key []byte) ([]byte, error) {
	store, err := c.ensureOpen()
	if err != nil {
		return nil, err
	}
	return store.Get(key)
}

func (c *DB) GetDefault(key, def []byte) ([]byte, error) {
	return nil, ErrUnsupported
}

func (c *DB) Update() error {
	return ErrUnsupported
}

func (c *DB) Set(key, value []byte, batch *Batch) error {
	if batch != nil {
		return batch.Set(key, value)
	}
	store, err := c.ensureWritable()
	if err != nil {
		return err
	}
	return store.Put(key, value)
}

func (c *DB) Delete(key []byte, batch *Batch) error {
	if batch != nil {
		return batch.Delete(key)
	}
	store, err := c.ensureWritable()
	if err != nil {
		return err
	}
	return store.Delete(key)
}

func (c *DB) DeleteRange(begin, end []byte, batch *Batch) error {
	if batch != nil {
		return batch.DeleteRange(begin, end)
	}
	store, err := c.ensureWritable()
	if err != nil {
		return err
	}
	return store.DeleteRange(begin, end)
}

func (c *DB) Batch() *Batch {
	return &Batch{}
}

// Commit applies every operation queued on batch atomically and consumes
// the batch, whether or not the commit succeeds.
func (c *DB) Commit(batch *Batch) error {
	if batch == nil {
		return nil
	}
	ops, err := batch.take()
	if err != nil {
		return err
	}
	store, err := c.ensureWritable()
	if err != nil {
		return err
	}

	eb := store.NewBatch()
	defer eb.Close() //nolint:errcheck

	for _, o := range ops {
		if err := o.apply(eb); err != nil {
			return err
		}
	}
	return eb.Commit()
}

// Finalize copies every record into index and then clears the progress
// marker. It does nothing when there is no marker. If it fails or the
// process dies part way, the marker stays and a later Finalize starts over.
func (c *DB) Finalize(index Container) error {
	if c.readOnly {
		return nil
	}
	inProgress, err := progress.Exists(c.path)
	if err != nil {
		return err
	}
	if !inProgress {
		return nil
	}

	c.log.Info().Msg("finalizing container")
	start := time.Now()

	items, err := c.Items(nil)
	if err != nil {
		return err
	}
	defer items.Close() //nolint:errcheck

	var count int
	for items.Next() {
		if err := index.Set(items.Key(), items.Value(), nil); err != nil {
			return fmt.Errorf("finalize %s: %w", c.path, err)
		}
		count++
	}
	if err := items.Err(); err != nil {
		return err
	}

	if err := progress.Clear(c.path); err != nil {
		return err
	}
	c.mu.Lock()
	c.marked = false
	c.mu.Unlock()

	c.log.Info().Int("records", count).Dur("took", time.Since(start)).Msg("container finalized")
	return nil
}

func (c *DB) View(prefix []byte) Container {
	return NewPrefixView(c, prefix)
}

func (c *DB) Tree() *TreeView {
	return NewTreeView(c, DefaultSeparator)
}

// Close closes the engine and releases the writer lock. It is safe to call
// more than once, so a deferred Close may follow an explicit one.
func (c *DB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.store != nil {
		errs = append(errs, c.store.Close())
		c.store = nil
	}
	if c.lock != nil {
		errs = append(errs, c.lock.Release())
		c.lock = nil
	}
	c.log.Debug().Msg("container closed")
	return errors.Join(errs...)
}
