package pebble

import (
	"bytes"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/eigerco/kvcontainer/pkg/db"
)

// Engine opens pebble stores. A nil FS means the OS filesystem.
type Engine struct {
	FS vfs.FS
}

func (Engine) Name() string { return "pebble" }

func (e Engine) Open(path string, opts db.Options) (db.KVStore, error) {
	return Open(path, opts, e.FS)
}

type KVStore struct {
	db       *pebble.DB
	readOnly bool
	closed   bool
	mu       sync.RWMutex
}

// Open opens (creating it if allowed) the pebble store at path.
func Open(path string, opts db.Options, fs vfs.FS) (*KVStore, error) {
	pdb, err := pebble.Open(path, newPebbleOptions(opts, fs))
	if err != nil {
		return nil, err
	}
	return &KVStore{db: pdb, readOnly: opts.ReadOnly}, nil
}

// NewMemKVStore returns a writable store held entirely in memory.
func NewMemKVStore() (*KVStore, error) {
	return Open("mem", db.DefaultOptions(), vfs.NewMem())
}

// newPebbleOptions maps the tuning set onto pebble. Pebble has no level0
// slowdown trigger and a fixed level multiplier, so those two fields have no
// effect here.
func newPebbleOptions(opts db.Options, fs vfs.FS) *pebble.Options {
	compactions := opts.MaxBackgroundCompactions
	po := &pebble.Options{
		FS:                          fs,
		ReadOnly:                    opts.ReadOnly,
		ErrorIfNotExists:            !opts.CreateIfMissing,
		MemTableSize:                uint64(opts.WriteBufferSize),
		MemTableStopWritesThreshold: opts.MaxWriteBufferNumber,
		L0CompactionThreshold:       opts.Level0FileNumCompactionTrigger,
		L0CompactionFileThreshold:   opts.Level0FileNumCompactionTrigger,
		L0StopWritesThreshold:       opts.Level0StopWritesTrigger,
		LBaseMaxBytes:               opts.MaxBytesForLevelBase,
		MaxConcurrentCompactions:    func() int { return compactions },
	}
	if opts.MaxOpenFiles > 0 {
		po.MaxOpenFiles = opts.MaxOpenFiles
	}
	po.Levels = make([]pebble.LevelOptions, opts.NumLevels)
	for i := range po.Levels {
		po.Levels[i].TargetFileSize = opts.TargetFileSizeBase
	}
	return po
}

func (p *KVStore) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, db.ErrClosed
	}

	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (p *KVStore) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writable(); err != nil {
		return err
	}
	return p.db.Set(key, value, pebble.Sync)
}

func (p *KVStore) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writable(); err != nil {
		return err
	}
	return p.db.Delete(key, pebble.Sync)
}

func (p *KVStore) DeleteRange(start, end []byte) error {
	if err := db.CheckRange(start, end); err != nil {
		return err
	}
	if bytes.Equal(start, end) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.writable(); err != nil {
		return err
	}
	return p.db.DeleteRange(start, end, pebble.Sync)
}

func (p *KVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

// writable must be called with mu held.
func (p *KVStore) writable() error {
	if p.closed {
		return db.ErrClosed
	}
	if p.readOnly {
		return db.ErrReadOnly
	}
	return nil
}
