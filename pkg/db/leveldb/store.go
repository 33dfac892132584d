package leveldb

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/eigerco/kvcontainer/pkg/db"
)

var syncWrites = &opt.WriteOptions{Sync: true}

// Engine opens goleveldb stores on the OS filesystem.
type Engine struct{}

func (Engine) Name() string { return "leveldb" }

func (Engine) Open(path string, opts db.Options) (db.KVStore, error) {
	return Open(path, opts)
}

type KVStore struct {
	db       *leveldb.DB
	readOnly bool
	closed   bool
	mu       sync.RWMutex
}

func Open(path string, opts db.Options) (*KVStore, error) {
	ldb, err := leveldb.OpenFile(path, newLevelDBOptions(opts))
	if err != nil {
		return nil, err
	}
	return &KVStore{db: ldb, readOnly: opts.ReadOnly}, nil
}

// NewMemKVStore returns a writable store over goleveldb's memory storage.
func NewMemKVStore() (*KVStore, error) {
	opts := db.DefaultOptions()
	ldb, err := leveldb.Open(storage.NewMemStorage(), newLevelDBOptions(opts))
	if err != nil {
		return nil, err
	}
	return &KVStore{db: ldb}, nil
}

// newLevelDBOptions maps the tuning set onto goleveldb. The write buffer
// count, level count and compaction parallelism have no goleveldb knob.
func newLevelDBOptions(opts db.Options) *opt.Options {
	lo := &opt.Options{
		ReadOnly:                      opts.ReadOnly,
		ErrorIfMissing:                !opts.CreateIfMissing,
		WriteBuffer:                   int(opts.WriteBufferSize),
		CompactionTableSize:           int(opts.TargetFileSizeBase),
		CompactionL0Trigger:           opts.Level0FileNumCompactionTrigger,
		WriteL0SlowdownTrigger:        opts.Level0SlowdownWritesTrigger,
		WriteL0PauseTrigger:           opts.Level0StopWritesTrigger,
		CompactionTotalSize:           int(opts.MaxBytesForLevelBase),
		CompactionTotalSizeMultiplier: float64(opts.MaxBytesForLevelMultiplier),
	}
	if opts.MaxOpenFiles > 0 {
		lo.OpenFilesCacheCapacity = opts.MaxOpenFiles
	}
	return lo
}

func (s *KVStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, db.ErrClosed
	}

	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *KVStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return err
	}
	return s.db.Put(key, value, syncWrites)
}

func (s *KVStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(); err != nil {
		return err
	}
	return s.db.Delete(key, syncWrites)
}

func (s *KVStore) DeleteRange(start, end []byte) error {
	b := s.NewBatch()
	defer b.Close() //nolint:errcheck

	if err := b.DeleteRange(start, end); err != nil {
		return err
	}
	return b.Commit()
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// writable must be called with mu held.
func (s *KVStore) writable() error {
	if s.closed {
		return db.ErrClosed
	}
	if s.readOnly {
		return db.ErrReadOnly
	}
	return nil
}
