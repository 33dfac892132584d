// Package memory is an ordered in-process engine backed by a copy-on-write
// B-tree. Stores live as long as the Engine that opened them, so separate
// opens of the same path observe the same data, like files on disk would.
package memory

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/eigerco/kvcontainer/pkg/db"
)

const treeDegree = 32

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// data is the shared state behind every handle opened on one path.
type data struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[item]
}

// Engine keeps one tree per path. The zero value is ready to use.
type Engine struct {
	mu     sync.Mutex
	stores map[string]*data
}

func NewEngine() *Engine {
	return &Engine{}
}

func (*Engine) Name() string { return "memory" }

func (e *Engine) Open(path string, opts db.Options) (db.KVStore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stores == nil {
		e.stores = make(map[string]*data)
	}
	d, ok := e.stores[path]
	if !ok {
		if !opts.CreateIfMissing {
			return nil, db.ErrNotFound
		}
		d = &data{tree: btree.NewG[item](treeDegree, less)}
		e.stores[path] = d
	}
	return &KVStore{data: d, readOnly: opts.ReadOnly}, nil
}

// NewKVStore returns a standalone writable store.
func NewKVStore() *KVStore {
	return &KVStore{data: &data{tree: btree.NewG[item](treeDegree, less)}}
}

type KVStore struct {
	data     *data
	readOnly bool
	closed   bool
	mu       sync.RWMutex
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (s *KVStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, db.ErrClosed
	}

	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	it, ok := s.data.tree.Get(item{key: key})
	if !ok {
		return nil, db.ErrNotFound
	}
	return clone(it.value), nil
}

func (s *KVStore) Put(key, value []byte) error {
	return s.apply([]op{{kind: opPut, key: key, value: value}})
}

func (s *KVStore) Delete(key []byte) error {
	return s.apply([]op{{kind: opDelete, key: key}})
}

func (s *KVStore) DeleteRange(start, end []byte) error {
	if err := db.CheckRange(start, end); err != nil {
		return err
	}
	return s.apply([]op{{kind: opDeleteRange, key: start, end: end}})
}

// apply runs ops under one write lock, so readers see all of them or none.
func (s *KVStore) apply(ops []op) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return db.ErrClosed
	}
	if s.readOnly {
		return db.ErrReadOnly
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	tree := s.data.tree
	for _, o := range ops {
		switch o.kind {
		case opPut:
			tree.ReplaceOrInsert(item{key: append([]byte{}, o.key...), value: append([]byte{}, o.value...)})
		case opDelete:
			tree.Delete(item{key: o.key})
		case opDeleteRange:
			var doomed []item
			tree.AscendRange(item{key: o.key}, item{key: o.end}, func(it item) bool {
				doomed = append(doomed, it)
				return true
			})
			for _, it := range doomed {
				tree.Delete(it)
			}
		}
	}
	return nil
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
