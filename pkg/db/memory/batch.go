package memory

import (
	"sync/atomic"

	"github.com/eigerco/kvcontainer/pkg/db"
)

type opKind uint8

const (
	opPut opKind = iota
	opDelete
	opDeleteRange
)

type op struct {
	kind  opKind
	key   []byte
	end   []byte
	value []byte
}

type Batch struct {
	store *KVStore
	ops   []op
	done  atomic.Bool
}

func (s *KVStore) NewBatch() db.Batch {
	return &Batch{store: s}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.ops = append(b.ops, op{kind: opPut, key: clone(key), value: clone(value)})
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.ops = append(b.ops, op{kind: opDelete, key: clone(key)})
	return nil
}

func (b *Batch) DeleteRange(start, end []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	if err := db.CheckRange(start, end); err != nil {
		return err
	}
	b.ops = append(b.ops, op{kind: opDeleteRange, key: clone(start), end: clone(end)})
	return nil
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	if err := b.store.apply(b.ops); err != nil {
		return err
	}
	b.done.Store(true)
	b.ops = nil
	return nil
}

func (b *Batch) Close() error {
	b.done.Store(true)
	b.ops = nil
	return nil
}
