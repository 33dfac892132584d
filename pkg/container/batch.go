package container

import (
	"bytes"

	"github.com/eigerco/kvcontainer/pkg/db"
)

type batchOpKind uint8

const (
	batchSet batchOpKind = iota
	batchDelete
	batchDeleteRange
)

type batchOp struct {
	kind  batchOpKind
	key   []byte
	end   []byte
	value []byte
}

func (o batchOp) apply(b db.Batch) error {
	switch o.kind {
	case batchSet:
		return b.Put(o.key, o.value)
	case batchDelete:
		return b.Delete(o.key)
	default:
		return b.DeleteRange(o.key, o.end)
	}
}

// Batch is an ordered list of pending mutations. It is built through the
// batch argument of Set, Delete and DeleteRange and applied as a unit by
// Commit. A Batch is owned by one goroutine.
type Batch struct {
	ops  []batchOp
	done bool
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

func (b *Batch) Set(key, value []byte) error {
	return b.push(batchOp{kind: batchSet, key: bytes.Clone(key), value: bytes.Clone(value)})
}

func (b *Batch) Delete(key []byte) error {
	return b.push(batchOp{kind: batchDelete, key: bytes.Clone(key)})
}

func (b *Batch) DeleteRange(begin, end []byte) error {
	if err := db.CheckRange(begin, end); err != nil {
		return err
	}
	return b.push(batchOp{kind: batchDeleteRange, key: bytes.Clone(begin), end: bytes.Clone(end)})
}

func (b *Batch) push(o batchOp) error {
	if b.done {
		return ErrBatchDone
	}
	b.ops = append(b.ops, o)
	return nil
}

// take hands the queued operations to a commit and consumes the batch.
func (b *Batch) take() ([]batchOp, error) {
	if b.done {
		return nil, ErrBatchDone
	}
	ops := b.ops
	b.ops = nil
	b.done = true
	return ops, nil
}
