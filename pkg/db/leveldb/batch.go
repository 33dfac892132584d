package leveldb

import (
	"bytes"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/eigerco/kvcontainer/pkg/db"
)

type pendingOp struct {
	key    []byte
	end    []byte
	value  []byte
	del    bool
	ranged bool
}

// Batch records operations and replays them into one leveldb.Batch on
// Commit. goleveldb has no range tombstones, so a range delete expands to
// point deletes of every key in the range at commit time, including keys
// put earlier in the same batch.
type Batch struct {
	store *KVStore
	ops   []pendingOp
	done  atomic.Bool
}

func (s *KVStore) NewBatch() db.Batch {
	return &Batch{store: s}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.ops = append(b.ops, pendingOp{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.ops = append(b.ops, pendingOp{key: bytes.Clone(key), del: true})
	return nil
}

func (b *Batch) DeleteRange(start, end []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	if err := db.CheckRange(start, end); err != nil {
		return err
	}
	b.ops = append(b.ops, pendingOp{key: bytes.Clone(start), end: bytes.Clone(end), ranged: true})
	return nil
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}

	// Exclusive so no other write lands between expanding ranges and writing.
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if err := b.store.writable(); err != nil {
		return err
	}

	lb := new(leveldb.Batch)
	var written [][]byte
	for _, o := range b.ops {
		switch {
		case o.ranged:
			// util.Range reads a nil Limit as unbounded
			if bytes.Compare(o.key, o.end) >= 0 {
				continue
			}
			keys, err := b.store.rangeKeys(o.key, o.end)
			if err != nil {
				return err
			}
			for _, k := range append(keys, inRange(written, o.key, o.end)...) {
				lb.Delete(k)
			}
		case o.del:
			lb.Delete(o.key)
		default:
			lb.Put(o.key, o.value)
			written = append(written, o.key)
		}
	}

	if err := b.store.db.Write(lb, syncWrites); err != nil {
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

func (s *KVStore) rangeKeys(start, end []byte) ([][]byte, error) {
	iter := s.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	defer iter.Release()

	var keys [][]byte
	for iter.Next() {
		keys = append(keys, bytes.Clone(iter.Key()))
	}
	return keys, iter.Error()
}

func inRange(keys [][]byte, start, end []byte) [][]byte {
	var out [][]byte
	for _, k := range keys {
		if bytes.Compare(k, start) >= 0 && bytes.Compare(k, end) < 0 {
			out = append(out, k)
		}
	}
	return out
}
