package leveldb

import (
	"bytes"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/eigerco/kvcontainer/pkg/db"
)

type Iterator struct {
	iter iterator.Iterator
}

func (s *KVStore) NewIterator(start, end []byte) (db.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, db.ErrClosed
	}

	iter := s.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	if err := iter.Error(); err != nil {
		iter.Release()
		return nil, fmt.Errorf(db.ErrInIteratorCreation, err)
	}
	return &Iterator{iter: iter}, nil
}

func (it *Iterator) SeekGE(key []byte) bool { return it.iter.Seek(key) }

func (it *Iterator) SeekLT(key []byte) bool {
	if it.iter.Seek(key) {
		return it.iter.Prev()
	}
	if it.iter.Error() != nil {
		return false
	}
	return it.iter.Last()
}

func (it *Iterator) First() bool { return it.iter.First() }

func (it *Iterator) Last() bool { return it.iter.Last() }

// Next and Prev on an unpositioned goleveldb iterator already start from the
// first and last key respectively.
func (it *Iterator) Next() bool { return it.iter.Next() }

func (it *Iterator) Prev() bool { return it.iter.Prev() }

func (it *Iterator) Valid() bool { return it.iter.Valid() }

func (it *Iterator) Key() []byte {
	return bytes.Clone(it.iter.Key())
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.iter.Valid() {
		return nil, db.ErrIteratorInvalid
	}
	if err := it.iter.Error(); err != nil {
		return nil, fmt.Errorf(db.ErrIteratorValue, err)
	}
	return bytes.Clone(it.iter.Value()), nil
}

func (it *Iterator) Error() error { return it.iter.Error() }

func (it *Iterator) Close() error {
	it.iter.Release()
	return nil
}
