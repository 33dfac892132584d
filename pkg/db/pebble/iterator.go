package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/kvcontainer/pkg/db"
)

type Iterator struct {
	iter       *pebble.Iterator
	positioned bool
}

func (p *KVStore) NewIterator(start, end []byte) (db.Iterator, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, db.ErrClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return nil, fmt.Errorf(db.ErrInIteratorCreation, err)
	}
	return &Iterator{iter: iter}, nil
}

func (it *Iterator) SeekGE(key []byte) bool {
	it.positioned = true
	return it.iter.SeekGE(key)
}

func (it *Iterator) SeekLT(key []byte) bool {
	it.positioned = true
	return it.iter.SeekLT(key)
}

func (it *Iterator) First() bool {
	it.positioned = true
	return it.iter.First()
}

func (it *Iterator) Last() bool {
	it.positioned = true
	return it.iter.Last()
}

func (it *Iterator) Next() bool {
	// If the iterator is un-positioned, position it at the first key
	if !it.positioned {
		return it.First()
	}
	// Otherwise, move to the next key
	return it.iter.Next()
}

func (it *Iterator) Prev() bool {
	if !it.positioned {
		return it.Last()
	}
	return it.iter.Prev()
}

func (it *Iterator) Key() []byte {
	key := it.iter.Key()
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.iter.Valid() {
		return nil, db.ErrIteratorInvalid
	}

	val, err := it.iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf(db.ErrIteratorValue, err)
	}

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Valid() bool {
	return it.iter.Valid()
}

func (it *Iterator) Error() error {
	return it.iter.Error()
}

func (it *Iterator) Close() error {
	return it.iter.Close()
}
